package state

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const notificationsFileName = "notifications.json"

// Notification kinds shared with the terminal UI peer.
const (
	NotifySessionReady    = "session_ready"
	NotifySessionsWaiting = "sessions_waiting"
	NotifySessionResumed  = "session_resumed"
)

// Notification is a durable cross-process broadcast record. Reads are
// non-destructive; each consumer tracks its own read set.
type Notification struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Structured map[string]string `json:"structured,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	ReadBy     []string          `json:"read_by,omitempty"`
}

func (n *Notification) readBy(consumer string) bool {
	for _, c := range n.ReadBy {
		if c == consumer {
			return true
		}
	}
	return false
}

type notificationsFile struct {
	Notifications []Notification `json:"notifications"`
}

// NotificationQueue is the append-only notification file shared with the
// terminal UI collaborator. No file locks are assumed; writes are atomic
// replaces.
type NotificationQueue struct {
	mu       sync.Mutex
	filePath string
}

// NewNotificationQueue creates a queue backed by notifications.json in dir.
func NewNotificationQueue(dir string) *NotificationQueue {
	return &NotificationQueue{filePath: filepath.Join(dir, notificationsFileName)}
}

// Push appends a notification, assigning an id and timestamp when absent.
func (q *NotificationQueue) Push(n Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	var file notificationsFile
	if err := ReadJSON(q.filePath, &file); err != nil {
		return err
	}
	file.Notifications = append(file.Notifications, n)
	return WriteJSONAtomic(q.filePath, &file)
}

// Unread returns the notifications the given consumer has not yet read, in
// creation order.
func (q *NotificationQueue) Unread(consumer string) ([]Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var file notificationsFile
	if err := ReadJSON(q.filePath, &file); err != nil {
		return nil, err
	}

	var unread []Notification
	for i := range file.Notifications {
		if !file.Notifications[i].readBy(consumer) {
			unread = append(unread, file.Notifications[i])
		}
	}
	return unread, nil
}

// MarkRead records the consumer in the read set of each given notification.
func (q *NotificationQueue) MarkRead(consumer string, ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var file notificationsFile
	if err := ReadJSON(q.filePath, &file); err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	changed := false
	for i := range file.Notifications {
		n := &file.Notifications[i]
		if _, ok := wanted[n.ID]; ok && !n.readBy(consumer) {
			n.ReadBy = append(n.ReadBy, consumer)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return WriteJSONAtomic(q.filePath, &file)
}
