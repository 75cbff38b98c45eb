package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmatnyc/commander/pkg/adapters"
	"github.com/bobmatnyc/commander/pkg/channels"
	"github.com/bobmatnyc/commander/pkg/config"
	"github.com/bobmatnyc/commander/pkg/filter"
	"github.com/bobmatnyc/commander/pkg/logger"
	"github.com/bobmatnyc/commander/pkg/session"
	"github.com/bobmatnyc/commander/pkg/state"
)

// notificationConsumer identifies this process in the shared notification
// file's per-consumer read sets.
const notificationConsumer = "telegram"

// ChatClient is the outbound chat surface the service drives. Implemented
// by channels.Telegram; tests use a recording fake.
type ChatClient interface {
	Send(ctx context.Context, chatID int64, threadID int, text string) (int, error)
	SendReply(ctx context.Context, chatID int64, threadID, replyTo int, text string) (int, error)
	SendKeyboard(ctx context.Context, chatID int64, threadID int, text string, buttons []channels.Button) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Typing(ctx context.Context, chatID int64, threadID int) error
	CreateTopic(ctx context.Context, chatID int64, name string) (int, error)
}

// Service is the top-level assembly: it implements channels.Dispatcher for
// inbound traffic and drives the output-polling and notification loops.
type Service struct {
	cfg      *config.Config
	registry *session.Registry
	chat     ChatClient
	mux      session.Mux
	filter   *filter.Filter

	projects      *state.ProjectStore
	groups        *state.GroupConfigStore
	authorized    *state.AuthorizedChats
	version       *state.VersionStore
	notifications *state.NotificationQueue

	typingMu   sync.Mutex
	lastTyping map[session.Key]time.Time
}

// Options wires a Service.
type Options struct {
	Config        *config.Config
	Registry      *session.Registry
	Chat          ChatClient
	Mux           session.Mux
	Filter        *filter.Filter
	Projects      *state.ProjectStore
	Groups        *state.GroupConfigStore
	Authorized    *state.AuthorizedChats
	Version       *state.VersionStore
	Notifications *state.NotificationQueue
}

// New creates the service.
func New(opts Options) *Service {
	return &Service{
		cfg:           opts.Config,
		registry:      opts.Registry,
		chat:          opts.Chat,
		mux:           opts.Mux,
		filter:        opts.Filter,
		projects:      opts.Projects,
		groups:        opts.Groups,
		authorized:    opts.Authorized,
		version:       opts.Version,
		notifications: opts.Notifications,
		lastTyping:    make(map[session.Key]time.Time),
	}
}

// Startup restores persisted sessions, classifies the restart, and sends
// the rebuild notice when due. Returns the rebuild state.
func (s *Service) Startup(ctx context.Context) (state.RebuildState, error) {
	fingerprint, err := state.Fingerprint()
	if err != nil {
		logger.WarnCF("bridge", "Could not fingerprint binary", map[string]interface{}{
			"error": err.Error(),
		})
		fingerprint = "unknown"
	}
	rebuild, err := s.version.DetectRebuild(fingerprint)
	if err != nil {
		logger.WarnCF("bridge", "Could not persist version marker", map[string]interface{}{
			"error": err.Error(),
		})
	}

	restored, dropped, err := s.registry.Load(ctx)
	if err != nil {
		return rebuild, fmt.Errorf("loading sessions: %w", err)
	}

	logger.InfoCF("bridge", "Startup restoration complete", map[string]interface{}{
		"rebuild_state": rebuild.String(),
		"restored":      restored,
		"dropped":       dropped,
	})

	if rebuild == state.Rebuild && restored > 0 {
		s.Broadcast(ctx, rebuildNotice(restored, dropped))
	}

	if restored > 0 {
		if err := s.notifications.Push(state.Notification{
			Kind:    state.NotifySessionResumed,
			Message: fmt.Sprintf("Restored %d session(s) after restart", restored),
		}); err != nil {
			logger.WarnCF("bridge", "Could not push resume notification", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return rebuild, nil
}

func rebuildNotice(restored, dropped int) string {
	total := restored + dropped
	notice := fmt.Sprintf("🔄 Bot rebuilt and restarted.\n✅ Restored %d of %d session(s).", restored, total)
	if dropped > 0 {
		notice += fmt.Sprintf("\n⚠️ %d session(s) could not be restored (expired or tmux session not found).", dropped)
	}
	return notice
}

// Run starts the cooperative loops and blocks until ctx is cancelled, then
// flushes state.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.outputLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.notificationLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	if err := s.registry.Save(); err != nil {
		logger.ErrorCF("bridge", "Final session save failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	logger.InfoCF("bridge", "Shutdown complete", nil)
	return nil
}

// outputLoop drives the per-session response state machines.
func (s *Service) outputLoop(ctx context.Context) {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollWaitingSessions(ctx)
		}
	}
}

func (s *Service) pollWaitingSessions(ctx context.Context) {
	for _, key := range s.registry.WaitingKeys() {
		s.maybeTyping(ctx, key)

		res, err := s.registry.PollOutput(ctx, key)
		if err != nil {
			logger.WarnCF("bridge", "Poll failed", map[string]interface{}{
				"session": key.String(),
				"error":   err.Error(),
			})
			continue
		}
		s.handlePollResult(ctx, key, res)
	}
}

// maybeTyping shows the typing indicator at most every 4 seconds per key.
func (s *Service) maybeTyping(ctx context.Context, key session.Key) {
	s.typingMu.Lock()
	last := s.lastTyping[key]
	due := time.Since(last) >= 4*time.Second
	if due {
		s.lastTyping[key] = time.Now()
	}
	s.typingMu.Unlock()

	if due {
		if err := s.chat.Typing(ctx, key.ChatID, key.ThreadID); err != nil {
			logger.DebugCF("bridge", "Typing indicator failed", map[string]interface{}{
				"session": key.String(),
				"error":   err.Error(),
			})
		}
	}
}

func (s *Service) handlePollResult(ctx context.Context, key session.Key, res session.PollResult) {
	switch res.Kind {
	case session.PollProgress:
		s.upsertProgressMessage(ctx, key, res.ProgressMessageID, res.Text)

	case session.PollIncrementalSummary:
		if _, err := s.chat.Send(ctx, key.ChatID, key.ThreadID, res.Text); err != nil {
			logger.WarnCF("bridge", "Incremental summary send failed", map[string]interface{}{
				"session": key.String(),
				"error":   err.Error(),
			})
		}

	case session.PollSummarizing:
		s.upsertProgressMessage(ctx, key, res.ProgressMessageID, "🤖 Summarizing output...")

	case session.PollComplete:
		if res.ProgressMessageID != 0 {
			if err := s.chat.Delete(ctx, key.ChatID, res.ProgressMessageID); err != nil {
				logger.WarnCF("bridge", "Progress message delete failed", map[string]interface{}{
					"session": key.String(),
					"error":   err.Error(),
				})
			}
		}
		s.typingMu.Lock()
		delete(s.lastTyping, key)
		s.typingMu.Unlock()

		text := res.Text
		if text == "" {
			text = "⚠️ Session ended before a response was collected."
		} else {
			switch s.classifyFinal(key, text) {
			case filter.KindClarification:
				text = "❓ " + text
				s.pushWaitingNotification(key, "waiting for clarification")
			case filter.KindActionRequired:
				text = "⚠️ " + text
				s.pushWaitingNotification(key, "action required")
			}
		}

		if _, err := s.chat.SendReply(ctx, key.ChatID, key.ThreadID, res.ReplyTo, text); err != nil {
			logger.WarnCF("bridge", "Final reply send failed", map[string]interface{}{
				"session": key.String(),
				"error":   err.Error(),
			})
		}
	}
}

// classifyFinal classifies a final reply, checking the session adapter's
// own error patterns before the generic rules.
func (s *Service) classifyFinal(key session.Key, text string) filter.Kind {
	if st, err := s.registry.Get(key); err == nil {
		if adapter, ok := adapters.Lookup(st.ToolID); ok {
			for _, line := range strings.Split(text, "\n") {
				trimmed := strings.TrimSpace(line)
				for _, p := range adapter.ErrorPatterns() {
					if p.MatchString(trimmed) {
						return filter.KindActionRequired
					}
				}
			}
		}
	}
	return s.filter.Classify(text)
}

// pushWaitingNotification tells the TUI peer that a session needs the
// user's attention.
func (s *Service) pushWaitingNotification(key session.Key, reason string) {
	name := key.String()
	if st, err := s.registry.Get(key); err == nil {
		name = st.ProjectName
	}
	if err := s.notifications.Push(state.Notification{
		Kind:    state.NotifySessionsWaiting,
		Message: fmt.Sprintf("Session '%s': %s", name, reason),
		Structured: map[string]string{
			"session": name,
			"reason":  reason,
		},
	}); err != nil {
		logger.WarnCF("bridge", "Could not push waiting notification", map[string]interface{}{
			"session": name,
			"error":   err.Error(),
		})
	}
}

// upsertProgressMessage edits the in-place progress message, or sends and
// records a fresh one. A failed edit clears the stale id and sends a fresh
// message in its place.
func (s *Service) upsertProgressMessage(ctx context.Context, key session.Key, messageID int, text string) {
	if messageID != 0 {
		if err := s.chat.Edit(ctx, key.ChatID, messageID, text); err == nil {
			return
		}
		logger.WarnCF("bridge", "Progress edit failed, recreating message", map[string]interface{}{
			"session": key.String(),
		})
		s.registry.ClearProgressMessageID(key)
	}

	newID, err := s.chat.Send(ctx, key.ChatID, key.ThreadID, text)
	if err != nil {
		logger.WarnCF("bridge", "Progress send failed", map[string]interface{}{
			"session": key.String(),
			"error":   err.Error(),
		})
		return
	}
	s.registry.SetProgressMessageID(key, newID)
}

// notificationLoop broadcasts unread notifications from the shared queue to
// every authorized chat. The text is forwarded verbatim.
func (s *Service) notificationLoop(ctx context.Context) {
	interval := s.cfg.NotifyInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcastNotifications(ctx)
		}
	}
}

func (s *Service) broadcastNotifications(ctx context.Context) {
	unread, err := s.notifications.Unread(notificationConsumer)
	if err != nil {
		logger.WarnCF("bridge", "Could not read notifications", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if len(unread) == 0 {
		return
	}

	var ids []string
	for _, n := range unread {
		s.Broadcast(ctx, n.Message)
		ids = append(ids, n.ID)
	}
	if err := s.notifications.MarkRead(notificationConsumer, ids); err != nil {
		logger.WarnCF("bridge", "Could not mark notifications read", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Broadcast sends text to every authorized chat.
func (s *Service) Broadcast(ctx context.Context, text string) {
	for _, chatID := range s.authorized.List() {
		if _, err := s.chat.Send(ctx, chatID, 0, text); err != nil {
			logger.WarnCF("bridge", "Broadcast send failed", map[string]interface{}{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		}
	}
}
