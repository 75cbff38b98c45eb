package session

import (
	"fmt"
	"time"
)

// TerminalPrefix is the naming convention for commander-managed terminal
// sessions.
const TerminalPrefix = "commander-"

// Key identifies a registry entry: a chat, optionally scoped to a forum
// topic thread. ThreadID 0 means a one-to-one chat.
type Key struct {
	ChatID   int64
	ThreadID int
}

func (k Key) String() string {
	if k.ThreadID == 0 {
		return fmt.Sprintf("%d", k.ChatID)
	}
	return fmt.Sprintf("%d:%d", k.ChatID, k.ThreadID)
}

// WorktreeInfo records the git worktree backing a session created with
// ConnectWithWorktree.
type WorktreeInfo struct {
	WorktreePath string `json:"worktree_path"`
	BranchName   string `json:"branch_name"`
	ParentRepo   string `json:"parent_repo"`
}

// Session is the per-chat (or per-topic) state entry. Identity and context
// fields are exported and persisted; response-collection state is volatile
// and owned by the polling engine.
type Session struct {
	Key          Key
	ProjectName  string
	ProjectPath  string
	TerminalName string
	ToolID       string
	Worktree     *WorktreeInfo

	CreatedAt    time.Time
	LastActivity time.Time

	// Volatile response-collection state. Zeroed on restore.
	responseBuffer                  []string
	lastOutputSnapshot              string
	lastOutputTime                  time.Time
	pendingQuery                    string
	pendingReplyTo                  int
	progressMessageID               int
	isWaiting                       bool
	isSummarizing                   bool
	lastProgressLineCount           int
	lastIncrementalSummaryLineCount int
}

// startResponseCollection begins a new collection. Precondition: the
// session is not already waiting.
func (s *Session) startResponseCollection(query, scrollbackSnapshot string, replyTo int, now time.Time) {
	s.pendingQuery = query
	s.pendingReplyTo = replyTo
	s.lastOutputSnapshot = scrollbackSnapshot
	s.lastOutputTime = now
	s.responseBuffer = nil
	s.lastProgressLineCount = 0
	s.lastIncrementalSummaryLineCount = 0
	s.isWaiting = true
	s.isSummarizing = false
}

// resetResponseState clears all response-scope fields atomically. The
// scrollback snapshot and terminal identity survive.
func (s *Session) resetResponseState() {
	s.responseBuffer = nil
	s.pendingQuery = ""
	s.pendingReplyTo = 0
	s.progressMessageID = 0
	s.isWaiting = false
	s.isSummarizing = false
	s.lastProgressLineCount = 0
	s.lastIncrementalSummaryLineCount = 0
}

// Persisted is the serialization projection of Session: identity and
// context only, never collection state.
type Persisted struct {
	ChatID       int64         `json:"chat_id"`
	ThreadID     int           `json:"thread_id,omitempty"`
	ProjectName  string        `json:"project_name"`
	ProjectPath  string        `json:"project_path"`
	TerminalName string        `json:"terminal_name"`
	ToolID       string        `json:"tool_id"`
	Worktree     *WorktreeInfo `json:"worktree_info,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}

func (s *Session) persisted() Persisted {
	return Persisted{
		ChatID:       s.Key.ChatID,
		ThreadID:     s.Key.ThreadID,
		ProjectName:  s.ProjectName,
		ProjectPath:  s.ProjectPath,
		TerminalName: s.TerminalName,
		ToolID:       s.ToolID,
		Worktree:     s.Worktree,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

func (p Persisted) restore() *Session {
	return &Session{
		Key:          Key{ChatID: p.ChatID, ThreadID: p.ThreadID},
		ProjectName:  p.ProjectName,
		ProjectPath:  p.ProjectPath,
		TerminalName: p.TerminalName,
		ToolID:       p.ToolID,
		Worktree:     p.Worktree,
		CreatedAt:    p.CreatedAt,
		LastActivity: p.LastActivity,
	}
}

// Status is a read-only snapshot for /status rendering.
type Status struct {
	ProjectName   string
	TerminalName  string
	ToolID        string
	Worktree      *WorktreeInfo
	IsWaiting     bool
	IsSummarizing bool
	BufferedLines int
	LastActivity  time.Time
	CreatedAt     time.Time
}
