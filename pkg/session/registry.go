package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bobmatnyc/commander/pkg/adapters"
	"github.com/bobmatnyc/commander/pkg/filter"
	"github.com/bobmatnyc/commander/pkg/logger"
	"github.com/bobmatnyc/commander/pkg/state"
)

const (
	sessionsFileName  = "telegram_sessions.json"
	sessionsFormat    = 1
	maxRestoreAge     = 24 * time.Hour
	defaultCaptureLen = 200
)

// Mux is the terminal-multiplexer capability the registry consumes.
type Mux interface {
	SessionExists(ctx context.Context, name string) bool
	CreateSession(ctx context.Context, name, dir string) error
	KillSession(ctx context.Context, name string) error
	SendLine(ctx context.Context, name, text string) error
	CaptureOutput(ctx context.Context, name string, lines int) (string, error)
	ListSessions(ctx context.Context) ([]string, error)
}

// Summarizer is the LLM capability the polling engine consumes. Both calls
// always return text; degradation is the implementation's concern.
type Summarizer interface {
	SummarizeFinal(ctx context.Context, query, raw string) string
	SummarizeIncremental(ctx context.Context, raw string, lineCount int) string
}

type sessionsFile struct {
	FormatVersion int         `json:"format_version"`
	LastSave      time.Time   `json:"last_save"`
	Sessions      []Persisted `json:"sessions"`
}

// Registry owns the authoritative chat-to-session map and its persistence.
// A single readers-writer lock protects the map; the lock is held only
// across in-memory work, never across mux, git, LLM, or file I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Key]*Session

	mux        Mux
	filter     *filter.Filter
	summarizer Summarizer
	git        GitRunner

	projects   *state.ProjectStore
	pairings   *state.PairingStore
	authorized *state.AuthorizedChats

	filePath      string
	captureLines  int
	idleThreshold time.Duration
	now           func() time.Time
}

// Options configures a Registry.
type Options struct {
	StateDir      string
	Mux           Mux
	Filter        *filter.Filter
	Summarizer    Summarizer
	Git           GitRunner
	Projects      *state.ProjectStore
	Pairings      *state.PairingStore
	Authorized    *state.AuthorizedChats
	CaptureLines  int
	IdleThreshold time.Duration
}

// NewRegistry creates an empty registry. Call Load to restore persisted
// sessions.
func NewRegistry(opts Options) *Registry {
	captureLines := opts.CaptureLines
	if captureLines <= 0 {
		captureLines = defaultCaptureLen
	}
	idle := opts.IdleThreshold
	if idle <= 0 {
		idle = 1500 * time.Millisecond
	}
	git := opts.Git
	if git == nil {
		git = ExecGit{}
	}
	return &Registry{
		sessions:      make(map[Key]*Session),
		mux:           opts.Mux,
		filter:        opts.Filter,
		summarizer:    opts.Summarizer,
		git:           git,
		projects:      opts.Projects,
		pairings:      opts.Pairings,
		authorized:    opts.Authorized,
		filePath:      filepath.Join(opts.StateDir, sessionsFileName),
		captureLines:  captureLines,
		idleThreshold: idle,
		now:           time.Now,
	}
}

// Connect resolves alias to a project or a live terminal session and
// creates (or replaces) the Session at key. Returns the project name and
// tool id of the connected session.
func (r *Registry) Connect(ctx context.Context, key Key, alias string) (string, string, error) {
	// (1) Registered project whose name equals alias.
	if r.projects != nil {
		if project, ok := r.projects.Lookup(alias); ok {
			return r.connectProject(ctx, key, project)
		}
	}

	// (2) Live terminal session named commander-<alias>, <alias>, or whose
	// tail matches <alias>.
	terminalName, err := r.resolveTerminal(ctx, alias)
	if err != nil {
		return "", "", err
	}

	toolID := r.inferTool(ctx, terminalName)
	r.putSession(key, &Session{
		Key:          key,
		ProjectName:  alias,
		ProjectPath:  "unknown",
		TerminalName: terminalName,
		ToolID:       toolID,
	})
	r.saveSoft()
	return alias, toolID, nil
}

func (r *Registry) connectProject(ctx context.Context, key Key, project state.Project) (string, string, error) {
	terminalName := TerminalPrefix + project.Name
	if !r.mux.SessionExists(ctx, terminalName) {
		if err := r.mux.CreateSession(ctx, terminalName, project.Path); err != nil {
			return "", "", err
		}
		if adapter, ok := adapters.Lookup(project.ToolID); ok {
			if launch := adapter.LaunchCommand(project.Path); launch != "" {
				if err := r.mux.SendLine(ctx, terminalName, launch); err != nil {
					return "", "", err
				}
			}
		}
	}

	r.putSession(key, &Session{
		Key:          key,
		ProjectName:  project.Name,
		ProjectPath:  project.Path,
		TerminalName: terminalName,
		ToolID:       project.ToolID,
	})
	r.saveSoft()
	return project.Name, project.ToolID, nil
}

// resolveTerminal finds a live terminal session matching alias by the
// lookup conventions.
func (r *Registry) resolveTerminal(ctx context.Context, alias string) (string, error) {
	for _, candidate := range []string{TerminalPrefix + alias, alias} {
		if r.mux.SessionExists(ctx, candidate) {
			return candidate, nil
		}
	}

	names, err := r.mux.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if strings.HasSuffix(name, "-"+alias) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrProjectNotFound, alias)
}

func (r *Registry) inferTool(ctx context.Context, terminalName string) string {
	capture, err := r.mux.CaptureOutput(ctx, terminalName, r.captureLines)
	if err != nil {
		return adapters.ToolUnknown
	}
	return adapters.InferFromScrollback(capture)
}

// Attach connects to an existing terminal session by exact name.
func (r *Registry) Attach(ctx context.Context, key Key, terminalName string) error {
	if !r.mux.SessionExists(ctx, terminalName) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, terminalName)
	}

	toolID := r.inferTool(ctx, terminalName)
	r.putSession(key, &Session{
		Key:          key,
		ProjectName:  strings.TrimPrefix(terminalName, TerminalPrefix),
		ProjectPath:  "unknown",
		TerminalName: terminalName,
		ToolID:       toolID,
	})
	r.saveSoft()
	return nil
}

// ConnectNew validates path and tool, registers a project record, and
// connects to it.
func (r *Registry) ConnectNew(ctx context.Context, key Key, path, toolID, alias string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathInvalid, path)
	}
	if !adapters.Known(toolID) {
		return fmt.Errorf("%w: %s (known: %s)", ErrUnknownTool, toolID, strings.Join(adapters.IDs(), ", "))
	}

	if err := r.projects.Register(state.Project{Name: alias, Path: path, ToolID: toolID}); err != nil {
		logger.WarnCF("registry", "Failed to persist project record", map[string]interface{}{
			"project": alias,
			"error":   err.Error(),
		})
	}

	_, _, err = r.Connect(ctx, key, alias)
	return err
}

// ConnectWithWorktree creates .worktrees/<alias>/ on branch
// session/<alias> under the repository containing the working directory,
// starts a terminal session there, launches the default adapter, and
// records the worktree on the new Session.
func (r *Registry) ConnectWithWorktree(ctx context.Context, key Key, alias string) (string, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("resolving working directory: %w", err)
	}
	repo, err := repoRoot(ctx, r.git, cwd)
	if err != nil {
		return "", "", err
	}

	worktreePath, branch, err := addWorktree(ctx, r.git, repo, alias)
	if err != nil {
		return "", "", err
	}

	terminalName := TerminalPrefix + alias
	if err := r.mux.CreateSession(ctx, terminalName, worktreePath); err != nil {
		return "", "", err
	}

	toolID := "claude-code"
	if adapter, ok := adapters.Lookup(toolID); ok {
		if launch := adapter.LaunchCommand(worktreePath); launch != "" {
			if err := r.mux.SendLine(ctx, terminalName, launch); err != nil {
				return "", "", err
			}
		}
	}

	r.putSession(key, &Session{
		Key:          key,
		ProjectName:  alias,
		ProjectPath:  worktreePath,
		TerminalName: terminalName,
		ToolID:       toolID,
		Worktree: &WorktreeInfo{
			WorktreePath: worktreePath,
			BranchName:   branch,
			ParentRepo:   repo,
		},
	})
	r.saveSoft()
	return worktreePath, branch, nil
}

// Disconnect removes the Session at key without touching the underlying
// terminal session. Returns the project name.
func (r *Registry) Disconnect(key Key) (string, error) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return "", ErrNotConnected
	}
	delete(r.sessions, key)
	r.mu.Unlock()

	r.saveSoft()
	return s.ProjectName, nil
}

// StopReport summarizes what Stop did, for the chat reply.
type StopReport struct {
	ProjectName       string
	Committed         bool
	MergedInto        string
	WorktreeRemoved   bool
	TerminalDestroyed bool
}

// Stop commits pending work, merges and removes a worktree session's
// branch, destroys the terminal session, and removes the Session.
func (r *Registry) Stop(ctx context.Context, key Key) (*StopReport, error) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotConnected
	}
	alias := s.ProjectName
	path := s.ProjectPath
	terminalName := s.TerminalName
	worktree := s.Worktree
	r.mu.Unlock()

	report := &StopReport{ProjectName: alias}

	if path != "" && path != "unknown" {
		committed, err := autoCommit(ctx, r.git, path, alias)
		if err != nil {
			logger.WarnCF("registry", "Auto-commit failed during stop", map[string]interface{}{
				"session": alias,
				"error":   err.Error(),
			})
		}
		report.Committed = committed
	}

	if worktree != nil {
		branch, err := mergeAndRemoveWorktree(ctx, r.git, worktree)
		if err != nil {
			logger.WarnCF("registry", "Worktree merge failed during stop", map[string]interface{}{
				"session": alias,
				"error":   err.Error(),
			})
		} else {
			report.MergedInto = branch
			report.WorktreeRemoved = true
		}
	}

	if err := r.mux.KillSession(ctx, terminalName); err != nil {
		logger.WarnCF("registry", "Failed to destroy terminal session", map[string]interface{}{
			"terminal": terminalName,
			"error":    err.Error(),
		})
	} else {
		report.TerminalDestroyed = true
	}

	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
	r.saveSoft()
	return report, nil
}

// SendInput writes text verbatim to the session's terminal, snapshots the
// current scrollback, and starts a response collection. A session already
// collecting rejects with ErrBusy.
func (r *Registry) SendInput(ctx context.Context, key Key, text string, replyTo int) error {
	r.mu.RLock()
	s, ok := r.sessions[key]
	if !ok {
		r.mu.RUnlock()
		return ErrNotConnected
	}
	if s.isWaiting {
		r.mu.RUnlock()
		return ErrBusy
	}
	terminalName := s.TerminalName
	r.mu.RUnlock()

	if err := r.mux.SendLine(ctx, terminalName, text); err != nil {
		return err
	}

	snapshot, err := r.mux.CaptureOutput(ctx, terminalName, r.captureLines)
	if err != nil {
		snapshot = ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok = r.sessions[key]
	if !ok {
		return ErrNotConnected
	}
	if s.isWaiting {
		return ErrBusy
	}
	s.startResponseCollection(text, snapshot, replyTo, r.now())
	s.LastActivity = r.now()
	return nil
}

// WaitingKeys returns a snapshot of keys with an active response
// collection, in stable order.
func (r *Registry) WaitingKeys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []Key
	for key, s := range r.sessions {
		if s.isWaiting {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ChatID != keys[j].ChatID {
			return keys[i].ChatID < keys[j].ChatID
		}
		return keys[i].ThreadID < keys[j].ThreadID
	})
	return keys
}

// Get returns a status snapshot of the session at key.
func (r *Registry) Get(key Key) (*Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, ErrNotConnected
	}
	return &Status{
		ProjectName:   s.ProjectName,
		TerminalName:  s.TerminalName,
		ToolID:        s.ToolID,
		Worktree:      s.Worktree,
		IsWaiting:     s.isWaiting,
		IsSummarizing: s.isSummarizing,
		BufferedLines: len(s.responseBuffer),
		LastActivity:  s.LastActivity,
		CreatedAt:     s.CreatedAt,
	}, nil
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ProgressMessageID returns the in-place edit target for key, 0 when none.
func (r *Registry) ProgressMessageID(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[key]; ok {
		return s.progressMessageID
	}
	return 0
}

// SetProgressMessageID stores the in-place edit target for key. Ignored
// when the session is gone or no longer collecting, so a late store cannot
// violate the reset invariant.
func (r *Registry) SetProgressMessageID(key Key, messageID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok && s.isWaiting {
		s.progressMessageID = messageID
	}
}

// ClearProgressMessageID drops the edit target so the next update sends a
// fresh message. Used after a failed edit.
func (r *Registry) ClearProgressMessageID(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		s.progressMessageID = 0
	}
}

// CreatePairing mints a pairing code for a terminal session.
func (r *Registry) CreatePairing(terminalName, projectName string) (string, error) {
	return r.pairings.Create(terminalName, projectName)
}

// ConsumePairing redeems a code and authorizes the chat.
func (r *Registry) ConsumePairing(code string, chatID int64) (string, string, error) {
	terminalName, projectName, err := r.pairings.Consume(code)
	if err != nil {
		return "", "", err
	}
	if err := r.authorized.Add(chatID); err != nil {
		logger.WarnCF("registry", "Failed to persist authorized chat", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
	return terminalName, projectName, nil
}

// IsAuthorized reports whether a chat may control sessions.
func (r *Registry) IsAuthorized(chatID int64) bool {
	return r.authorized.Contains(chatID)
}

// putSession creates or replaces the Session at key.
func (r *Registry) putSession(key Key, s *Session) {
	now := r.now()
	s.CreatedAt = now
	s.LastActivity = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = s
}

// Save writes all sessions to telegram_sessions.json.
func (r *Registry) Save() error {
	r.mu.RLock()
	file := sessionsFile{
		FormatVersion: sessionsFormat,
		LastSave:      r.now(),
	}
	for _, s := range r.sessions {
		file.Sessions = append(file.Sessions, s.persisted())
	}
	r.mu.RUnlock()

	sort.Slice(file.Sessions, func(i, j int) bool {
		if file.Sessions[i].ChatID != file.Sessions[j].ChatID {
			return file.Sessions[i].ChatID < file.Sessions[j].ChatID
		}
		return file.Sessions[i].ThreadID < file.Sessions[j].ThreadID
	})
	return state.WriteJSONAtomic(r.filePath, &file)
}

// saveSoft persists after a successful mutation; failure is logged, never
// rolled back.
func (r *Registry) saveSoft() {
	if err := r.Save(); err != nil {
		logger.WarnCF("registry", "Failed to persist sessions", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Load restores persisted sessions. Sessions older than 24 hours or whose
// terminal session no longer exists are dropped with a warning. Returns
// (restored, dropped).
func (r *Registry) Load(ctx context.Context) (int, int, error) {
	var file sessionsFile
	if err := state.ReadJSON(r.filePath, &file); err != nil {
		return 0, 0, err
	}

	now := r.now()
	restored, dropped := 0, 0
	for _, p := range file.Sessions {
		if now.Sub(p.LastActivity) > maxRestoreAge {
			logger.WarnCF("registry", "Dropping expired session", map[string]interface{}{
				"session": p.ProjectName,
				"age":     now.Sub(p.LastActivity).String(),
			})
			dropped++
			continue
		}
		if !r.mux.SessionExists(ctx, p.TerminalName) {
			logger.WarnCF("registry", "Dropping session with missing terminal", map[string]interface{}{
				"session":  p.ProjectName,
				"terminal": p.TerminalName,
			})
			dropped++
			continue
		}

		s := p.restore()
		r.mu.Lock()
		r.sessions[s.Key] = s
		r.mu.Unlock()
		restored++
	}

	if dropped > 0 {
		r.saveSoft()
	}
	return restored, dropped, nil
}
