package session

import "errors"

// Registry errors. All are fail-soft where possible: a persistence failure
// after a successful in-memory mutation is logged, not returned.
var (
	ErrNotConnected    = errors.New("no session connected in this chat")
	ErrBusy            = errors.New("session is busy with a previous request")
	ErrProjectNotFound = errors.New("project not found")
	ErrSessionNotFound = errors.New("terminal session not found")
	ErrUnauthorized    = errors.New("chat is not authorized")
	ErrPathInvalid     = errors.New("path does not exist or is not a directory")
	ErrUnknownTool     = errors.New("unknown tool adapter")
	ErrNotWorktree     = errors.New("not inside a git repository")
)
