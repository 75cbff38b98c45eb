package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrUnavailable wraps any failure to talk to the tmux server.
var ErrUnavailable = errors.New("tmux unavailable")

// Client executes tmux commands against the local server. Session names are
// opaque identifiers; callers apply naming conventions.
type Client struct {
	bin string
}

// NewClient creates a tmux client using the tmux binary on PATH.
func NewClient() *Client {
	return &Client{bin: "tmux"}
}

// SessionExists checks if a session exists.
func (c *Client) SessionExists(ctx context.Context, name string) bool {
	cmd := exec.CommandContext(ctx, c.bin, "has-session", "-t", name)
	return cmd.Run() == nil
}

// CreateSession creates a new detached session in the given directory.
// Fails if the name is already in use.
func (c *Client) CreateSession(ctx context.Context, name, dir string) error {
	if c.SessionExists(ctx, name) {
		return fmt.Errorf("session %s already exists", name)
	}

	args := []string{"new-session", "-d", "-s", name}
	if dir != "" {
		args = append(args, "-c", dir)
	}

	cmd := exec.CommandContext(ctx, c.bin, args...)
	// Ensure we're not inside another tmux session
	cmd.Env = filterTMUXEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: new-session failed: %s: %v", ErrUnavailable, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// KillSession destroys a session.
func (c *Client) KillSession(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, c.bin, "kill-session", "-t", name)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: kill-session failed: %s: %v", ErrUnavailable, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// SendLine sends text to a session followed by Enter. The text is sent
// literally so shell metacharacters and leading dashes survive intact.
func (c *Client) SendLine(ctx context.Context, name, text string) error {
	send := exec.CommandContext(ctx, c.bin, "send-keys", "-t", name, "-l", text)
	if err := send.Run(); err != nil {
		return fmt.Errorf("%w: send-keys failed: %v", ErrUnavailable, err)
	}
	enter := exec.CommandContext(ctx, c.bin, "send-keys", "-t", name, "Enter")
	if err := enter.Run(); err != nil {
		return fmt.Errorf("%w: send-keys Enter failed: %v", ErrUnavailable, err)
	}
	return nil
}

// CaptureOutput returns the last N lines of the session's combined
// scrollback and visible pane.
func (c *Client) CaptureOutput(ctx context.Context, name string, lines int) (string, error) {
	if lines <= 0 {
		lines = 200
	}
	cmd := exec.CommandContext(ctx, c.bin, "capture-pane", "-t", name, "-p", "-S", "-"+strconv.Itoa(lines))
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: capture-pane failed: %v", ErrUnavailable, err)
	}
	return string(output), nil
}

// ListSessions lists all session names. A missing tmux server yields an
// empty list, not an error.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, c.bin, "list-sessions", "-F", "#{session_name}")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if strings.Contains(stderr.String(), "no server running") {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list-sessions failed: %v", ErrUnavailable, err)
	}
	return parseSessionList(string(output)), nil
}

// filterTMUXEnv filters out the TMUX environment variable so nested session
// creation is not rejected.
func filterTMUXEnv(env []string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			result = append(result, e)
		}
	}
	return result
}

func parseSessionList(output string) []string {
	var sessions []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			sessions = append(sessions, line)
		}
	}
	return sessions
}
