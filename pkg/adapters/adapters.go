package adapters

import (
	"regexp"
	"strings"
)

// Adapter describes one terminal-based assistant kind: how to launch it and
// how to recognize its prompt and error output in raw scrollback.
type Adapter interface {
	ID() string
	Name() string
	LaunchCommand(path string) string
	IdlePatterns() []*regexp.Regexp
	ErrorPatterns() []*regexp.Regexp
}

// ToolUnknown is the adapter id used when a live session's tool cannot be
// inferred.
const ToolUnknown = "unknown"

type claudeCode struct{}

func (claudeCode) ID() string   { return "claude-code" }
func (claudeCode) Name() string { return "Claude Code" }
func (claudeCode) LaunchCommand(path string) string {
	return "claude"
}
func (claudeCode) IdlePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^❯\s*$`),
		regexp.MustCompile(`^│\s*>?\s*│?$`),
		regexp.MustCompile(`^[╰└]─*[╯┘]$`),
	}
}
func (claudeCode) ErrorPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^error:`),
		regexp.MustCompile(`(?i)api error`),
	}
}

type mpm struct{}

func (mpm) ID() string   { return "mpm" }
func (mpm) Name() string { return "Claude MPM" }
func (mpm) LaunchCommand(path string) string {
	return "claude-mpm"
}
func (mpm) IdlePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^❯\s*$`),
		regexp.MustCompile(`^mpm>\s*$`),
	}
}
func (mpm) ErrorPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^error:`),
	}
}

type aider struct{}

func (aider) ID() string   { return "aider" }
func (aider) Name() string { return "Aider" }
func (aider) LaunchCommand(path string) string {
	return "aider"
}
func (aider) IdlePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^>\s*$`),
		regexp.MustCompile(`^aider.*>\s*$`),
	}
}
func (aider) ErrorPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^error:`),
		regexp.MustCompile(`(?i)^traceback`),
	}
}

type shell struct{}

func (shell) ID() string   { return "shell" }
func (shell) Name() string { return "Shell" }
func (shell) LaunchCommand(path string) string {
	// A plain shell session has nothing to launch; the session's login
	// shell is already running.
	return ""
}
func (shell) IdlePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^[$#%>]\s*$`),
		regexp.MustCompile(`^\S{0,24}[$#%>]\s*$`),
	}
}
func (shell) ErrorPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)command not found`),
		regexp.MustCompile(`(?i)permission denied`),
	}
}

// registry is the closed, ordered set of known adapters. Lookup, IDs and All
// follow this order; InferFromScrollback applies its own order below.
var registry = []Adapter{claudeCode{}, mpm{}, aider{}, shell{}}

// Lookup returns the adapter for the given id.
func Lookup(id string) (Adapter, bool) {
	for _, a := range registry {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Known reports whether id names a registered adapter.
func Known(id string) bool {
	_, ok := Lookup(id)
	return ok
}

// IDs returns the ids of all registered adapters.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for _, a := range registry {
		ids = append(ids, a.ID())
	}
	return ids
}

// All returns the registered adapters in order.
func All() []Adapter {
	return registry
}

// signatures identify an adapter from arbitrary scrollback content, for
// attach-to-existing sessions where nothing was launched by us.
var signatures = map[string]*regexp.Regexp{
	"claude-code": regexp.MustCompile(`(?i)claude`),
	"mpm":         regexp.MustCompile(`(?i)claude-mpm|mpm>`),
	"aider":       regexp.MustCompile(`(?i)aider`),
}

// InferFromScrollback guesses the tool running in a live session from its
// captured output. Returns ToolUnknown when nothing matches.
func InferFromScrollback(capture string) string {
	if strings.TrimSpace(capture) == "" {
		return ToolUnknown
	}
	// mpm before claude-code: "claude-mpm" also contains "claude".
	for _, id := range []string{"mpm", "claude-code", "aider"} {
		if signatures[id].MatchString(capture) {
			return id
		}
	}
	for _, line := range strings.Split(capture, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, p := range (shell{}).IdlePatterns() {
			if trimmed != "" && p.MatchString(trimmed) {
				return "shell"
			}
		}
	}
	return ToolUnknown
}
