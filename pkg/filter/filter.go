package filter

import (
	"regexp"
	"strings"
)

// Kind classifies a block of terminal output by what the assistant appears
// to be doing.
type Kind int

const (
	KindUnknown Kind = iota
	KindTaskCompletion
	KindClarification
	KindActionRequired
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTaskCompletion:
		return "task_completion"
	case KindClarification:
		return "clarification"
	case KindActionRequired:
		return "action_required"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

var (
	// CSI sequences (ESC [ ... final byte) and OSC sequences (ESC ] ... BEL/ST).
	ansiCSIRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	ansiOSCRe = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

	boxDrawingRe  = regexp.MustCompile(`^[\s─│┌┐└┘├┤┬┴┼╭╮╯╰═║╔╗╚╝╠╣╦╩╬━┃┏┓┗┛•·]+$`)
	promptOnlyRe  = regexp.MustCompile(`^[❯$#%>\s]+$`)
	spinnerRe     = regexp.MustCompile(`^[\s⠁⠂⠄⠆⠇⠋⠙⠹⠸⠼⠴⠦⠧⠏⡿⣟⣯⣷⣾⣽⣻⢿|/\\-]+$`)
	progressBarRe = regexp.MustCompile(`^[\s\[\]#=>▓▒░.\d%()-]+$`)

	clarificationRe = regexp.MustCompile(`(?i)(\?\s*$|need your input|please (?:confirm|choose|clarify)|waiting for (?:your )?(?:input|response))`)
	actionRe        = regexp.MustCompile(`(?i)^(error:|fatal:|permission denied|command not found|no such file or directory)`)
	statusRe        = regexp.MustCompile(`(?i)(^\s*\d+%|\.\.\.\s*$|downloading|installing|compiling|building|running|processing)`)
)

var bannerMarkers = []string{
	"Welcome to",
	"Tips for getting started",
	"? for shortcuts",
	"/help for help",
}

// Filter holds the prompt-ready pattern list. The list is closed and
// ordered; it is fixed at construction.
type Filter struct {
	promptPatterns []*regexp.Regexp
}

// DefaultPromptPatterns covers a bare shell prompt tail and the prompt
// glyphs of the supported assistant adapters.
func DefaultPromptPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^[$#%>]\s*$`),
		regexp.MustCompile(`^❯\s*$`),
		regexp.MustCompile(`^>\s{0,2}$`),
		regexp.MustCompile(`^│\s*>\s*$`),
		regexp.MustCompile(`^\S{0,24}[$#%>]\s*$`),
	}
}

// New creates a Filter with the given ordered prompt patterns. An empty
// list falls back to the defaults.
func New(promptPatterns []*regexp.Regexp) *Filter {
	if len(promptPatterns) == 0 {
		promptPatterns = DefaultPromptPatterns()
	}
	return &Filter{promptPatterns: promptPatterns}
}

// stripAnsi removes terminal escape sequences from s.
func stripAnsi(s string) string {
	s = ansiOSCRe.ReplaceAllString(s, "")
	s = ansiCSIRe.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\r", "")
}

// isNoiseLine reports whether a cleaned line carries no user-facing
// content: blank, box drawing, spinner frames, progress bars, banners.
func isNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if boxDrawingRe.MatchString(trimmed) {
		return true
	}
	if spinnerRe.MatchString(trimmed) {
		return true
	}
	// A bare prompt line is chrome, not output. IsPromptReady still sees
	// it: prompt detection runs on the unfiltered capture.
	if promptOnlyRe.MatchString(trimmed) {
		return true
	}
	// Progress bars need at least one bar character, otherwise plain
	// numeric output would be discarded.
	if progressBarRe.MatchString(trimmed) && strings.ContainsAny(trimmed, "[#=>▓▒░%") {
		return true
	}
	for _, marker := range bannerMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}

// StripUINoise removes escape sequences and drops noise lines.
func (f *Filter) StripUINoise(s string) string {
	cleaned := stripAnsi(s)
	var out []string
	for _, line := range strings.Split(cleaned, "\n") {
		if !isNoiseLine(line) {
			out = append(out, strings.TrimRight(line, " \t"))
		}
	}
	return strings.Join(out, "\n")
}

// cleanLines returns the non-noise lines of s, trimmed on the right.
func (f *Filter) cleanLines(s string) []string {
	cleaned := stripAnsi(s)
	var out []string
	for _, line := range strings.Split(cleaned, "\n") {
		if !isNoiseLine(line) {
			out = append(out, strings.TrimRight(line, " \t"))
		}
	}
	return out
}

// IsPromptReady reports whether the last non-blank line of s matches one of
// the ready-for-input patterns.
func (f *Filter) IsPromptReady(s string) bool {
	cleaned := stripAnsi(s)
	lines := strings.Split(cleaned, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		for _, p := range f.promptPatterns {
			if p.MatchString(trimmed) {
				return true
			}
		}
		return false
	}
	return false
}

// FindNewLines computes the lines that appear in curr but not prev.
// The scrollback is a sliding window: the shared region is a suffix of
// prev's cleaned lines that matches a prefix of curr's. Everything in curr
// beyond the longest such overlap is new. prev == curr yields nil.
func (f *Filter) FindNewLines(prev, curr string) []string {
	if prev == curr {
		return nil
	}

	prevLines := f.cleanLines(prev)
	currLines := f.cleanLines(curr)

	if len(prevLines) == 0 {
		return compactLines(currLines)
	}

	max := len(prevLines)
	if len(currLines) < max {
		max = len(currLines)
	}
	for overlap := max; overlap > 0; overlap-- {
		if linesEqual(prevLines[len(prevLines)-overlap:], currLines[:overlap]) {
			return compactLines(currLines[overlap:])
		}
	}
	return compactLines(currLines)
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func compactLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// CleanScreenPreview returns the last k non-noise lines joined by newline.
func (f *Filter) CleanScreenPreview(s string, k int) string {
	lines := f.cleanLines(s)
	if len(lines) > k {
		lines = lines[len(lines)-k:]
	}
	return strings.Join(lines, "\n")
}

// Classify determines the output kind of s from its last meaningful line.
func (f *Filter) Classify(s string) Kind {
	lines := f.cleanLines(s)
	if len(lines) == 0 {
		return KindUnknown
	}
	last := strings.TrimSpace(lines[len(lines)-1])

	if clarificationRe.MatchString(last) {
		return KindClarification
	}
	for _, line := range lines {
		if actionRe.MatchString(strings.TrimSpace(line)) {
			return KindActionRequired
		}
	}
	if statusRe.MatchString(last) {
		return KindStatus
	}
	return KindTaskCompletion
}
