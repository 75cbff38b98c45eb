package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmatnyc/commander/pkg/filter"
	"github.com/bobmatnyc/commander/pkg/logger"
	"github.com/bobmatnyc/commander/pkg/providers"
)

const (
	finalMaxTokens       = 500
	incrementalMaxTokens = 150
	defaultTimeout       = 30 * time.Second
	fallbackTailLines    = 20
)

const finalSystemPrompt = `You summarize the terminal output of an AI coding assistant for a chat user.
Reply with 2-4 plain sentences describing what happened and the outcome.
Do not include code blocks, terminal chrome, or commentary about yourself.`

const incrementalSystemPrompt = `You summarize in-progress terminal output of an AI coding assistant.
Reply with 2-3 plain sentences describing what the assistant is currently doing.
Do not include code blocks or terminal chrome.`

// Summarizer compresses raw terminal output into short chat replies. It is
// constructible without a provider; in that state every call returns the
// deterministic fallback.
type Summarizer struct {
	provider providers.Provider
	filter   *filter.Filter
	timeout  time.Duration
}

// New creates a Summarizer. provider may be nil (unavailable state).
func New(provider providers.Provider, f *filter.Filter, timeout time.Duration) *Summarizer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Summarizer{provider: provider, filter: f, timeout: timeout}
}

// Available reports whether an LLM endpoint is configured.
func (s *Summarizer) Available() bool {
	return s.provider != nil
}

// SummarizeFinal compresses a (query, raw output) pair into 2-4 sentences.
// Errors never propagate; on any failure the caller receives the cleaned
// tail of the raw output.
func (s *Summarizer) SummarizeFinal(ctx context.Context, query, raw string) string {
	if !s.Available() {
		return s.finalFallback(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("The user asked:\n%s\n\nThe assistant's terminal output:\n%s", query, raw)
	content, err := s.provider.Complete(ctx, finalSystemPrompt, userPrompt, finalMaxTokens)
	if err != nil || strings.TrimSpace(content) == "" {
		if err != nil {
			logger.WarnCF("summarizer", "Final summarization failed, using fallback", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return s.finalFallback(raw)
	}
	return strings.TrimSpace(content)
}

// SummarizeIncremental compresses in-flight output into 2-3 sentences under
// the standard incremental headline.
func (s *Summarizer) SummarizeIncremental(ctx context.Context, raw string, lineCount int) string {
	headline := fmt.Sprintf("📊 Incremental Summary (%d lines):\n", lineCount)

	if !s.Available() {
		return headline + incrementalFallbackBody(lineCount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Terminal output so far (%d lines):\n%s", lineCount, raw)
	content, err := s.provider.Complete(ctx, incrementalSystemPrompt, userPrompt, incrementalMaxTokens)
	if err != nil || strings.TrimSpace(content) == "" {
		if err != nil {
			logger.WarnCF("summarizer", "Incremental summarization failed, using fallback", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return headline + incrementalFallbackBody(lineCount)
	}
	return headline + strings.TrimSpace(content)
}

// finalFallback is the deterministic projection used when the LLM endpoint
// is unavailable: UI noise stripped, truncated to the last 20 lines.
func (s *Summarizer) finalFallback(raw string) string {
	cleaned := s.filter.StripUINoise(raw)
	lines := strings.Split(cleaned, "\n")
	if len(lines) > fallbackTailLines {
		lines = lines[len(lines)-fallbackTailLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func incrementalFallbackBody(lineCount int) string {
	return fmt.Sprintf("Collecting output... %d lines captured so far.", lineCount)
}
