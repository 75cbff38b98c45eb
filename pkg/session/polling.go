package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmatnyc/commander/pkg/logger"
)

// PollKind is one of the five poll outputs of the response state machine.
type PollKind int

const (
	PollNoOutput PollKind = iota
	PollProgress
	PollIncrementalSummary
	PollSummarizing
	PollComplete
)

func (k PollKind) String() string {
	switch k {
	case PollProgress:
		return "progress"
	case PollIncrementalSummary:
		return "incremental_summary"
	case PollSummarizing:
		return "summarizing"
	case PollComplete:
		return "complete"
	default:
		return "no_output"
	}
}

// PollResult is one tick's outcome for a waiting session.
type PollResult struct {
	Kind PollKind
	Text string
	// ReplyTo is the inbound message to thread the final reply to; only
	// meaningful on Complete.
	ReplyTo int
	// ProgressMessageID is the current in-place edit target at the time of
	// the tick; on Complete it is the message to delete.
	ProgressMessageID int
}

// Thresholds of the response state machine.
const (
	progressStep    = 5
	incrementalStep = 50
)

type pollActionKind int

const (
	actNone pollActionKind = iota
	actProgress
	actIncremental
	actSummarizing
	actComplete
)

type pollAction struct {
	kind       pollActionKind
	raw        string
	lines      int
	query      string
	replyTo    int
	progressID int
}

// PollOutput advances the response state machine for the session at key by
// one tick. Terminal capture and summarization happen outside the registry
// lock; only the state transition itself is locked.
func (r *Registry) PollOutput(ctx context.Context, key Key) (PollResult, error) {
	r.mu.RLock()
	s, ok := r.sessions[key]
	if !ok {
		r.mu.RUnlock()
		return PollResult{}, ErrNotConnected
	}
	waiting := s.isWaiting
	terminalName := s.TerminalName
	r.mu.RUnlock()

	if !waiting {
		return PollResult{Kind: PollNoOutput}, nil
	}

	current, err := r.mux.CaptureOutput(ctx, terminalName, r.captureLines)
	if err != nil {
		if !r.mux.SessionExists(ctx, terminalName) {
			// The terminal vanished mid-collection. End the collection with
			// an empty result so the caller can report the session as gone.
			act := r.completeNow(key)
			if act.kind == actComplete {
				return PollResult{
					Kind:              PollComplete,
					Text:              "",
					ReplyTo:           act.replyTo,
					ProgressMessageID: act.progressID,
				}, nil
			}
			return PollResult{Kind: PollNoOutput}, nil
		}
		// Transient capture failure: skip the tick.
		logger.DebugCF("polling", "Capture failed, skipping tick", map[string]interface{}{
			"terminal": terminalName,
			"error":    err.Error(),
		})
		return PollResult{Kind: PollNoOutput}, nil
	}

	act := r.advance(key, current)
	switch act.kind {
	case actIncremental:
		text := r.summarizer.SummarizeIncremental(ctx, act.raw, act.lines)
		return PollResult{Kind: PollIncrementalSummary, Text: text, ProgressMessageID: act.progressID}, nil
	case actProgress:
		text := fmt.Sprintf("📥 Receiving... %d lines captured", act.lines)
		return PollResult{Kind: PollProgress, Text: text, ProgressMessageID: act.progressID}, nil
	case actSummarizing:
		return PollResult{Kind: PollSummarizing, ProgressMessageID: act.progressID}, nil
	case actComplete:
		final := r.summarizer.SummarizeFinal(ctx, act.query, act.raw)
		return PollResult{
			Kind:              PollComplete,
			Text:              final,
			ReplyTo:           act.replyTo,
			ProgressMessageID: act.progressID,
		}, nil
	default:
		return PollResult{Kind: PollNoOutput}, nil
	}
}

// advance performs the locked, in-memory part of one tick.
func (r *Registry) advance(key Key, current string) pollAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok || !s.isWaiting {
		return pollAction{}
	}

	now := r.now()

	if current != s.lastOutputSnapshot {
		newLines := r.filter.FindNewLines(s.lastOutputSnapshot, current)
		s.responseBuffer = append(s.responseBuffer, newLines...)
		s.lastOutputSnapshot = current
		s.lastOutputTime = now
		s.LastActivity = now
	}

	n := len(s.responseBuffer)

	// Incremental summary is checked before progress so a 50-line tick
	// emits the summary, not a duplicate progress bump.
	if n > 0 && n >= s.lastIncrementalSummaryLineCount+incrementalStep {
		s.lastIncrementalSummaryLineCount = n
		// The summary subsumes this tick's progress bump; without this the
		// next line after a summary would immediately re-trigger progress.
		s.lastProgressLineCount = n
		return pollAction{
			kind:       actIncremental,
			raw:        strings.Join(s.responseBuffer, "\n"),
			lines:      n,
			progressID: s.progressMessageID,
		}
	}

	if n >= s.lastProgressLineCount+progressStep {
		s.lastProgressLineCount = n
		return pollAction{kind: actProgress, lines: n, progressID: s.progressMessageID}
	}

	isIdle := !s.lastOutputTime.IsZero() && now.Sub(s.lastOutputTime) >= r.idleThreshold
	hasPrompt := r.filter.IsPromptReady(current)

	if isIdle && hasPrompt && n > 0 {
		if !s.isSummarizing {
			s.isSummarizing = true
			return pollAction{kind: actSummarizing, progressID: s.progressMessageID}
		}
		act := pollAction{
			kind:       actComplete,
			query:      s.pendingQuery,
			raw:        strings.Join(s.responseBuffer, "\n"),
			replyTo:    s.pendingReplyTo,
			progressID: s.progressMessageID,
		}
		s.resetResponseState()
		return act
	}

	return pollAction{}
}

// completeNow force-ends a collection (terminal destroyed mid-response).
func (r *Registry) completeNow(key Key) pollAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok || !s.isWaiting {
		return pollAction{}
	}
	act := pollAction{
		kind:       actComplete,
		query:      s.pendingQuery,
		replyTo:    s.pendingReplyTo,
		progressID: s.progressMessageID,
	}
	s.resetResponseState()
	return act
}
