package bridge

import (
	"context"
	"strings"
	"testing"

	"github.com/bobmatnyc/commander/pkg/channels"
	"github.com/bobmatnyc/commander/pkg/session"
	"github.com/bobmatnyc/commander/pkg/state"
)

func TestHandleStatus(t *testing.T) {
	h := newHarness(t)
	key := session.Key{ChatID: 42}
	h.connect(key, "demo")
	h.mux.setCapture("commander-demo", "compiled ok\nall tests green\n❯ ")

	h.service.handleStatus(context.Background(), channels.Inbound{ChatID: 42})

	ops := h.chat.snapshot()
	if len(ops) != 1 {
		t.Fatalf("expected one status reply, got %v", ops)
	}
	status := ops[0]
	for _, want := range []string{"demo", "commander-demo", "State: idle", "all tests green"} {
		if !strings.Contains(status, want) {
			t.Errorf("status missing %q:\n%s", want, status)
		}
	}
	if strings.Contains(status, "❯") {
		t.Errorf("screen preview must be cleaned:\n%s", status)
	}
}

func TestHandleStatusNotConnected(t *testing.T) {
	h := newHarness(t)
	h.service.handleStatus(context.Background(), channels.Inbound{ChatID: 42})

	ops := h.chat.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], "No session connected") {
		t.Errorf("ops = %v", ops)
	}
}

func TestHandleListButtons(t *testing.T) {
	h := newHarness(t)
	h.service.projects.Register(state.Project{Name: "demo", Path: "/tmp/demo", ToolID: "claude-code"})
	h.service.projects.Register(state.Project{Name: "api", Path: "/tmp/api", ToolID: "aider"})

	h.service.handleList(context.Background(), channels.Inbound{ChatID: 42})

	ops := h.chat.snapshot()
	if len(ops) != 1 || !strings.HasPrefix(ops[0], "keyboard[") || !strings.Contains(ops[0], "buttons=2") {
		t.Errorf("expected a keyboard with two buttons, got %v", ops)
	}
}

func TestHandleSessionsButtons(t *testing.T) {
	h := newHarness(t)
	h.mux.setCapture("commander-demo", "")
	h.mux.setCapture("scratch", "")

	h.service.handleSessions(context.Background(), channels.Inbound{ChatID: 42})

	ops := h.chat.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], "buttons=2") {
		t.Errorf("expected a keyboard with two buttons, got %v", ops)
	}
	if !strings.Contains(ops[0], "commander-demo") || !strings.Contains(ops[0], "scratch") {
		t.Errorf("session names missing: %v", ops)
	}
}

func TestHandleHelp(t *testing.T) {
	h := newHarness(t)

	h.service.HandleCommand(context.Background(), channels.Inbound{ChatID: 42}, channels.Command{Name: "help"})
	ops := h.chat.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], "/connect") || !strings.Contains(ops[0], "/pair") {
		t.Errorf("help text incomplete: %v", ops)
	}

	h.service.HandleCommand(context.Background(), channels.Inbound{ChatID: 42},
		channels.Command{Name: "help", Args: []string{"stop"}})
	ops = h.chat.snapshot()
	if !strings.Contains(ops[1], "/stop") || strings.Contains(ops[1], "/topics") {
		t.Errorf("per-command help wrong: %q", ops[1])
	}
}

func TestHandleMentionConnectsAndSends(t *testing.T) {
	h := newHarness(t)
	h.mux.setCapture("commander-demo", "")

	h.service.HandleMention(context.Background(),
		channels.Inbound{ChatID: 42, MessageID: 5}, "demo", "run the tests")

	if _, err := h.reg.Get(session.Key{ChatID: 42}); err != nil {
		t.Fatalf("mention did not connect: %v", err)
	}
	sent := h.mux.sent["commander-demo"]
	if len(sent) != 1 || sent[0] != "run the tests" {
		t.Errorf("terminal received %v", sent)
	}
}

func TestHandleTextForumChatWide(t *testing.T) {
	h := newHarness(t)
	h.service.groups.SetForum(42)

	h.service.HandleText(context.Background(), channels.Inbound{ChatID: 42, MessageID: 1, Text: "hello"})

	ops := h.chat.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], "forum mode") {
		t.Errorf("chat-wide text in forum chat should get a hint, got %v", ops)
	}
}

func TestHandleConnectUsage(t *testing.T) {
	h := newHarness(t)
	h.service.handleConnect(context.Background(), channels.Inbound{ChatID: 42}, channels.Command{Name: "connect"})

	ops := h.chat.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], "Usage: /connect") {
		t.Errorf("ops = %v", ops)
	}
}

func TestHandleStopReportsSteps(t *testing.T) {
	h := newHarness(t)
	key := session.Key{ChatID: 42}
	h.connect(key, "demo")

	h.service.handleStop(context.Background(), channels.Inbound{ChatID: 42})

	ops := h.chat.snapshot()
	if len(ops) != 1 || !strings.Contains(ops[0], "🛑 Stopped 'demo'") {
		t.Errorf("ops = %v", ops)
	}
	if !strings.Contains(ops[0], "Terminal session destroyed") {
		t.Errorf("stop report incomplete: %v", ops)
	}
	if h.mux.SessionExists(context.Background(), "commander-demo") {
		t.Error("terminal session still exists after stop")
	}
}
