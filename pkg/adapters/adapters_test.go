package adapters

import "testing"

func TestLookup(t *testing.T) {
	for _, id := range []string{"claude-code", "mpm", "aider", "shell"} {
		a, ok := Lookup(id)
		if !ok {
			t.Fatalf("adapter %q not registered", id)
		}
		if a.ID() != id {
			t.Errorf("Lookup(%q).ID() = %q", id, a.ID())
		}
	}

	if _, ok := Lookup("vim"); ok {
		t.Error("expected lookup miss for unknown adapter")
	}
	if Known("unknown") {
		t.Error("'unknown' is not a launchable adapter")
	}
}

func TestLaunchCommands(t *testing.T) {
	cc, _ := Lookup("claude-code")
	if cc.LaunchCommand("/tmp/proj") != "claude" {
		t.Errorf("unexpected claude-code launch command: %q", cc.LaunchCommand("/tmp/proj"))
	}

	sh, _ := Lookup("shell")
	if sh.LaunchCommand("/tmp/proj") != "" {
		t.Error("shell adapter should not launch anything")
	}
}

func TestInferFromScrollback(t *testing.T) {
	cases := []struct {
		name    string
		capture string
		want    string
	}{
		{"claude banner", "✳ Welcome to Claude Code\n❯ ", "claude-code"},
		{"mpm prompt", "claude-mpm session started\nmpm> ", "mpm"},
		{"aider", "aider v0.50 — main model gpt-4o\n> ", "aider"},
		{"bare shell", "user@host:~/project$ ", "shell"},
		{"empty", "", ToolUnknown},
		{"garbage", "lorem ipsum dolor", ToolUnknown},
	}
	for _, tc := range cases {
		if got := InferFromScrollback(tc.capture); got != tc.want {
			t.Errorf("%s: InferFromScrollback = %q, want %q", tc.name, got, tc.want)
		}
	}
}
