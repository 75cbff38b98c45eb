package channels

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in       string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"/start", "start", nil, true},
		{"/connect demo", "connect", []string{"demo"}, true},
		{"/connect /tmp/p -a claude-code -n demo", "connect", []string{"/tmp/p", "-a", "claude-code", "-n", "demo"}, true},
		{"/ct feat1", "connect-tree", []string{"feat1"}, true},
		{"/s", "stop", nil, true},
		{"/STATUS", "status", nil, true},
		{"/pair@commander_bot AB2CD3", "pair", []string{"AB2CD3"}, true},
		{"/frobnicate", "frobnicate", nil, true},
		{"plain text", "", nil, false},
		{"@demo hello", "", nil, false},
	}
	for _, tc := range cases {
		cmd, ok := ParseCommand(tc.in)
		if ok != tc.wantOK {
			t.Errorf("ParseCommand(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if cmd.Name != tc.wantName {
			t.Errorf("ParseCommand(%q).Name = %q, want %q", tc.in, cmd.Name, tc.wantName)
		}
		if !reflect.DeepEqual(cmd.Args, tc.wantArgs) {
			t.Errorf("ParseCommand(%q).Args = %v, want %v", tc.in, cmd.Args, tc.wantArgs)
		}
	}
}

func TestParseCommandKnownAndExempt(t *testing.T) {
	cmd, _ := ParseCommand("/frobnicate")
	if cmd.Known() {
		t.Error("unknown command reported as known")
	}

	for _, name := range []string{"/start", "/help", "/pair X"} {
		cmd, _ := ParseCommand(name)
		if !cmd.Known() || !cmd.AuthExempt() {
			t.Errorf("%s should be known and auth-exempt", name)
		}
	}
	for _, name := range []string{"/connect x", "/stop", "/list", "/send x"} {
		cmd, _ := ParseCommand(name)
		if !cmd.Known() || cmd.AuthExempt() {
			t.Errorf("%s should be known and gated", name)
		}
	}
}

func TestParseCommandSendKeepsArgText(t *testing.T) {
	cmd, ok := ParseCommand("/send literal  text  with   spacing")
	if !ok || cmd.Name != "send" {
		t.Fatalf("parse failed: %+v", cmd)
	}
	if cmd.ArgText != "literal  text  with   spacing" {
		t.Errorf("ArgText = %q, spacing must survive", cmd.ArgText)
	}
}

func TestParseConnectArgs(t *testing.T) {
	got, ok := ParseConnectArgs([]string{"demo"})
	if !ok || got.Alias != "demo" || got.IsNew() {
		t.Errorf("alias form: %+v ok=%v", got, ok)
	}

	got, ok = ParseConnectArgs([]string{"/tmp/p", "-a", "aider", "-n", "api"})
	if !ok || !got.IsNew() || got.Path != "/tmp/p" || got.Adapter != "aider" || got.Name != "api" {
		t.Errorf("new form: %+v ok=%v", got, ok)
	}

	if _, ok := ParseConnectArgs(nil); ok {
		t.Error("empty args should not parse")
	}
	if _, ok := ParseConnectArgs([]string{"/tmp/p", "-a", "aider"}); ok {
		t.Error("missing -n should not parse")
	}
	if _, ok := ParseConnectArgs([]string{"/tmp/p", "-x", "y"}); ok {
		t.Error("unknown flag should not parse")
	}
}

func TestParseMention(t *testing.T) {
	alias, rest, ok := ParseMention("@demo run the tests")
	if !ok || alias != "demo" || rest != "run the tests" {
		t.Errorf("got (%q, %q, %v)", alias, rest, ok)
	}

	alias, rest, ok = ParseMention("@demo")
	if !ok || alias != "demo" || rest != "" {
		t.Errorf("bare mention: (%q, %q, %v)", alias, rest, ok)
	}

	if _, _, ok := ParseMention("no mention"); ok {
		t.Error("plain text should not parse as mention")
	}
	if _, _, ok := ParseMention("@ x"); ok {
		t.Error("empty alias should not parse")
	}
}
