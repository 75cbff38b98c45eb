package state

import "testing"

func TestProjectStoreRegisterAndLookup(t *testing.T) {
	dir := t.TempDir()
	s := NewProjectStore(dir)

	if _, ok := s.Lookup("demo"); ok {
		t.Error("lookup on empty store should miss")
	}

	if err := s.Register(Project{Name: "demo", Path: "/tmp/demo", ToolID: "claude-code"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, ok := s.Lookup("demo")
	if !ok || p.Path != "/tmp/demo" || p.ToolID != "claude-code" {
		t.Errorf("lookup = %+v ok=%v", p, ok)
	}
	if p.RegisteredAt.IsZero() {
		t.Error("registration time not stamped")
	}

	// Re-registering replaces, not duplicates.
	s.Register(Project{Name: "demo", Path: "/srv/demo", ToolID: "aider"})
	if got := len(s.List()); got != 1 {
		t.Fatalf("expected 1 project, got %d", got)
	}
	p, _ = s.Lookup("demo")
	if p.Path != "/srv/demo" || p.ToolID != "aider" {
		t.Errorf("replacement not applied: %+v", p)
	}

	reloaded := NewProjectStore(dir)
	if _, ok := reloaded.Lookup("demo"); !ok {
		t.Error("project not persisted")
	}
}
