package state

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestAuthorizedChats(t *testing.T) {
	dir := t.TempDir()
	a := NewAuthorizedChats(dir)

	if a.Contains(42) {
		t.Error("fresh store should be empty")
	}
	if err := a.Add(42); err != nil {
		t.Fatalf("Add: %v", err)
	}
	a.Add(7)

	if !a.Contains(42) || !a.Contains(7) {
		t.Error("added chats missing")
	}

	ids := a.List()
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 42 {
		t.Errorf("List = %v, want sorted [7 42]", ids)
	}

	reloaded := NewAuthorizedChats(dir)
	if !reloaded.Contains(42) {
		t.Error("authorization not persisted")
	}
}

func TestStateFilesArePrivate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	dir := t.TempDir()
	a := NewAuthorizedChats(dir)
	a.Add(42)

	info, err := os.Stat(filepath.Join(dir, authorizedFileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("state file mode = %o, want 0600", perm)
	}
}
