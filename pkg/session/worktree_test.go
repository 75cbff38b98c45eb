package session

import (
	"context"
	"errors"
	"testing"
)

func TestAutoCommitCleanTree(t *testing.T) {
	git := newScriptedGit()
	// status --porcelain returns nothing: clean tree, no commit.

	committed, err := autoCommit(context.Background(), git, "/repo", "demo")
	if err != nil {
		t.Fatalf("autoCommit: %v", err)
	}
	if committed {
		t.Error("clean tree must not commit")
	}
	for _, call := range git.calls {
		if call == "commit -m WIP: Auto-commit from Commander session 'demo'" {
			t.Error("commit issued on clean tree")
		}
	}
}

func TestAutoCommitDirtyTree(t *testing.T) {
	git := newScriptedGit()
	git.results["status --porcelain"] = "?? new.go"

	committed, err := autoCommit(context.Background(), git, "/repo", "demo")
	if err != nil {
		t.Fatalf("autoCommit: %v", err)
	}
	if !committed {
		t.Error("dirty tree must commit")
	}
}

func TestDefaultBranchPrefersMain(t *testing.T) {
	git := newScriptedGit()

	branch, err := defaultBranch(context.Background(), git, "/repo")
	if err != nil {
		t.Fatalf("defaultBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("branch = %q, want main", branch)
	}
}

func TestDefaultBranchFallsBackToMaster(t *testing.T) {
	git := newScriptedGit()
	git.errs["rev-parse --verify refs/heads/main"] = errors.New("unknown revision")

	branch, err := defaultBranch(context.Background(), git, "/repo")
	if err != nil {
		t.Fatalf("defaultBranch: %v", err)
	}
	if branch != "master" {
		t.Errorf("branch = %q, want master", branch)
	}
}

func TestDefaultBranchNeither(t *testing.T) {
	git := newScriptedGit()
	git.errs["rev-parse --verify refs/heads/main"] = errors.New("unknown revision")
	git.errs["rev-parse --verify refs/heads/master"] = errors.New("unknown revision")

	if _, err := defaultBranch(context.Background(), git, "/repo"); err == nil {
		t.Error("expected error when neither branch exists")
	}
}

func TestMergeFailureKeepsWorktree(t *testing.T) {
	git := newScriptedGit()
	git.errs["merge --no-ff session/feat1"] = errors.New("merge conflict")

	wt := &WorktreeInfo{
		WorktreePath: "/repo/.worktrees/feat1",
		BranchName:   "session/feat1",
		ParentRepo:   "/repo",
	}
	if _, err := mergeAndRemoveWorktree(context.Background(), git, wt); err == nil {
		t.Fatal("expected merge error")
	}

	for _, call := range git.calls {
		if call == "worktree remove --force /repo/.worktrees/feat1" {
			t.Error("worktree removed despite failed merge")
		}
		if call == "branch -d session/feat1" {
			t.Error("branch deleted despite failed merge")
		}
	}
}

func TestAddWorktreePathAndBranch(t *testing.T) {
	git := newScriptedGit()

	path, branch, err := addWorktree(context.Background(), git, "/repo", "feat1")
	if err != nil {
		t.Fatalf("addWorktree: %v", err)
	}
	if path != "/repo/.worktrees/feat1" {
		t.Errorf("path = %q", path)
	}
	if branch != "session/feat1" {
		t.Errorf("branch = %q", branch)
	}
	if len(git.calls) != 1 || git.calls[0] != "worktree add -b session/feat1 /repo/.worktrees/feat1" {
		t.Errorf("git calls = %v", git.calls)
	}
}
