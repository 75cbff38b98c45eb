package session

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitRunner executes a git command in a directory and returns combined
// output. The registry depends on this boundary so worktree and stop-merge
// flows are testable without a real repository.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecGit runs git as a subprocess.
type ExecGit struct{}

func (ExecGit) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		return text, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), text, err)
	}
	return text, nil
}

// repoRoot returns the top-level directory of the repository containing dir.
func repoRoot(ctx context.Context, git GitRunner, dir string) (string, error) {
	root, err := git.Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", ErrNotWorktree
	}
	return strings.TrimSpace(root), nil
}

// addWorktree creates .worktrees/<alias>/ on a new session/<alias> branch
// and returns the worktree path and branch name.
func addWorktree(ctx context.Context, git GitRunner, repo, alias string) (string, string, error) {
	worktreePath := filepath.Join(repo, ".worktrees", alias)
	branch := "session/" + alias
	if _, err := git.Run(ctx, repo, "worktree", "add", "-b", branch, worktreePath); err != nil {
		return "", "", fmt.Errorf("creating worktree: %w", err)
	}
	return worktreePath, branch, nil
}

// autoCommit stages and commits all pending changes in dir. A repository
// with nothing to commit is not an error.
func autoCommit(ctx context.Context, git GitRunner, dir, alias string) (bool, error) {
	if _, err := git.Run(ctx, dir, "add", "-A"); err != nil {
		return false, err
	}
	status, err := git.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(status) == "" {
		return false, nil
	}
	message := fmt.Sprintf("WIP: Auto-commit from Commander session '%s'", alias)
	if _, err := git.Run(ctx, dir, "commit", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// defaultBranch resolves the repository's default branch, preferring main
// over master.
func defaultBranch(ctx context.Context, git GitRunner, repo string) (string, error) {
	for _, name := range []string{"main", "master"} {
		if _, err := git.Run(ctx, repo, "rev-parse", "--verify", "refs/heads/"+name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no main or master branch in %s", repo)
}

// mergeAndRemoveWorktree merges session/<alias> into the parent repo's
// default branch with --no-ff, removes the worktree, and deletes the branch
// on a successful merge.
func mergeAndRemoveWorktree(ctx context.Context, git GitRunner, wt *WorktreeInfo) (string, error) {
	branch, err := defaultBranch(ctx, git, wt.ParentRepo)
	if err != nil {
		return "", err
	}
	if _, err := git.Run(ctx, wt.ParentRepo, "checkout", branch); err != nil {
		return branch, fmt.Errorf("checking out %s: %w", branch, err)
	}
	if _, err := git.Run(ctx, wt.ParentRepo, "merge", "--no-ff", wt.BranchName); err != nil {
		return branch, fmt.Errorf("merging %s: %w", wt.BranchName, err)
	}
	if _, err := git.Run(ctx, wt.ParentRepo, "worktree", "remove", "--force", wt.WorktreePath); err != nil {
		return branch, fmt.Errorf("removing worktree: %w", err)
	}
	if _, err := git.Run(ctx, wt.ParentRepo, "branch", "-d", wt.BranchName); err != nil {
		return branch, fmt.Errorf("deleting branch: %w", err)
	}
	return branch, nil
}
