package worktree

import (
	"context"
	"strings"

	"github.com/shinji-kodama/shake/internal/process"
)

// WorktreeInfo holds metadata about a single Git worktree entry
// as parsed from `git worktree list --porcelain` output.
//
// Example porcelain output for a single worktree block:
//
//	worktree /path/to/project/feature-branch
//	HEAD abc123def456
//	branch refs/heads/feature-branch
type WorktreeInfo struct {
	// Path is the absolute filesystem path to the worktree directory.
	Path string `json:"path"`

	// Branch is the full branch reference (e.g., "refs/heads/main").
	// Empty if the worktree is in a detached HEAD state.
	Branch string `json:"branch,omitempty"`

	// HEAD is the commit SHA that the worktree currently points to.
	HEAD string `json:"head,omitempty"`

	// IsBare indicates whether this entry is the bare store itself.
	IsBare bool `json:"bare,omitempty"`

	// Prunable is set when git reports the worktree directory as missing.
	Prunable bool `json:"prunable,omitempty"`
}

// ShortBranch returns the branch name without the refs/heads/ prefix.
func (w WorktreeInfo) ShortBranch() string {
	return strings.TrimPrefix(w.Branch, "refs/heads/")
}

// AddOptions selects how Add binds a worktree to a branch.
type AddOptions struct {
	// Create makes a new branch for the worktree (`-b`) instead of checking
	// out an existing one.
	Create bool

	// Force has two meanings depending on Create. When attaching, it lets
	// git reuse a path that is registered to a stale worktree (`--force`).
	// When creating, it resets an existing branch of the same name (`-B`).
	Force bool
}

// Manager provides git operations by invoking the git CLI.
type Manager struct {
	runner process.Runner
	git    string
}

// NewManager creates a Manager that runs git through runner.
// gitBinary may be empty, in which case "git" is resolved from PATH.
func NewManager(runner process.Runner, gitBinary string) *Manager {
	if gitBinary == "" {
		gitBinary = "git"
	}
	return &Manager{runner: runner, git: gitBinary}
}

// InitBare creates a bare store at storePath whose HEAD points at branch.
func (m *Manager) InitBare(ctx context.Context, storePath, branch string) error {
	_, err := m.run(ctx, "", "init", "--bare", "--initial-branch="+branch, storePath)
	return err
}

// Init initializes an ordinary (non-bare) repository in dir.
func (m *Manager) Init(ctx context.Context, dir, branch string) error {
	_, err := m.run(ctx, dir, "init", "--initial-branch="+branch)
	return err
}

// CommitAll stages everything in dir and records it as a single commit.
func (m *Manager) CommitAll(ctx context.Context, dir, message string) error {
	if _, err := m.run(ctx, dir, "add", "."); err != nil {
		return err
	}
	_, err := m.run(ctx, dir, "commit", "-m", message)
	return err
}

// RemoteAdd registers url as remote name in the repository at dir.
func (m *Manager) RemoteAdd(ctx context.Context, dir, name, url string) error {
	_, err := m.run(ctx, dir, "remote", "add", name, url)
	return err
}

// RemoteRemove deletes remote name from the repository at dir.
func (m *Manager) RemoteRemove(ctx context.Context, dir, name string) error {
	_, err := m.run(ctx, dir, "remote", "remove", name)
	return err
}

// Remotes lists the remote names configured for the repository at dir.
func (m *Manager) Remotes(ctx context.Context, dir string) ([]string, error) {
	output, err := m.run(ctx, dir, "remote")
	if err != nil {
		return nil, err
	}
	return strings.Fields(output), nil
}

// Push pushes branch to remote and records it as the upstream.
func (m *Manager) Push(ctx context.Context, dir, remote, branch string) error {
	_, err := m.run(ctx, dir, "push", "-u", remote, branch)
	return err
}

// CloneBare fetches uri into a new bare store at storePath. Progress is
// streamed to the terminal because clones can take a while.
func (m *Manager) CloneBare(ctx context.Context, uri, storePath string) error {
	_, err := process.Check(ctx, m.runner, m.git,
		[]string{"clone", "--bare", uri, storePath}, process.RunOpts{Stream: true})
	return err
}

// ConfigSet sets a repository-local configuration value.
func (m *Manager) ConfigSet(ctx context.Context, dir, key, value string) error {
	_, err := m.run(ctx, dir, "config", key, value)
	return err
}

// Add creates a worktree at worktreePath for branch, running git in
// repoPath (the bare store or any worktree of it).
//
// The three forms are:
//
//	git worktree add [--force] <path> <branch>   (attach)
//	git worktree add -b <branch> <path>          (create)
//	git worktree add -B <branch> <path>          (create, rebinding an existing branch)
func (m *Manager) Add(ctx context.Context, repoPath, branch, worktreePath string, opts AddOptions) error {
	args := []string{"worktree", "add"}
	switch {
	case opts.Create && opts.Force:
		args = append(args, "-B", branch, worktreePath)
	case opts.Create:
		args = append(args, "-b", branch, worktreePath)
	case opts.Force:
		args = append(args, "--force", worktreePath, branch)
	default:
		args = append(args, worktreePath, branch)
	}

	_, err := m.run(ctx, repoPath, args...)
	return err
}

// List returns information about all worktrees associated with the given repository.
//
// It runs `git worktree list --porcelain` which produces machine-parseable output.
// Each worktree block is separated by a blank line.
func (m *Manager) List(ctx context.Context, repoPath string) ([]WorktreeInfo, error) {
	output, err := m.run(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	return parsePorcelainOutput(output), nil
}

// BranchExists checks whether a local branch with the given name exists.
//
// Only refs/heads is consulted, so a tag or remote-tracking branch with the
// same name does not count. Any failure, including a broken repository,
// reads as "does not exist" and is left for the following git command to
// report.
func (m *Manager) BranchExists(ctx context.Context, repoPath, branch string) bool {
	result, err := m.runner.Run(ctx, m.git,
		[]string{"rev-parse", "--verify", "--quiet", "refs/heads/" + branch},
		process.RunOpts{Dir: repoPath})
	return err == nil && result.ExitCode == 0
}

// run executes git with args in dir and returns stdout.
func (m *Manager) run(ctx context.Context, dir string, args ...string) (string, error) {
	return process.Check(ctx, m.runner, m.git, args, process.RunOpts{Dir: dir})
}

// parsePorcelainOutput parses the output of `git worktree list --porcelain`
// into a slice of WorktreeInfo structs.
//
// The porcelain format uses blank lines to separate worktree blocks.
// Each block contains key-value pairs (space-separated) and optional
// standalone markers like "bare", "detached" or "prunable <reason>".
func parsePorcelainOutput(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")

	var current *WorktreeInfo
	for _, line := range lines {
		if line == "" {
			if current != nil {
				worktrees = append(worktrees, *current)
				current = nil
			}
			continue
		}

		key, value, _ := strings.Cut(line, " ")

		switch key {
		case "worktree":
			current = &WorktreeInfo{Path: value}
		case "HEAD":
			if current != nil {
				current.HEAD = value
			}
		case "branch":
			if current != nil {
				current.Branch = value
			}
		case "bare":
			if current != nil {
				current.IsBare = true
			}
		case "prunable":
			if current != nil {
				current.Prunable = true
			}
		}
	}

	if current != nil {
		worktrees = append(worktrees, *current)
	}

	return worktrees
}
