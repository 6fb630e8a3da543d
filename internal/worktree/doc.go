// Package worktree provides the git operations shake is built from.
//
// This package wraps git CLI commands (through a process.Runner) to create
// bare stores, seed them with an initial commit, clone remotes, and add or
// list worktrees.
//
// Design decisions:
//   - We shell out to `git` rather than using a Go git library for mutating
//     operations, because worktree support in go-git is limited and users
//     expect the exact behavior of the git they have installed.
//   - Every method takes the directory git should run in explicitly. The
//     shake process never changes its own working directory.
//   - All failures are returned as model.CLIError with ExitToolError, via
//     process.Check.
//   - Requires git >= 2.28 for `init --initial-branch`.
package worktree
