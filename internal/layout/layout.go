// Package layout implements the on-disk project model shared by every
// shake command: a project root is a directory that directly contains a
// bare store named ".git", and worktrees are directories below it.
//
// Bareness is decided by reading the store's configuration with go-git
// rather than by shelling out, so discovery stays cheap even when it has
// to look at every ancestor of a deeply nested directory.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/shinji-kodama/shake/internal/model"
)

// ErrNoProject is returned by FindRoot when no ancestor of the starting
// directory is a project root.
var ErrNoProject = errors.New("no enclosing project")

// IsProjectRoot reports whether dir directly contains a bare store.
//
// A ".git" file (a worktree's pointer to its store) or a non-bare ".git"
// directory (an ordinary checkout) does not qualify.
func IsProjectRoot(dir string) bool {
	store := filepath.Join(dir, model.StoreDirName)

	// Lstat so that a symlinked .git is never followed; the layout only
	// ever creates a real directory.
	info, err := os.Lstat(store)
	if err != nil || !info.IsDir() {
		return false
	}

	return isBareStore(store)
}

// isBareStore opens path as a repository and checks core.bare.
func isBareStore(path string) bool {
	// PlainOpen treats a directory without its own .git entry as the git
	// directory itself, which is exactly the shape of a bare store.
	repo, err := git.PlainOpen(path)
	if err != nil {
		return false
	}

	cfg, err := repo.Config()
	if err != nil {
		return false
	}
	return cfg.Core.IsBare
}

// FindRoot walks from start towards the filesystem root and returns the
// first directory that is a project root.
//
// The walk is a loop over filepath.Dir, which terminates once Dir returns
// its argument unchanged. Symlinks in start are not resolved, so a loop of
// links can never make the walk revisit a directory. If nothing qualifies
// the error wraps ErrNoProject in a CLIError with ExitNoProject.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", model.WrapCLIError(model.ExitFilesystemError,
			fmt.Sprintf("failed to resolve %s", start), err)
	}

	for {
		if IsProjectRoot(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", model.WrapCLIError(model.ExitNoProject,
		fmt.Sprintf("%s is not inside a shake project", start), ErrNoProject)
}

// Open returns the Project rooted at the enclosing project root of start.
func Open(start string) (model.Project, error) {
	root, err := FindRoot(start)
	if err != nil {
		return model.Project{}, err
	}
	return model.NewProject(root), nil
}
