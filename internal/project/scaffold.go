package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/worktree"
)

const (
	// stagingPrefix names the temporary directory the first commit is
	// built in. It lives inside the project root so the push to the store
	// never crosses filesystems.
	stagingPrefix = ".shake-staging-"

	initialCommitMessage = "initial commit"

	// seedRemote is the throwaway remote used to push the first commit
	// from the staging repository into the store.
	seedRemote = "origin"
)

// ScaffoldResult describes a project created by Init or New.
type ScaffoldResult struct {
	Project model.Project `json:"project"`

	// Worktree is the absolute path of the default branch's worktree.
	Worktree string `json:"worktree"`

	// Bootstrapped lists the ecosystem initializers that ran.
	Bootstrapped []string `json:"bootstrapped,omitempty"`
}

// New creates directory name under parent and scaffolds a project in it.
// If scaffolding fails the directory is removed again.
func (e *Engine) New(ctx context.Context, parent, name string, sel model.BootstrapSelection) (ScaffoldResult, error) {
	if err := validateDirName("project name", name); err != nil {
		return ScaffoldResult{}, err
	}

	parent, err := filepath.Abs(parent)
	if err != nil {
		return ScaffoldResult{}, model.WrapCLIError(model.ExitFilesystemError, "failed to resolve directory", err)
	}

	root := filepath.Join(parent, name)
	if err := mkdirNew(root); err != nil {
		return ScaffoldResult{}, err
	}
	e.logger.Debug("created project directory", zap.String("path", root))

	result, err := e.Init(ctx, root, sel)
	if err != nil {
		rb := rollback{logger: e.logger}
		rb.track(root)
		rb.run()
		return ScaffoldResult{}, err
	}
	return result, nil
}

// Init turns dir into a project named after dir:
//
//  1. create the bare store at dir/.git
//  2. create a staging workspace and initialize a repository in it
//  3. write a placeholder README.md
//  4. run the selected ecosystem initializers
//  5. commit everything on the default branch
//  6. push that commit into the store through a temporary remote
//  7. delete the staging workspace
//  8. add the default branch's worktree
//  9. drop the temporary remote from the worktree, if it survived
//
// Each step is a precondition for the next. dir must not already contain
// .git or a directory named after the default branch. On failure everything
// created so far is removed; the staging workspace is removed on every path.
func (e *Engine) Init(ctx context.Context, dir string, sel model.BootstrapSelection) (result ScaffoldResult, err error) {
	dir, err = filepath.Abs(dir)
	if err != nil {
		return ScaffoldResult{}, model.WrapCLIError(model.ExitFilesystemError, "failed to resolve directory", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return ScaffoldResult{}, model.WrapCLIError(model.ExitFilesystemError,
			fmt.Sprintf("cannot use %s", dir), err)
	}
	if !info.IsDir() {
		return ScaffoldResult{}, model.NewCLIError(model.ExitFilesystemError,
			fmt.Sprintf("%s is not a directory", dir))
	}

	project := model.NewProject(dir)
	if _, statErr := os.Lstat(project.Store()); statErr == nil {
		return ScaffoldResult{}, model.NewCLIError(model.ExitFilesystemError,
			fmt.Sprintf("%s already contains %s", dir, model.StoreDirName))
	}

	branch := e.defaultBranch
	worktreePath := project.WorktreePath(branch)
	if _, statErr := os.Lstat(worktreePath); statErr == nil {
		return ScaffoldResult{}, model.NewCLIError(model.ExitFilesystemError,
			fmt.Sprintf("%s already exists; it is where the %s worktree goes", worktreePath, branch))
	}

	log := e.logger.With(zap.String("project", project.Name))

	rb := rollback{logger: log}
	defer func() {
		if err != nil {
			rb.run()
		}
	}()

	// Step 1: the bare store.
	log.Info("creating bare store", zap.String("path", project.Store()))
	rb.track(project.Store())
	if err := e.git.InitBare(ctx, project.Store(), branch); err != nil {
		return ScaffoldResult{}, err
	}

	// Steps 2-7 happen in a workspace that never outlives this call.
	ran, err := e.seedStore(ctx, project, branch, sel)
	if err != nil {
		return ScaffoldResult{}, err
	}

	// Step 8: the first worktree.
	log.Info("adding worktree", zap.String("branch", branch), zap.String("path", worktreePath))
	rb.track(worktreePath)
	if err := e.git.Add(ctx, project.Store(), branch, worktreePath, worktree.AddOptions{}); err != nil {
		return ScaffoldResult{}, err
	}

	// Step 9: a relative or absolute path to the store is useless as a
	// remote of the store's own worktree.
	remotes, err := e.git.Remotes(ctx, worktreePath)
	if err != nil {
		return ScaffoldResult{}, err
	}
	if slices.Contains(remotes, seedRemote) {
		log.Debug("removing seed remote", zap.String("remote", seedRemote))
		if err := e.git.RemoteRemove(ctx, worktreePath, seedRemote); err != nil {
			return ScaffoldResult{}, err
		}
	}

	project.Worktrees = []string{branch}
	return ScaffoldResult{Project: project, Worktree: worktreePath, Bootstrapped: ran}, nil
}

// seedStore builds the initial commit in a staging workspace and pushes it
// into the store. The workspace directory is named after the project so
// initializers that derive a package name from the directory (npm) pick
// the project name.
func (e *Engine) seedStore(ctx context.Context, project model.Project, branch string, sel model.BootstrapSelection) (ran []string, err error) {
	stagingParent := filepath.Join(project.Root, stagingPrefix+e.newID())
	staging := filepath.Join(stagingParent, project.Name)

	if err := os.MkdirAll(staging, 0755); err != nil {
		_ = os.RemoveAll(stagingParent)
		return nil, model.WrapCLIError(model.ExitFilesystemError, "failed to create staging workspace", err)
	}
	e.logger.Debug("created staging workspace", zap.String("path", staging))

	removed := false
	defer func() {
		if !removed {
			_ = os.RemoveAll(stagingParent)
		}
	}()

	// Step 2.
	if err := e.git.Init(ctx, staging, branch); err != nil {
		return nil, err
	}

	// Step 3.
	readme := fmt.Sprintf("# %s\n", project.Name)
	if err := os.WriteFile(filepath.Join(staging, "README.md"), []byte(readme), 0644); err != nil {
		return nil, model.WrapCLIError(model.ExitFilesystemError, "failed to write README.md", err)
	}

	// Step 4.
	ran, err = e.bootstrapper.Run(ctx, staging, project.Name, sel)
	if err != nil {
		return nil, err
	}

	// Step 5.
	e.logger.Info("committing initial project files")
	if err := e.git.CommitAll(ctx, staging, initialCommitMessage); err != nil {
		return nil, err
	}

	// Step 6.
	if err := e.git.RemoteAdd(ctx, staging, seedRemote, project.Store()); err != nil {
		return nil, err
	}
	if err := e.git.Push(ctx, staging, seedRemote, branch); err != nil {
		return nil, err
	}

	// Step 7. Removal failures here are reported, unlike on error paths,
	// because a leftover workspace would end up looking like a worktree.
	removed = true
	if err := os.RemoveAll(stagingParent); err != nil {
		return nil, model.WrapCLIError(model.ExitFilesystemError, "failed to remove staging workspace", err)
	}
	return ran, nil
}
