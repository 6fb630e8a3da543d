package project

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/remote"
	"github.com/shinji-kodama/shake/internal/worktree"
)

// fetchRefspec restores remote-tracking branches, which `git clone --bare`
// does not configure.
const fetchRefspec = "+refs/heads/*:refs/remotes/origin/*"

// CloneResult describes a project imported by Clone.
type CloneResult struct {
	Project  model.Project   `json:"project"`
	Remote   model.RemoteRef `json:"remote"`
	Branch   string          `json:"branch"`
	Worktree string          `json:"worktree"`
}

// Clone imports the repository at uri as a new project under parent. The
// project directory is named after the last path segment of uri, and a
// worktree is created for branch (the default branch when empty).
//
// The reference is validated before anything is created. Once the project
// directory exists, any failure removes it again.
func (e *Engine) Clone(ctx context.Context, parent, uri, branch string) (result CloneResult, err error) {
	ref, err := remote.Parse(uri)
	if err != nil {
		return CloneResult{}, err
	}
	if branch == "" {
		branch = e.defaultBranch
	}

	parent, err = filepath.Abs(parent)
	if err != nil {
		return CloneResult{}, model.WrapCLIError(model.ExitFilesystemError, "failed to resolve directory", err)
	}

	project := model.NewProject(filepath.Join(parent, ref.Name))
	log := e.logger.With(zap.String("project", project.Name))

	if err := mkdirNew(project.Root); err != nil {
		return CloneResult{}, err
	}

	rb := rollback{logger: log}
	rb.track(project.Root)
	defer func() {
		if err != nil {
			rb.run()
		}
	}()

	log.Info("cloning", zap.String("uri", ref.URI), zap.String("store", project.Store()))
	if err := e.git.CloneBare(ctx, ref.URI, project.Store()); err != nil {
		return CloneResult{}, model.WrapCLIError(model.ExitToolError,
			fmt.Sprintf("failed to clone %s", ref.URI), err)
	}

	if err := e.git.ConfigSet(ctx, project.Store(), "remote.origin.fetch", fetchRefspec); err != nil {
		return CloneResult{}, err
	}

	worktreePath := project.WorktreePath(branch)
	log.Info("adding worktree", zap.String("branch", branch), zap.String("path", worktreePath))
	if err := e.git.Add(ctx, project.Store(), branch, worktreePath, worktree.AddOptions{}); err != nil {
		return CloneResult{}, model.WrapCLIError(model.ExitToolError,
			fmt.Sprintf("failed to create worktree for branch %q", branch), err)
	}

	project.Worktrees = []string{branch}
	return CloneResult{Project: project, Remote: ref, Branch: branch, Worktree: worktreePath}, nil
}
