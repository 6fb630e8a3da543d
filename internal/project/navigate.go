package project

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/shinji-kodama/shake/internal/layout"
	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/worktree"
)

// CheckoutOptions selects the worktree-creation form used by Checkout.
type CheckoutOptions struct {
	// Create makes a new branch instead of attaching an existing one.
	Create bool

	// Force rebinds an existing branch name when Create is set.
	Force bool
}

// CheckoutResult describes the worktree Checkout created.
type CheckoutResult struct {
	Project  model.Project `json:"project"`
	Branch   string        `json:"branch"`
	Worktree string        `json:"worktree"`
	Created  bool          `json:"created"`
}

// Checkout adds a worktree for branch at <root>/<branch>, where root is
// the project found by walking up from dir.
//
// Without Create the branch must exist and is attached with --force, so a
// stale registration for the same path is reused. With Create a new branch
// is made from the store's HEAD; an existing branch of that name is an
// input error unless Force is also set.
func (e *Engine) Checkout(ctx context.Context, dir, branch string, opts CheckoutOptions) (CheckoutResult, error) {
	if strings.TrimSpace(branch) == "" {
		return CheckoutResult{}, model.NewCLIError(model.ExitInvalidInput, "branch name must not be empty")
	}

	project, err := layout.Open(dir)
	if err != nil {
		return CheckoutResult{}, err
	}

	unlock, err := layout.Lock(project)
	if err != nil {
		return CheckoutResult{}, err
	}
	defer unlock()

	if opts.Create && !opts.Force && e.git.BranchExists(ctx, project.Store(), branch) {
		return CheckoutResult{}, model.NewCLIError(model.ExitInvalidInput,
			fmt.Sprintf("branch %q already exists (use --force to rebind it)", branch))
	}

	worktreePath := project.WorktreePath(branch)
	e.logger.Info("adding worktree",
		zap.String("project", project.Name),
		zap.String("branch", branch),
		zap.String("path", worktreePath),
		zap.Bool("create", opts.Create),
	)

	_, statErr := os.Lstat(worktreePath)
	preexisting := statErr == nil

	addOpts := worktree.AddOptions{Create: opts.Create, Force: opts.Force || !opts.Create}
	if err := e.git.Add(ctx, project.Store(), branch, worktreePath, addOpts); err != nil {
		if !preexisting {
			rb := rollback{logger: e.logger}
			rb.track(worktreePath)
			rb.run()
		}
		return CheckoutResult{}, err
	}

	return CheckoutResult{Project: project, Branch: branch, Worktree: worktreePath, Created: opts.Create}, nil
}

// List returns the project containing dir together with its linked
// worktrees. The bare store's own entry is left out.
func (e *Engine) List(ctx context.Context, dir string) (model.Project, []worktree.WorktreeInfo, error) {
	project, err := layout.Open(dir)
	if err != nil {
		return model.Project{}, nil, err
	}

	all, err := e.git.List(ctx, project.Store())
	if err != nil {
		return model.Project{}, nil, err
	}

	var linked []worktree.WorktreeInfo
	for _, wt := range all {
		if wt.IsBare {
			continue
		}
		linked = append(linked, wt)
		project.Worktrees = append(project.Worktrees, wt.ShortBranch())
	}
	return project, linked, nil
}
