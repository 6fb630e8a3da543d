// Package project implements the operations that create and navigate
// bare-store projects: the scaffolder (Init, New), the importer (Clone)
// and the navigator (Checkout, List).
//
// Every operation receives the directory it works in as an argument. The
// process working directory is never read or changed here, so operations
// can run side by side in tests and leave no ambient state behind.
//
// Failure policy: an operation that fails removes everything it created
// on disk before returning the error (see rollback). Directories that
// existed before the operation started are never touched.
package project

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shinji-kodama/shake/internal/bootstrap"
	"github.com/shinji-kodama/shake/internal/config"
	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/process"
	"github.com/shinji-kodama/shake/internal/worktree"
)

// Engine runs project operations against the external tools reachable
// through a process.Runner.
type Engine struct {
	git           *worktree.Manager
	bootstrapper  *bootstrap.Bootstrapper
	logger        *zap.Logger
	defaultBranch string

	// newID names staging workspaces. Replaced in tests for stable paths.
	newID func() string
}

// NewEngine creates an Engine configured by cfg.
func NewEngine(runner process.Runner, cfg config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	branch := cfg.DefaultBranch
	if branch == "" {
		branch = model.DefaultBranch
	}
	return &Engine{
		git:           worktree.NewManager(runner, cfg.Tool("git")),
		bootstrapper:  bootstrap.New(runner, cfg.Tools, cfg.GoModulePrefix, logger),
		logger:        logger,
		defaultBranch: branch,
		newID:         uuid.NewString,
	}
}

// rollback removes paths created by a failed operation, newest first.
type rollback struct {
	paths  []string
	logger *zap.Logger
}

// track records path as created by the current operation.
func (r *rollback) track(path string) {
	r.paths = append(r.paths, path)
}

// run removes every tracked path. Removal errors are logged rather than
// returned so they do not mask the error that triggered the rollback.
func (r *rollback) run() {
	for i := len(r.paths) - 1; i >= 0; i-- {
		path := r.paths[i]
		r.logger.Info("rolling back", zap.String("path", path))
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("rollback failed", zap.String("path", path), zap.Error(err))
		}
	}
}

// validateDirName rejects names that would not produce a single new
// directory entry under the parent directory.
func validateDirName(kind, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return model.NewCLIError(model.ExitInvalidInput, fmt.Sprintf("%s must not be empty", kind))
	case name == "." || name == "..":
		return model.NewCLIError(model.ExitInvalidInput, fmt.Sprintf("invalid %s %q", kind, name))
	case strings.ContainsAny(name, `/\`):
		return model.NewCLIError(model.ExitInvalidInput,
			fmt.Sprintf("invalid %s %q: must not contain path separators", kind, name))
	}
	return nil
}

// mkdirNew creates dir, failing if it already exists.
func mkdirNew(dir string) error {
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return model.WrapCLIError(model.ExitFilesystemError,
				fmt.Sprintf("%s already exists", dir), err)
		}
		return model.WrapCLIError(model.ExitFilesystemError,
			fmt.Sprintf("failed to create %s", dir), err)
	}
	return nil
}
