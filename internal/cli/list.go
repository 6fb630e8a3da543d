package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/worktree"
)

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the worktrees of the current project",
		Long: `List every worktree registered in the enclosing project's store.

Examples:
  shake list
  shake list --json`,

		Args: noArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			proj, worktrees, err := s.engine.List(cmd.Context(), s.dir)
			if err != nil {
				return err
			}
			return printListResult(cmd.OutOrStdout(), proj, worktrees)
		},
	}

	return cmd
}

// listWorktreeJSON is the JSON output structure for a single worktree.
type listWorktreeJSON struct {
	Branch   string `json:"branch"`
	Path     string `json:"path"`
	Head     string `json:"head,omitempty"`
	Prunable bool   `json:"prunable,omitempty"`
}

// printListResult outputs the worktrees in text or JSON format.
func printListResult(w io.Writer, proj model.Project, worktrees []worktree.WorktreeInfo) error {
	if IsJSONOutput() {
		result := struct {
			Project   string             `json:"project"`
			Root      string             `json:"root"`
			Worktrees []listWorktreeJSON `json:"worktrees"`
		}{
			Project: proj.Name,
			Root:    proj.Root,
			// Empty slice, not nil, so the output shows [] instead of null.
			Worktrees: make([]listWorktreeJSON, 0, len(worktrees)),
		}
		for _, wt := range worktrees {
			result.Worktrees = append(result.Worktrees, listWorktreeJSON{
				Branch:   branchLabel(wt),
				Path:     wt.Path,
				Head:     wt.HEAD,
				Prunable: wt.Prunable,
			})
		}
		return printJSON(w, result)
	}

	if len(worktrees) == 0 {
		fmt.Fprintf(w, "No worktrees in %s.\n", proj.Root)
		return nil
	}

	// The table format is:
	//
	//	BRANCH               PATH
	//	main                 main
	//	feature/login        feature/login (prunable)
	fmt.Fprintf(w, "%-20s %s\n", "BRANCH", "PATH")
	for _, wt := range worktrees {
		path := wt.Path
		if rel, err := filepath.Rel(proj.Root, wt.Path); err == nil {
			path = rel
		}
		if wt.Prunable {
			path += " (prunable)"
		}
		fmt.Fprintf(w, "%-20s %s\n", branchLabel(wt), path)
	}
	return nil
}

// branchLabel returns the short branch name, or "(detached)" when the
// worktree has no branch checked out.
func branchLabel(wt worktree.WorktreeInfo) string {
	if wt.Branch == "" {
		return "(detached)"
	}
	return wt.ShortBranch()
}
