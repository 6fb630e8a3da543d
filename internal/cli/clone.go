package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/shake/internal/project"
)

// cloneFlags holds the flag values for the clone command.
type cloneFlags struct {
	// branch is the branch to materialize as the first worktree.
	// Empty means the configured default branch.
	branch string
}

// NewCloneCommand creates the "clone" cobra command.
func NewCloneCommand() *cobra.Command {
	flags := &cloneFlags{}

	cmd := &cobra.Command{
		Use:   "clone <uri>",
		Short: "Import a remote repository as a shake project",
		Long: `Clone <uri> into a bare store and create a worktree for one branch.

The project directory is named after the last path segment of the URI
with any .git suffix removed, so git@github.com:owner/repo.git becomes
./repo. If anything fails, the directory is removed again.

Examples:
  shake clone git@github.com:owner/repo.git
  shake clone git@github.com:owner/repo.git --branch develop
  shake clone https://github.com/owner/repo.git`,

		Args: exactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			result, err := s.engine.Clone(cmd.Context(), s.dir, args[0], flags.branch)
			if err != nil {
				return err
			}
			return printCloneResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&flags.branch, "branch", "b", "",
		"Branch to check out (default: the configured default branch, main)")

	return cmd
}

// printCloneResult outputs the imported project in text or JSON format.
func printCloneResult(w io.Writer, result project.CloneResult) error {
	if IsJSONOutput() {
		return printJSON(w, result)
	}

	fmt.Fprintf(w, "Cloned %s into %s\n", result.Remote.URI, result.Project.Root)
	fmt.Fprintf(w, "  Branch:   %s\n", result.Branch)
	fmt.Fprintf(w, "  Worktree: %s\n", result.Worktree)
	return nil
}
