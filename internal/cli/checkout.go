package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/shake/internal/project"
)

// checkoutFlags holds the flag values for the checkout command.
type checkoutFlags struct {
	// create makes a new branch rather than attaching an existing one.
	create bool

	// force rebinds an existing branch name when combined with -b.
	force bool
}

// NewCheckoutCommand creates the "checkout" cobra command.
func NewCheckoutCommand() *cobra.Command {
	flags := &checkoutFlags{}

	cmd := &cobra.Command{
		Use:   "checkout <branch>",
		Short: "Add a worktree for a branch to the current project",
		Long: `Create <project>/<branch> as a worktree of the enclosing project.
The project is found by walking up from the current directory.

Without -b the branch must already exist. With -b a new branch is
created from the store's HEAD; if the name is taken, --force moves it.
A branch that already has a live worktree cannot be moved: git refuses
it even with --force, so remove that worktree first.

Examples:
  shake checkout develop
  shake checkout -b feature/login
  shake checkout -b feature/login --force`,

		Args: exactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			result, err := s.engine.Checkout(cmd.Context(), s.dir, args[0], project.CheckoutOptions{
				Create: flags.create,
				Force:  flags.force,
			})
			if err != nil {
				return err
			}
			return printCheckoutResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVarP(&flags.create, "create", "b", false, "Create a new branch")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Rebind the branch if it already exists (with -b)")

	return cmd
}

// printCheckoutResult outputs the new worktree in text or JSON format.
func printCheckoutResult(w io.Writer, result project.CheckoutResult) error {
	if IsJSONOutput() {
		return printJSON(w, result)
	}

	verb := "Checked out"
	if result.Created {
		verb = "Created branch"
	}
	fmt.Fprintf(w, "%s %s at %s\n", verb, result.Branch, result.Worktree)
	return nil
}
