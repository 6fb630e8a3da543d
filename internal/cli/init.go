package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/project"
)

// bootstrapFlags binds the ecosystem flags shared by init and new.
type bootstrapFlags struct {
	selection model.BootstrapSelection
}

// register adds one boolean flag per ecosystem to cmd.
func (f *bootstrapFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.selection.Cargo, "cargo", false, "Initialize a Cargo package (cargo init)")
	cmd.Flags().BoolVar(&f.selection.Go, "go", false, "Initialize a Go module (go mod init)")
	cmd.Flags().BoolVar(&f.selection.NPM, "npm", false, "Initialize an npm package (npm init -y)")
	cmd.Flags().BoolVar(&f.selection.Dotnet, "dotnet", false, "Initialize a .NET console project (dotnet new console)")
	cmd.Flags().BoolVar(&f.selection.Rye, "rye", false, "Initialize a Python project (rye init)")
	cmd.Flags().BoolVar(&f.selection.LFS, "lfs", false, "Enable Git LFS in the repository (git lfs install)")
}

// resolve combines the flags with the bootstrap defaults from the config
// file. A flag can only add an ecosystem, never remove a configured one.
func (f *bootstrapFlags) resolve(s *session) model.BootstrapSelection {
	return s.config.Bootstrap.Merge(f.selection)
}

// NewInitCommand creates the "init" cobra command.
func NewInitCommand() *cobra.Command {
	flags := &bootstrapFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Turn the current directory into a shake project",
		Long: `Create a bare store in .git and a worktree for the default branch,
seeded with a README.md and the output of the selected initializers.

The project is named after the directory. The directory must not
already contain a .git entry.

Examples:
  shake init
  shake init --go --lfs
  shake -C ~/src/demo init --cargo`,

		Args: noArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runScaffold(cmd, func(ctx context.Context, s *session) (project.ScaffoldResult, error) {
				return s.engine.Init(ctx, s.dir, flags.resolve(s))
			})
		},
	}

	flags.register(cmd)
	return cmd
}

// NewNewCommand creates the "new" cobra command.
func NewNewCommand() *cobra.Command {
	flags := &bootstrapFlags{}

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new shake project in a new directory",
		Long: `Create directory <name> and initialize it as "shake init" would.
The directory must not exist yet.

Examples:
  shake new demo
  shake new demo --npm`,

		Args: exactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runScaffold(cmd, func(ctx context.Context, s *session) (project.ScaffoldResult, error) {
				return s.engine.New(ctx, s.dir, args[0], flags.resolve(s))
			})
		},
	}

	flags.register(cmd)
	return cmd
}

// runScaffold sets up a session, runs op and prints its result.
func runScaffold(cmd *cobra.Command, op func(context.Context, *session) (project.ScaffoldResult, error)) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := op(cmd.Context(), s)
	if err != nil {
		return err
	}

	return printScaffoldResult(cmd.OutOrStdout(), result)
}

// printScaffoldResult outputs the created project in text or JSON format.
func printScaffoldResult(w io.Writer, result project.ScaffoldResult) error {
	if IsJSONOutput() {
		return printJSON(w, result)
	}

	fmt.Fprintf(w, "Created project %s in %s\n", result.Project.Name, result.Project.Root)
	if len(result.Bootstrapped) > 0 {
		fmt.Fprintf(w, "  Initialized: %s\n", strings.Join(result.Bootstrapped, ", "))
	}
	fmt.Fprintf(w, "  Worktree:    %s\n", result.Worktree)
	fmt.Fprintf(w, "\nNext: cd %s\n", result.Worktree)
	return nil
}
