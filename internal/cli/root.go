// Package cli implements the cobra-based CLI commands for shake.
//
// Each subcommand (init, new, clone, checkout, list) is defined in its own
// file within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinji-kodama/shake/internal/config"
	"github.com/shinji-kodama/shake/internal/logging"
	"github.com/shinji-kodama/shake/internal/model"
	"github.com/shinji-kodama/shake/internal/process"
	"github.com/shinji-kodama/shake/internal/project"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput switches command output and error reports to JSON.
	jsonOutput bool

	// verbose lowers the terminal log level to debug.
	verbose bool

	// configPath overrides the default configuration file location.
	configPath string

	// workDir is the directory commands operate on. Empty means the
	// process working directory.
	workDir string
)

// Build information, set from main via ldflags.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// newRunner creates the process runner commands execute tools with.
// Tests replace it with a process.FakeRunner.
var newRunner = func(logger *zap.Logger, stdout, stderr io.Writer) process.Runner {
	return process.NewExecRunner(logger, stdout, stderr)
}

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action; it only provides
// help text and global flags.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shake",
		Short: "Bare-repository project scaffolder built around git worktrees",
		Long: `shake creates and navigates projects laid out as a bare git store
with one directory per branch:

  myproject/
    .git/      bare store
    main/      worktree for branch main
    feature/   worktree for branch feature

Projects are created with "init" or "new", imported with "clone", and
extended with "checkout".`,

		// Errors are rendered by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default $XDG_CONFIG_HOME/shake/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "directory", "C", "",
		"Run as if shake was started in this directory")

	// Flag parse errors are input errors, not general failures.
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitInvalidInput, "invalid arguments", err)
	})

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewNewCommand())
	rootCmd.AddCommand(NewCloneCommand())
	rootCmd.AddCommand(NewCheckoutCommand())
	rootCmd.AddCommand(NewListCommand())

	return rootCmd
}

// Execute runs the root command with ctx and returns the process exit
// code. Errors are reported on the command's error stream; CLIErrors carry
// their own exit codes and anything else exits with ExitGeneralError.
func Execute(ctx context.Context, rootCmd *cobra.Command) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return int(reportError(rootCmd.ErrOrStderr(), err))
	}
	return 0
}

// reportError prints err and returns the exit code for it. CLIErrors carry
// their own code; anything else is a general error.
func reportError(w io.Writer, err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(w, cliErr.Message, cliErr.Hint, cliErr.Err)
		return cliErr.Code
	}

	printError(w, err.Error(), "", nil)
	return model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message, hint string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"message": message,
		}
		if hint != "" {
			errObj["hint"] = hint
		}
		if underlying != nil {
			errObj["detail"] = underlying.Error()
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
	if hint != "" {
		fmt.Fprintln(w, hint)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// session holds what a command needs once global flags are parsed.
type session struct {
	config config.Config
	logger *zap.Logger
	engine *project.Engine
	dir    string

	closeLog func() error
}

// newSession loads configuration, builds the logger and the engine, and
// resolves the directory the command works in. Callers must defer close.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cmd.ErrOrStderr(), cfg.Log, verbose)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitFilesystemError, "failed to open log file", err)
	}

	dir := workDir
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			_ = closeLog()
			return nil, model.WrapCLIError(model.ExitFilesystemError, "failed to determine working directory", err)
		}
	}

	// Tool output streams to the terminal. In JSON mode it goes to stderr
	// so stdout carries nothing but the result document.
	toolStdout := cmd.OutOrStdout()
	if jsonOutput {
		toolStdout = cmd.ErrOrStderr()
	}
	runner := newRunner(logger, toolStdout, cmd.ErrOrStderr())

	logger.Debug("session ready",
		zap.String("dir", dir),
		zap.String("config", configPath),
		zap.String("default_branch", cfg.DefaultBranch),
	)

	return &session{
		config:   cfg,
		logger:   logger,
		engine:   project.NewEngine(runner, cfg, logger),
		dir:      dir,
		closeLog: closeLog,
	}, nil
}

func (s *session) close() {
	_ = s.closeLog()
}

// exactArgs is cobra.ExactArgs reporting an input error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return model.WrapCLIError(model.ExitInvalidInput, "invalid arguments", err)
		}
		return nil
	}
}

// noArgs is cobra.NoArgs reporting an input error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return model.WrapCLIError(model.ExitInvalidInput, "invalid arguments", err)
	}
	return nil
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
