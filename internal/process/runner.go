// Package process runs external commands for shake.
//
// Every tool shake drives (git, cargo, go, npm, dotnet, rye) is treated as
// an opaque process: it receives an argument vector and a working directory,
// runs to completion, and reports an exit status. The Runner interface lets
// the orchestration code be exercised with a scripted fake in tests.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/shinji-kodama/shake/internal/model"
)

// Result holds the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunOpts holds optional parameters for command execution.
type RunOpts struct {
	Dir string            // working directory; empty means the current one
	Env map[string]string // extra environment variables (overlay)

	// Stream copies the child's output to the runner's terminal writers in
	// addition to capturing it. Used for tools whose progress the user
	// should see (clone, ecosystem initializers).
	Stream bool
}

// Runner is the interface for running external commands.
type Runner interface {
	// Run executes a command and waits for it to exit.
	// A process that exits non-zero is reported through Result.ExitCode,
	// not through the error. The error is reserved for failures to run the
	// process at all (binary not found, context canceled, I/O failure).
	Run(ctx context.Context, name string, args []string, opts RunOpts) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct {
	// Stdout and Stderr receive streamed output when RunOpts.Stream is set.
	// Nil writers discard it.
	Stdout io.Writer
	Stderr io.Writer

	logger *zap.Logger
}

// NewExecRunner creates an ExecRunner that streams to the given writers
// and logs each invocation at debug level.
func NewExecRunner(logger *zap.Logger, stdout, stderr io.Writer) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{Stdout: stdout, Stderr: stderr, logger: logger}
}

// Run executes the command and captures stdout/stderr.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, opts RunOpts) (Result, error) {
	// #nosec G204 -- argv is assembled by shake, never passed through a shell
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if opts.Stream {
		if r.Stdout != nil {
			cmd.Stdout = io.MultiWriter(&stdout, r.Stdout)
		}
		if r.Stderr != nil {
			cmd.Stderr = io.MultiWriter(&stderr, r.Stderr)
		}
	}

	if len(opts.Env) > 0 {
		cmd.Env = cmd.Environ()
		for k, v := range opts.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	r.logger.Debug("exec", zap.String("cmd", CommandLine(name, args)), zap.String("dir", opts.Dir))

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Debug("exec failed",
				zap.String("cmd", name),
				zap.Int("exit", result.ExitCode),
				zap.String("stderr", strings.TrimSpace(result.Stderr)))
			return result, nil
		}
		return result, err
	}

	return result, nil
}

// Check runs name with args through r and converts every kind of failure
// into a *model.CLIError with ExitToolError, so callers handle a single
// error value. On success the captured stdout is returned.
func Check(ctx context.Context, r Runner, name string, args []string, opts RunOpts) (string, error) {
	result, err := r.Run(ctx, name, args, opts)
	line := CommandLine(name, args)
	if err != nil {
		return "", model.WrapCLIError(model.ExitToolError, fmt.Sprintf("failed to run %s", line), err)
	}
	if result.ExitCode != 0 {
		message := fmt.Sprintf("%s failed", line)
		if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
			message = fmt.Sprintf("%s: %s", message, lastLine(stderr))
		}
		return "", model.WrapCLIError(model.ExitToolError, message, fmt.Errorf("exit status %d", result.ExitCode))
	}
	return result.Stdout, nil
}

// CommandLine renders name and args for messages and logs.
func CommandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// lastLine keeps error output to one line; tools like git print hints
// before the actual fatal message.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
