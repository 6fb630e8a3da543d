// Package main is the entry point for the shake CLI.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release build. During development they default to "dev",
// "none" and "unknown".
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shinji-kodama/shake/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// Interrupting a hung tool cancels the running command; the operation
	// then rolls back what it created.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.Execute(ctx, cli.NewRootCommand())
	stop()
	os.Exit(code)
}
