// Package main is the entry point for the sqlcompile CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/sqlcompile/internal/cli"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}

func run(ctx context.Context) error {
	cmd := cli.NewRootCommand()
	cmd.Version = Version
	return cmd.ExecuteContext(ctx)
}
