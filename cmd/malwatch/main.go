// Command malwatch drives the observed, preflight, and sandbox modes
// described in SPEC_FULL.md §6, wiring pkg/orchestrator, pkg/preflight,
// pkg/render, internal/config, and internal/logging into a single cobra
// command tree (modeled on yaklabco-dot's cmd/dot/main.go).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/npm-malwatch/npm-malwatch/internal/cliutil"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range cliutil.Suggest(err) {
			fmt.Fprintf(os.Stderr, "  - %s\n", hint)
		}
		return cliutil.ExitCode(err)
	}
	return exitCode
}
