package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/npm-malwatch/npm-malwatch/pkg/orchestrator"
	"github.com/npm-malwatch/npm-malwatch/pkg/preflight"
)

func newPreflightCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight [flags] -- <install cmd>",
		Short: "Run an install command with lifecycle scripts disabled, then report what they would have run",
		RunE:  runPreflight,
	}
}

// runPreflight implements preflight mode (§4.F/§4.G): the wrapped install
// command runs with --ignore-scripts appended, then the resolved project
// root is scanned for lifecycle scripts. It always writes a JSON report
// plus a sibling CSV (§6), regardless of the child's exit code.
func runPreflight(cmd *cobra.Command, args []string) error {
	command, err := commandAfterDash(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	_, reportPath, _ := orchestrator.RunPaths(cfg.WorkDir, time.Now(), os.Getpid())
	if err := os.MkdirAll(filepath.Dir(reportPath), 0o755); err != nil {
		return err
	}

	run := orchestrator.Run{Command: command, WorkDir: cfg.WorkDir}
	opts := preflight.Options{
		ScriptKeys:  cfg.ScriptKeys,
		MaxPackages: cfg.MaxPackages,
		IncludePM:   cfg.IncludePM,
	}

	logger.Info("preflight run starting", "session", cfg.Session, "command", command)
	result, err := orchestrator.Preflight(cmd.Context(), run, cfg.WorkDir, opts)
	if err != nil {
		return err
	}
	if result.PreflightErr != nil {
		logger.Warn("preflight scan reported errors", "error", result.PreflightErr)
	}

	report := *result.Preflight
	if err := writePreflightJSONFile(reportPath, report); err != nil {
		return err
	}
	csvPath := strings.TrimSuffix(reportPath, ".json") + ".csv"
	if err := writePreflightCSVFile(csvPath, report); err != nil {
		logger.Warn("failed to write preflight csv", "path", csvPath, "error", err)
	}

	logger.Info("preflight report written", "path", reportPath, "scanned", report.ScannedCount, "truncated", report.Truncated)

	exitCode = result.ExitCode
	return nil
}
