package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/npm-malwatch/npm-malwatch/pkg/orchestrator"
	"github.com/npm-malwatch/npm-malwatch/pkg/render"
)

// runObserved implements the default mode (§4.F "observed"): launch the
// wrapped command with instrumentation installed, then render the
// aggregated summary and always write its sibling CSV.
func runObserved(cmd *cobra.Command, args []string) error {
	command, err := commandAfterDash(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	logPath, _, _ := orchestrator.RunPaths(cfg.WorkDir, time.Now(), os.Getpid())
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}

	run := orchestrator.Run{
		Command:   command,
		WorkDir:   cfg.WorkDir,
		Session:   cfg.Session,
		Filter:    cfg.Filter,
		IncludePM: cfg.IncludePM,
		Hardening: cfg.Hardening,
		TopN:      cfg.TopN,
	}

	logger.Info("observed run starting", "session", cfg.Session, "log", logPath, "command", command)
	result, err := orchestrator.Observed(cmd.Context(), run, logPath)
	if err != nil {
		return err
	}

	scheme := renderScheme()
	if err := render.SummaryText(cmd.OutOrStdout(), result.Summary, scheme); err != nil {
		return err
	}

	csvPath := strings.TrimSuffix(logPath, ".jsonl") + "-summary.csv"
	if err := writeSummaryCSVFile(csvPath, result.Summary); err != nil {
		logger.Warn("failed to write summary csv", "path", csvPath, "error", err)
	} else {
		logger.Info("summary csv written", "path", csvPath)
	}

	exitCode = result.ExitCode
	return nil
}
