package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/npm-malwatch/npm-malwatch/pkg/orchestrator"
	"github.com/npm-malwatch/npm-malwatch/pkg/preload"
)

type sandboxFlags struct {
	image       string
	pidsLimit   int
	memoryLimit string
	cpuLimit    string
	ephemeral   bool
	observe     bool
}

var sbFlags sandboxFlags

func newSandboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox [flags] -- <command> [args...]",
		Short: "Run the wrapped command inside a locked-down container",
		RunE:  runSandbox,
	}
	cmd.Flags().StringVar(&sbFlags.image, "image", "node:22-alpine", "Container image providing the package manager runtime")
	cmd.Flags().IntVar(&sbFlags.pidsLimit, "pids-limit", 256, "Container pids limit (0 = unset)")
	cmd.Flags().StringVar(&sbFlags.memoryLimit, "memory", "1g", "Container memory limit")
	cmd.Flags().StringVar(&sbFlags.cpuLimit, "cpus", "2", "Container CPU limit")
	cmd.Flags().BoolVar(&sbFlags.ephemeral, "ephemeral", true, "Remove the sandbox's named volumes on completion")
	cmd.Flags().BoolVar(&sbFlags.observe, "observe", true, "Install instrumentation inside the container")
	return cmd
}

// runSandbox implements sandbox mode (§4.F): the wrapped command runs
// inside a read-only, capability-dropped container, with the generated
// preload bind-mounted when --observe is set.
func runSandbox(cmd *cobra.Command, args []string) error {
	command, err := commandAfterDash(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	_, _, sandboxDir := orchestrator.RunPaths(cfg.WorkDir, time.Now(), os.Getpid())
	if err := os.MkdirAll(sandboxDir, 0o755); err != nil {
		return err
	}

	sourceDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return err
	}

	opts := orchestrator.SandboxOptions{
		Runtime:     cfg.ContainerRuntime,
		Image:       sbFlags.image,
		RunDir:      sandboxDir,
		SourceDir:   sourceDir,
		WorkVolume:  "npm-malwatch-work-" + cfg.Session,
		CacheVolume: "npm-malwatch-cache-" + cfg.Session,
		Ephemeral:   sbFlags.ephemeral,
		PidsLimit:   sbFlags.pidsLimit,
		MemoryLimit: sbFlags.memoryLimit,
		CPULimit:    sbFlags.cpuLimit,
		Observe:     sbFlags.observe,
		Command:     command,
	}

	if sbFlags.observe {
		logPath := filepath.Join(sandboxDir, "events.jsonl")
		preloadPath, err := preload.WriteTemp(preload.Config{
			Session:   cfg.Session,
			LogPath:   logPath,
			Filter:    cfg.Filter,
			IncludePM: cfg.IncludePM,
			Hardening: cfg.Hardening,
		}, "")
		if err != nil {
			return err
		}
		defer os.Remove(preloadPath)
		opts.PreloadPath = preloadPath
	}

	logger.Info("sandbox run starting", "session", cfg.Session, "image", opts.Image, "runtime", opts.Runtime)
	code, err := orchestrator.Sandbox(cmd.Context(), opts)
	if err != nil {
		return err
	}

	exitCode = code
	return nil
}
