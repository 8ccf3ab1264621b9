package orchestrator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"

	"github.com/npm-malwatch/npm-malwatch/pkg/malerr"
)

// SandboxOptions configures the container invocation described in §4.F
// "Sandbox": resource caps, volumes, and whether observed-mode wrapping is
// active inside the container.
type SandboxOptions struct {
	// Runtime is the container runtime binary (e.g. "docker", "podman").
	Runtime string
	// Image is the container image providing the package manager runtime.
	Image string
	// RunDir is the sandbox run directory (§4.F default paths,
	// "sandbox-<ts>-<pid>/").
	RunDir string
	// SourceDir is bind-mounted read-only as the package source.
	SourceDir string
	// WorkVolume and CacheVolume are named volumes for the mutable
	// working copy and package-manager cache.
	WorkVolume  string
	CacheVolume string
	// Ephemeral removes WorkVolume/CacheVolume on completion.
	Ephemeral bool

	PidsLimit   int
	MemoryLimit string
	CPULimit    string

	// Observe enables instrumentation inside the container: when true,
	// the preload is bind-mounted and the early-hook env var is set.
	Observe     bool
	PreloadPath string

	// Command is the user command to run inside the container after the
	// init script seeds /work from /src and prepares the package manager.
	Command []string
}

// BuildArgs constructs the container runtime invocation argv implementing
// §4.F's sandbox contract: read-only rootfs, all capabilities dropped,
// no-new-privileges, tmpfs for transient directories, the source bind
// mount, the two named volumes, and (when observing) the preload bind
// mount plus early-hook environment.
func BuildArgs(opts SandboxOptions) []string {
	args := []string{
		"run", "--rm",
		"--read-only",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--tmpfs", "/tmp",
		"--tmpfs", "/run",
		"-v", opts.SourceDir + ":/src:ro",
		"-v", opts.WorkVolume + ":/work",
		"-v", opts.CacheVolume + ":/cache",
	}

	if opts.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(opts.PidsLimit))
	}
	if opts.MemoryLimit != "" {
		args = append(args, "--memory", opts.MemoryLimit)
	}
	if opts.CPULimit != "" {
		args = append(args, "--cpus", opts.CPULimit)
	}

	if opts.Observe && opts.PreloadPath != "" {
		args = append(args, "-v", opts.PreloadPath+":/opt/npm-malwatch/preload.js:ro")
		args = append(args, "-e", "NODE_OPTIONS=--require /opt/npm-malwatch/preload.js")
	}

	args = append(args, opts.Image)
	args = append(args, "sh", "-c", InitScript, "npm-malwatch-init")
	args = append(args, opts.Command...)
	return args
}

// InitScript is the init script BuildArgs runs inside the container (via
// sh -c, with the user command as its arguments): it populates /work from
// /src on first use, prepares the package-manager cache, and ensures the
// requested package manager is available via corepack or a writable-prefix
// install, then executes the user command.
const InitScript = `#!/bin/sh
set -e
if [ ! -f /work/.npm-malwatch-seeded ]; then
  cp -a /src/. /work/
  touch /work/.npm-malwatch-seeded
fi
mkdir -p /cache/npm /cache/pnpm
export NPM_CONFIG_CACHE=/cache/npm
export PNPM_HOME=/cache/pnpm
if command -v corepack >/dev/null 2>&1; then
  corepack enable >/dev/null 2>&1 || true
fi
export PATH="/cache/prefix/bin:$PATH"
case "$1" in
  pnpm|yarn)
    if ! command -v "$1" >/dev/null 2>&1; then
      npm install -g --prefix /cache/prefix "$1" >/dev/null 2>&1 || true
    fi
    ;;
esac
cd /work
exec "$@"
`

// Sandbox runs the container invocation built from opts, inheriting the
// calling process's stdio, and reports the container's exit code.
func Sandbox(ctx context.Context, opts SandboxOptions) (int, error) {
	args := BuildArgs(opts)
	cmd := exec.CommandContext(ctx, opts.Runtime, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if opts.Ephemeral {
		_ = exec.Command(opts.Runtime, "volume", "rm", "-f", opts.WorkVolume, opts.CacheVolume).Run()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, malerr.SandboxUnavailable{Runtime: opts.Runtime, Err: err}
	}
	return 0, nil
}
