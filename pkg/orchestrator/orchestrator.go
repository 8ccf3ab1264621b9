// Package orchestrator drives the observed child under the three modes
// named in §4.F: observed, preflight, and sandbox. It wires the child's
// environment, launches it, and streams the resulting log through the
// aggregator and root resolver.
//
// Modeled on the teacher's cmd/sub/run.go: os.Environ() copied and patched
// via setEnv, exec.Command with inherited stdio, and exit-code propagation
// through errors.As on *exec.ExitError.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/npm-malwatch/npm-malwatch/pkg/aggregate"
	"github.com/npm-malwatch/npm-malwatch/pkg/malerr"
	"github.com/npm-malwatch/npm-malwatch/pkg/preflight"
	"github.com/npm-malwatch/npm-malwatch/pkg/preload"
	"github.com/npm-malwatch/npm-malwatch/pkg/rootgraph"
	"github.com/npm-malwatch/npm-malwatch/pkg/sink"
)

// Environment variable names read by the generated preload (§6).
const (
	EnvLog       = "NPM_MALWATCH_LOG"
	EnvSession   = "NPM_MALWATCH_SESSION"
	EnvFilter    = "NPM_MALWATCH_FILTER"
	EnvIncludePM = "NPM_MALWATCH_INCLUDE_PM"
	EnvHardening = "NPM_MALWATCH_HARDENING"
)

// earlyHookEnvVars are the runtime early-hook variables augmented with
// "--require <preload>" (§6): Node.js reads NODE_OPTIONS for this purpose.
var earlyHookEnvVars = []string{"NODE_OPTIONS"}

// Run describes one invocation of the core across all three modes.
type Run struct {
	// Command is the observed child's argv (after mode-specific rewriting).
	Command []string
	// WorkDir is the directory the child is launched in; also the base
	// for the default .npm-malwatch run-artifact directory.
	WorkDir string

	Session   string
	Filter    string
	IncludePM bool
	Hardening string

	TopN int

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Result carries everything produced by one run for the caller to render.
type Result struct {
	LogPath      string
	ExitCode     int
	Summary      aggregate.Summary
	Preflight    *preflight.Report
	PreflightErr error
}

// RunPaths returns the default artifact paths for a run rooted at workDir,
// timestamped with ts and the current process id (§4.F "Default paths").
func RunPaths(workDir string, ts time.Time, pid int) (logPath, preflightPath, sandboxDir string) {
	base := filepath.Join(workDir, ".npm-malwatch")
	stamp := ts.UTC().Format("20060102T150405Z")
	logPath = filepath.Join(base, stamp+"-"+itoa(pid)+".jsonl")
	preflightPath = filepath.Join(base, "preflight-"+stamp+"-"+itoa(pid)+".json")
	sandboxDir = filepath.Join(base, "sandbox-"+stamp+"-"+itoa(pid))
	return
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Observed implements the observed mode (§4.F): it writes the preload to a
// temp path, launches the child with the instrumentation environment,
// awaits exit, then streams the log through the aggregator and root
// resolver.
func Observed(ctx context.Context, run Run, logPath string) (Result, error) {
	preloadPath, err := preload.WriteTemp(preload.Config{
		Session:   run.Session,
		LogPath:   logPath,
		Filter:    run.Filter,
		IncludePM: run.IncludePM,
		Hardening: run.Hardening,
	}, "")
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(preloadPath)

	s := sink.New(logPath, sink.Filter{PackageOnly: run.Filter == "package-only", IncludePM: run.IncludePM})
	startup := sink.StartupEvent(time.Now().UnixMilli(), run.Session, os.Getpid(), os.Getppid(), logPath, run.Filter, run.Hardening)
	s.WriteStartup(startup)
	if err := s.Close(); err != nil {
		return Result{}, malerr.LogIOError{Path: logPath, Err: err}
	}

	exitCode, err := launch(ctx, run, childEnv(run, logPath, preloadPath))
	if err != nil {
		return Result{}, err
	}

	summary, err := summarize(logPath, run.WorkDir, run.TopN)
	if err != nil {
		return Result{ExitCode: exitCode, LogPath: logPath}, err
	}
	return Result{LogPath: logPath, ExitCode: exitCode, Summary: summary}, nil
}

// Preflight implements preflight mode (§4.F): it rewrites an install-like
// command to append --ignore-scripts, runs it, then scans the resolved
// project root.
func Preflight(ctx context.Context, run Run, projectRoot string, opts preflight.Options) (Result, error) {
	command := run.Command
	if preflight.ShouldIgnoreScripts(command) {
		command = preflight.AppendIgnoreScripts(command)
	}
	run.Command = command

	exitCode, err := launch(ctx, run, os.Environ())
	if err != nil {
		return Result{}, err
	}

	report, reportErr := preflight.Scan(strings.Join(run.Command, " "), projectRoot, opts)
	result := Result{ExitCode: exitCode, Preflight: &report, PreflightErr: reportErr}
	return result, nil
}

func summarize(logPath, workDir string, topN int) (aggregate.Summary, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return aggregate.Summary{}, malerr.LogIOError{Path: logPath, Err: err}
	}
	defer f.Close()

	summary, err := aggregate.Stream(f, topN)
	if err != nil {
		return aggregate.Summary{}, err
	}

	root := workDir
	if root == "" {
		root = "."
	}
	g, err := rootgraph.BuildGraph(root)
	if err != nil {
		return summary, nil // root resolution is best-effort (§4.I)
	}
	roots, err := rootgraph.DirectRoots(root)
	if err != nil {
		return summary, nil
	}
	summary.MergeRoots(rootgraph.Resolve(g, roots, summary.PackageNames()))
	return summary, nil
}

func childEnv(run Run, logPath, preloadPath string) []string {
	env := os.Environ()
	env = setEnv(env, EnvLog, logPath)
	env = setEnv(env, EnvSession, run.Session)
	env = setEnv(env, EnvFilter, run.Filter)
	env = setEnv(env, EnvIncludePM, boolFlag(run.IncludePM))
	env = setEnv(env, EnvHardening, run.Hardening)

	for _, hookVar := range earlyHookEnvVars {
		env = appendEarlyHook(env, hookVar, preloadPath)
	}
	return env
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

// appendEarlyHook joins "--require <preloadPath>" to hookVar's existing
// value with a space (§6), leaving any prior flags on that variable intact.
func appendEarlyHook(env []string, hookVar, preloadPath string) []string {
	prefix := hookVar + "="
	flag := "--require " + preloadPath
	for i, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			existing := strings.TrimPrefix(entry, prefix)
			if existing == "" {
				env[i] = prefix + flag
			} else {
				env[i] = prefix + existing + " " + flag
			}
			return env
		}
	}
	return append(env, prefix+flag)
}

func launch(ctx context.Context, run Run, env []string) (int, error) {
	if len(run.Command) == 0 {
		return 0, malerr.UsageError{Message: "missing command to run"}
	}

	cmd := exec.CommandContext(ctx, run.Command[0], run.Command[1:]...)
	cmd.Env = env
	cmd.Dir = run.WorkDir
	cmd.Stdin = stdioOr(run.Stdin, os.Stdin)
	cmd.Stdout = stdioOr(run.Stdout, os.Stdout)
	cmd.Stderr = stdioOr(run.Stderr, os.Stderr)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, malerr.ChildLaunchFailure{Command: strings.Join(run.Command, " "), Err: err}
	}
	return 0, nil
}

func stdioOr(f *os.File, fallback *os.File) *os.File {
	if f != nil {
		return f
	}
	return fallback
}
