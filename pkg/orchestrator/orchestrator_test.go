package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetEnvReplacesExistingAndAppendsNew(t *testing.T) {
	env := []string{"PATH=/bin", "FOO=old"}
	env = setEnv(env, "FOO", "new")
	env = setEnv(env, "BAR", "baz")

	require.Contains(t, env, "FOO=new")
	require.Contains(t, env, "BAR=baz")
	require.NotContains(t, env, "FOO=old")
}

func TestAppendEarlyHookJoinsWithSpaceOrSetsFresh(t *testing.T) {
	env := []string{"NODE_OPTIONS=--max-old-space-size=4096"}
	out := appendEarlyHook(env, "NODE_OPTIONS", "/tmp/preload.js")
	require.Contains(t, out, "NODE_OPTIONS=--max-old-space-size=4096 --require /tmp/preload.js")

	fresh := appendEarlyHook(nil, "NODE_OPTIONS", "/tmp/preload.js")
	require.Equal(t, []string{"NODE_OPTIONS=--require /tmp/preload.js"}, fresh)
}

func TestChildEnvSetsAllDocumentedVariables(t *testing.T) {
	run := Run{Session: "sess-1", Filter: "package-only", IncludePM: true, Hardening: "detect"}
	env := childEnv(run, "/tmp/log.jsonl", "/tmp/preload.js")

	require.Contains(t, env, "NPM_MALWATCH_LOG=/tmp/log.jsonl")
	require.Contains(t, env, "NPM_MALWATCH_SESSION=sess-1")
	require.Contains(t, env, "NPM_MALWATCH_FILTER=package-only")
	require.Contains(t, env, "NPM_MALWATCH_INCLUDE_PM=1")
	require.Contains(t, env, "NPM_MALWATCH_HARDENING=detect")
}

func TestRunPathsMatchDefaultLayout(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	logPath, preflightPath, sandboxDir := RunPaths("/repo", ts, 42)

	require.Equal(t, filepath.Join("/repo", ".npm-malwatch", "20260102T030405Z-42.jsonl"), logPath)
	require.Equal(t, filepath.Join("/repo", ".npm-malwatch", "preflight-20260102T030405Z-42.json"), preflightPath)
	require.Equal(t, filepath.Join("/repo", ".npm-malwatch", "sandbox-20260102T030405Z-42"), sandboxDir)
}

func TestLaunchPropagatesExitCode(t *testing.T) {
	run := Run{Command: []string{"sh", "-c", "exit 7"}}
	code, err := launch(context.Background(), run, os.Environ())
	require.NoError(t, err)
	require.Equal(t, 7, code)
}

func TestLaunchRejectsEmptyCommand(t *testing.T) {
	_, err := launch(context.Background(), Run{}, os.Environ())
	require.Error(t, err)
}

func TestObservedWritesStartupRecordAndSummarizes(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")

	run := Run{
		Command:   []string{"sh", "-c", "echo hi"},
		WorkDir:   dir,
		Session:   "sess-1",
		Filter:    "package-only",
		IncludePM: false,
		Hardening: "off",
	}
	result, err := Observed(context.Background(), run, logPath)
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.FileExists(t, logPath)
	require.Equal(t, 1, result.Summary.TotalEvents) // only the always-written startup record
}
