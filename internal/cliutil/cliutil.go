// Package cliutil maps pkg/malerr's typed error kinds to process exit
// codes and short operator-facing suggestions, modeled on yaklabco-dot's
// internal/cli/output.GetExitCode and internal/cli/errors.SuggestionEngine,
// scaled down to npm-malwatch's six error kinds.
package cliutil

import (
	"errors"

	"github.com/npm-malwatch/npm-malwatch/pkg/malerr"
)

// Exit codes. A propagated child exit code (from the observed command
// itself) always takes precedence over these; they apply only to errors
// npm-malwatch itself raises before or after running the child.
const (
	ExitSuccess      = 0
	ExitInternal     = 1
	ExitUsage        = 2
	ExitSandboxError = 3
)

// ExitCode returns the process exit code for err, or ExitSuccess for nil.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage malerr.UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}

	var sandbox malerr.SandboxUnavailable
	if errors.As(err, &sandbox) {
		return ExitSandboxError
	}

	return ExitInternal
}

// Suggest returns short, actionable follow-ups for err, or nil if none
// apply. These are appended below the error message on stderr.
func Suggest(err error) []string {
	var launch malerr.ChildLaunchFailure
	if errors.As(err, &launch) {
		return []string{
			"confirm the command exists on PATH",
			"run the same command without npm-malwatch to isolate the failure",
		}
	}

	var logIO malerr.LogIOError
	if errors.As(err, &logIO) {
		return []string{
			"check that the log directory is writable",
			"pass --workdir pointing at a writable directory (the log is written under <workdir>/.npm-malwatch)",
		}
	}

	var manifest malerr.ManifestParseError
	if errors.As(err, &manifest) {
		return []string{
			"the offending package.json is malformed JSON; the scan continues past it",
		}
	}

	var logParse malerr.LogParseError
	if errors.As(err, &logParse) {
		return []string{
			"the event log has a malformed line; it was skipped and aggregation continued",
		}
	}

	var usage malerr.UsageError
	if errors.As(err, &usage) {
		return []string{
			"run with --help for usage",
		}
	}

	var sandbox malerr.SandboxUnavailable
	if errors.As(err, &sandbox) {
		return []string{
			"confirm the container runtime is installed and running",
			"try --container-runtime to select a different binary (docker, podman)",
		}
	}

	return nil
}
