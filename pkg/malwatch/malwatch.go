// Package malwatch is the public facade aggregating one CLI invocation's
// fully-resolved configuration (§3 [ADD] Config), threaded through the
// orchestrator, preflight scanner, aggregator, and root resolver.
package malwatch

// Config is the layered configuration result for one run: flags override
// environment variables, which override an optional YAML config file,
// which overrides these field defaults (internal/config.Loader performs
// that resolution).
type Config struct {
	// Session is the opaque session id stamped on every event (§3).
	Session string
	// LogPath is the absolute JSONL log path (§6 NPM_MALWATCH_LOG).
	LogPath string
	// Filter is "package-only" (default) or any other value to disable
	// filtering (§6 NPM_MALWATCH_FILTER).
	Filter string
	// IncludePM mirrors NPM_MALWATCH_INCLUDE_PM.
	IncludePM bool
	// Hardening is "detect" or "off" (§6 NPM_MALWATCH_HARDENING).
	Hardening string

	// ScriptKeys are the lifecycle script keys the preflight scanner
	// collects (§3 PreflightReport, default preinstall/install/
	// postinstall/prepare).
	ScriptKeys []string
	// MaxPackages bounds the preflight scanner (§4.G); 0 means unlimited.
	MaxPackages int
	// TopN is the detail-table size for the aggregator (§3 Summary).
	TopN int

	// ContainerRuntime is the sandbox-mode container binary (§4.F).
	ContainerRuntime string

	// WorkDir is the directory run artifacts and node_modules scans are
	// rooted at; defaults to the current directory.
	WorkDir string

	// LogFormat selects "console" or "json" rendering for operator logs
	// (distinct from the JSONL event log written to LogPath).
	LogFormat string
}

// Default returns the built-in defaults applied before env/flag/file
// overrides (§6 documented defaults).
func Default() Config {
	return Config{
		Filter:           "package-only",
		IncludePM:        false,
		Hardening:        "detect",
		ScriptKeys:       []string{"preinstall", "install", "postinstall", "prepare"},
		MaxPackages:      0,
		TopN:             10,
		ContainerRuntime: "docker",
		WorkDir:          ".",
		LogFormat:        "console",
	}
}
