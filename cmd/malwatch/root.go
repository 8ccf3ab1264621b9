package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/npm-malwatch/npm-malwatch/internal/config"
	"github.com/npm-malwatch/npm-malwatch/internal/logging"
	"github.com/npm-malwatch/npm-malwatch/pkg/malwatch"
	"github.com/npm-malwatch/npm-malwatch/pkg/render"
)

// exitCode carries a child process's propagated exit code out of a
// command's RunE, since cobra's own error-return path only distinguishes
// success from failure, not which numeric code to use on success.
var exitCode int

// globalFlags holds the persistent flag values every subcommand reads
// through buildRunConfig.
type globalFlags struct {
	session          string
	filter           string
	includePM        bool
	hardening        string
	topN             int
	maxPackages      int
	containerRuntime string
	workDir          string
	logFormat        string
	noColor          bool
	configFile       string
}

var flags globalFlags

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "malwatch [flags] -- <command> [args...]",
		Short:         "Record dangerous host-API usage during npm install and lifecycle scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runObserved,
	}

	defaults := malwatch.Default()
	root.PersistentFlags().StringVar(&flags.session, "session", "", "Session id (default: generated uuid)")
	root.PersistentFlags().StringVar(&flags.filter, "filter", defaults.Filter, "package-only (default) or any value to disable filtering")
	root.PersistentFlags().BoolVar(&flags.includePM, "include-pm", defaults.IncludePM, "Include package-manager-internal events")
	root.PersistentFlags().StringVar(&flags.hardening, "hardening", defaults.Hardening, "detect or off")
	root.PersistentFlags().IntVar(&flags.topN, "top-n", defaults.TopN, "Detail table size for the summary")
	root.PersistentFlags().IntVar(&flags.maxPackages, "max-packages", defaults.MaxPackages, "Cap on preflight-scanned packages (0 = unlimited)")
	root.PersistentFlags().StringVar(&flags.containerRuntime, "container-runtime", defaults.ContainerRuntime, "Sandbox container binary (docker, podman)")
	root.PersistentFlags().StringVar(&flags.workDir, "workdir", defaults.WorkDir, "Directory the child runs in and artifacts are rooted at")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", defaults.LogFormat, "console or json operator-log format")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colorized table output")
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "Optional YAML config file")

	root.AddCommand(newPreflightCommand(), newSandboxCommand(), newReportCommand(), newSelfcheckCommand())
	return root
}

// buildRunConfig resolves the layered malwatch.Config for this invocation
// (flags > env > file > defaults), explicitly mapping each hyphenated CLI
// flag onto its underscored config key.
func buildRunConfig(cmd *cobra.Command) (malwatch.Config, error) {
	loader := config.NewLoader(flags.configFile)
	pf := cmd.Flags()
	bindings := map[string]string{
		"filter": "filter", "include-pm": "include_pm", "hardening": "hardening",
		"top-n": "top_n", "max-packages": "max_packages",
		"container-runtime": "container_runtime", "workdir": "work_dir", "log-format": "log_format",
	}
	for cliName, key := range bindings {
		if f := pf.Lookup(cliName); f != nil {
			if err := loader.BindFlag(key, f); err != nil {
				return malwatch.Config{}, err
			}
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return malwatch.Config{}, err
	}

	cfg.Session = flags.session
	if cfg.Session == "" {
		cfg.Session = uuid.NewString()
	}
	return cfg, nil
}

func newLogger(cfg malwatch.Config) *slog.Logger {
	format := logging.FormatConsole
	if cfg.LogFormat == "json" {
		format = logging.FormatJSON
	}
	return logging.New(logging.Options{Format: format, Writer: os.Stderr})
}

func renderScheme() render.Scheme {
	if flags.noColor || os.Getenv("NO_COLOR") != "" {
		return render.NoColorScheme()
	}
	return render.DefaultScheme()
}

// commandAfterDash returns the argv following a "--" separator, or an
// error if none was given (§6 usage error, exit code 2).
func commandAfterDash(cmd *cobra.Command, args []string) ([]string, error) {
	dashAt := cmd.ArgsLenAtDash()
	if dashAt < 0 {
		return nil, usageError(cmd, "missing \"--\" separator before the wrapped command")
	}
	command := args[dashAt:]
	if len(command) == 0 {
		return nil, usageError(cmd, "missing command after \"--\"")
	}
	return command, nil
}
