package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npm-malwatch/npm-malwatch/pkg/aggregate"
	"github.com/npm-malwatch/npm-malwatch/pkg/render"
)

func newReportCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report <log.jsonl>",
		Short: "Render a previously recorded JSONL event log without re-running anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "text, json, or csv")
	return cmd
}

func runReport(cmd *cobra.Command, logPath, format string) error {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	summary, err := aggregate.Stream(f, cfg.TopN)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		return render.SummaryJSON(cmd.OutOrStdout(), summary)
	case "csv":
		return render.SummaryCSV(cmd.OutOrStdout(), summary)
	case "text", "":
		return render.SummaryText(cmd.OutOrStdout(), summary, renderScheme())
	default:
		return usageError(cmd, fmt.Sprintf("unknown --format %q: use text, json, or csv", format))
	}
}
