package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/npm-malwatch/npm-malwatch/internal/instrument"
)

func newSelfcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "selfcheck",
		Short: "Run the internal wrap/emit/tamper reference harness and report pass or fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := instrument.SelfCheck(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "selfcheck: ok")
			return nil
		},
	}
}
