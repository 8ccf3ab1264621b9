package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/npm-malwatch/npm-malwatch/pkg/malerr"
)

func usageError(cmd *cobra.Command, format string, args ...any) error {
	_ = cmd.Usage()
	return malerr.UsageError{Message: fmt.Sprintf(format, args...)}
}
