package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/stockmarks/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return err //nolint:wrapcheck // terminal write
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
