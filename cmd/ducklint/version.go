package main

import (
	"github.com/spf13/cobra"

	"ducklint/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		details := version.Get()
		return printResponse(cmd, nil, &details)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
