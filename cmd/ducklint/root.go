package main

import (
	"github.com/spf13/cobra"

	"ducklint/internal/version"
)

var (
	// projectFlag is the --project root; empty means the working directory
	projectFlag string
	// formatFlag is the --format output format
	formatFlag string
	verbosity  int
	quietFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "ducklint",
	Short: "ducklint - VBA code inspections and refactorings",
	Long: `ducklint parses a VBA project exported as module files, runs code inspections
over its declarations and applies quick fixes and renames through
all-or-nothing rewrite sessions.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("ducklint version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "",
		"Project root holding vbaproject.toml and module files (default: working directory)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "",
		"Output format: human, json, yaml, or sarif for inspect (default: output.format from config)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Only log errors")
}
