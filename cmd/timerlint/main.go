// Package main is the entry point for the timerlint CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by release ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errProblems makes the process exit 1 without printing anything further;
// the diagnostics have already been written.
var errProblems = errors.New("invalid schedules found")

func main() {
	err := rootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, errProblems):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "timerlint:", err)
		os.Exit(2)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "timerlint",
		Short:         "Validate Azure Functions timer trigger schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file (JSON or YAML)")
	root.PersistentFlags().String("log-level", "", "Override logging.level (trace, debug, info, warn, error)")
	root.AddCommand(versionCmd(), checkCmd(), scanCmd(), watchCmd(), serveCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "timerlint %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
