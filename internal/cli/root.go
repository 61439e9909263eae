// Package cli implements the command-line interface for CodeCaliper.
package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codecaliper",
		Short: "CodeCaliper - cyclomatic complexity and SLOC for C# and Java sources",
		Long: `CodeCaliper parses C# and Java source trees and measures cyclomatic
complexity and source lines of code for every file, type, method and
accessor, aggregating child scopes into their parents.

Commands:
  init       Initialize a .codecaliper.yaml config file
  analyze    Measure a source tree and print a report
  metrics    Measure a single file
  watch      Re-run the analysis whenever sources change
  show       Report the scopes stored in a snapshot
  status     Summarize a snapshot
  config     Show the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .codecaliper.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newMetricsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
