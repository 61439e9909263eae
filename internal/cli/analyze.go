package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
	"github.com/imyousuf/codecaliper/internal/pipeline"
	"github.com/imyousuf/codecaliper/internal/snapshot"
	"github.com/imyousuf/codecaliper/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		flags        analysisFlags
		snapshotPath string
		changed      bool
		base         string
	)

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Measure a source tree and print a report",
		Long: `Measure every C# and Java file under path (default: the configured root)
and print cyclomatic complexity and source lines of code per scope.

The run stops at the first failing file unless --continue-on-error is set,
in which case failures are listed at the end of the report.

With --changed only the files git reports as changed against --base (default:
main or master) are measured, including uncommitted and untracked files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				flags.apply(cmd, cfg)
				if len(args) == 1 {
					cfg.Root = args[0]
				}
				if cmd.Flags().Changed("snapshot") {
					cfg.Snapshot.Path = snapshotPath
				}
			})
			if err != nil {
				return err
			}

			var (
				st      *store.Store
				summary *pipeline.Summary
			)
			if changed || cmd.Flags().Changed("base") {
				st, summary, err = runChangedAnalysis(cmd.Context(), cfg, base, cmd.ErrOrStderr())
			} else {
				st, summary, err = runAnalysis(cmd.Context(), cfg, cmd.ErrOrStderr())
			}
			if err != nil {
				return fmt.Errorf("analyze %s: %w", cfg.Root, err)
			}

			if err := writeReport(cmd.OutOrStdout(), cfg, st, "", summary.Failures); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			if cfg.Snapshot.Path != "" {
				n, err := snapshot.Export(cfg.Snapshot.Path, st)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Snapshot: %d records written to %s\n", n, cfg.Snapshot.Path)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "export the results to this snapshot directory")
	cmd.Flags().BoolVar(&changed, "changed", false, "measure only files changed on this branch")
	cmd.Flags().StringVar(&base, "base", "", "branch or commit --changed compares against (implies --changed)")

	return cmd
}
