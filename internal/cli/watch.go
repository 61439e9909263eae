package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
	"github.com/imyousuf/codecaliper/internal/input"
	"github.com/imyousuf/codecaliper/internal/pipeline"
	"github.com/imyousuf/codecaliper/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-run the analysis whenever sources change",
		Long: `Analyze path (default: the configured root), then watch it and re-run the
full analysis after each burst of changes to supported source files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				flags.apply(cmd, cfg)
				if len(args) == 1 {
					cfg.Root = args[0]
				}
			})
			if err != nil {
				return err
			}

			enum, err := input.New(cfg.Root, cfg.Include, cfg.Exclude)
			if err != nil {
				return err
			}
			w, err := watcher.New(watcher.Config{
				Root:    enum.Root,
				Matcher: enum.Matcher(),
				Accept:  pipeline.DefaultRegistry().Supports,
				Verbose: verbose,
				Logger:  stderrLogger(cmd.ErrOrStderr()),
			})
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer w.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			batches, err := w.Start(ctx)
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}

			fmt.Fprintf(errOut, "Watching %s...\n", enum.Root)
			reanalyze(cmd, cfg, out, errOut)

			for batch := range batches {
				fmt.Fprintf(errOut, "\nChanges detected in %d file(s)\n", len(batch))
				if verbose {
					for _, e := range batch {
						fmt.Fprintf(errOut, "  %s %s\n", e.Op, e.Path)
					}
				}
				reanalyze(cmd, cfg, out, errOut)
			}

			fmt.Fprintln(errOut, "\nShutting down...")
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

// reanalyze runs a full analysis and prints its report. Failures are printed
// and do not stop the watch loop.
func reanalyze(cmd *cobra.Command, cfg *config.Config, out, errOut io.Writer) {
	ctx := cmd.Context()
	st, summary, err := runAnalysis(ctx, cfg, errOut)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		fmt.Fprintf(errOut, "Analysis failed: %v\n", err)
		return
	}
	if err := writeReport(out, cfg, st, "", summary.Failures); err != nil {
		fmt.Fprintf(errOut, "Write report: %v\n", err)
	}
}
