package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
	"github.com/imyousuf/codecaliper/internal/snapshot"
	"github.com/imyousuf/codecaliper/internal/store"
)

// snapshotPathArg returns the snapshot directory named on the command line,
// or the configured one.
func snapshotPathArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Snapshot.Path == "" {
		return "", fmt.Errorf("no snapshot given and snapshot.path is not configured")
	}
	return cfg.Snapshot.Path, nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [snapshot]",
		Short: "Summarize a snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := snapshotPathArg(args)
			if err != nil {
				return err
			}
			snap, err := snapshot.Open(path)
			if err != nil {
				return err
			}
			defer snap.Close()

			recs, err := snap.Scan("")
			if err != nil {
				return fmt.Errorf("scan snapshot: %w", err)
			}

			counts := make(map[store.ScopeKind]int)
			var totalCC, totalSLOC, lines int
			var worst snapshot.Record
			for _, r := range recs {
				sc := r.Scope()
				counts[sc.Kind]++
				switch sc.Kind {
				case store.ScopeFile:
					totalCC += r.CyclomaticComplexity
					totalSLOC += r.SourceLinesOfCode
					lines += r.TotalLines
				case store.ScopeFunction, store.ScopeAccessor:
					if r.CyclomaticComplexity > worst.CyclomaticComplexity {
						worst = r
					}
				}
			}

			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Snapshot Status\n")
			fmt.Fprintf(out, "===============\n\n")
			fmt.Fprintf(out, "  Path:          %s\n", path)
			fmt.Fprintf(out, "  Total records: %d\n\n", len(recs))

			fmt.Fprintf(out, "  Scopes by kind:\n")
			for k := store.ScopeFile; k <= store.ScopeAccessor; k++ {
				fmt.Fprintf(out, "    %-20s %d\n", k, counts[k])
			}
			fmt.Fprintln(out)

			fmt.Fprintf(out, "  Totals:\n")
			fmt.Fprintf(out, "    %-20s %d\n", "physical lines", lines)
			fmt.Fprintf(out, "    %-20s %d\n", "complexity", totalCC)
			fmt.Fprintf(out, "    %-20s %d\n", "sloc", totalSLOC)
			if worst.Identifier != "" {
				fmt.Fprintf(out, "    %-20s %s (%d)\n", "most complex", worst.Identifier, worst.CyclomaticComplexity)
			}
			fmt.Fprintln(out)

			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "show <snapshot> [scope]",
		Short: "Report the scopes stored in a snapshot",
		Long: `Print a report of the scopes stored in a snapshot. When scope is given,
only that scope and the scopes nested inside it are listed, e.g.

  codecaliper show .codecaliper/snapshot src/Account.cs:Account`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				flags.apply(cmd, cfg)
			})
			if err != nil {
				return err
			}
			scope := ""
			if len(args) == 2 {
				scope = args[1]
			}

			snap, err := snapshot.Open(args[0])
			if err != nil {
				return err
			}
			defer snap.Close()

			st, err := snap.Store(scope)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			return writeReport(cmd.OutOrStdout(), cfg, st, scope, nil)
		},
	}

	flags.register(cmd)

	return cmd
}
