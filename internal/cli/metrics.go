package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
	"github.com/imyousuf/codecaliper/internal/dataflow"
	"github.com/imyousuf/codecaliper/internal/parser"
)

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <file>",
		Short: "Measure a single file",
		Long:  `Show cyclomatic complexity and source lines of code for every scope of one source file.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if _, err := os.Stat(filePath); err != nil {
				return fmt.Errorf("stat file: %w", err)
			}
			dialect, ok := parser.DialectOf(filePath)
			if !ok {
				return fmt.Errorf("%s: %w", filePath, parser.ErrUnsupportedDialect)
			}

			cfg := config.Default()
			ctx := cmd.Context()
			st, _, err := measure(ctx, cfg, filepath.Dir(filePath),
				dataflow.FromSlice(ctx, []string{filePath}), cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("measure %s: %w", filePath, err)
			}

			id := filepath.Base(filePath)
			fd, err := st.File(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Metrics for %s (dialect: %s)\n", filePath, dialect)
			fmt.Fprintf(out, "%s\n\n", strings.Repeat("=", 40))
			fmt.Fprintf(out, "  %-25s %d\n", "total_lines", fd.Lines.Total)
			fmt.Fprintf(out, "  %-25s %d\n", "code_lines", fd.Lines.Code)
			fmt.Fprintf(out, "  %-25s %d\n", "comment_lines", fd.Lines.Comment)
			fmt.Fprintf(out, "  %-25s %d\n", "blank_lines", fd.Lines.Blank)
			fmt.Fprintf(out, "  %-25s %d\n", "cyclomatic_complexity", fd.CyclomaticComplexity)
			fmt.Fprintf(out, "  %-25s %d\n", "source_lines_of_code", fd.SourceLinesOfCode)
			fmt.Fprintln(out)

			prefix := id + ":"
			for _, rec := range st.WithPrefix(id) {
				if rec.Identifier == id {
					continue
				}
				fmt.Fprintf(out, "  %-9s %-50s CC %-4d SLOC %d\n",
					rec.Kind, strings.TrimPrefix(rec.Identifier, prefix),
					rec.CyclomaticComplexity, rec.SourceLinesOfCode)
			}
			return nil
		},
	}
}
