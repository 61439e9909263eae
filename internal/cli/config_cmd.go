package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
	"github.com/imyousuf/codecaliper/internal/pipeline"
)

// Style definitions for config view.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	labelStyle = lipgloss.NewStyle().
			Faint(true).
			Width(18)
	valueStyle = lipgloss.NewStyle()
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration CodeCaliper would use: the config file merged with
CODECALIPER_* environment variables and defaults.`,
		RunE: runConfigView,
	}
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)

	// Title
	fmt.Fprintln(out, headerStyle.Render("CodeCaliper Configuration"))
	fmt.Fprintln(out, headerStyle.Render(strings.Repeat("=", 25)))
	fmt.Fprintln(out)

	printSection(out, "Source")
	source := cfg.ConfigFile
	if source == "" {
		source = "(defaults)"
	}
	printKV(out, "Config file", source)
	printKV(out, "Root", cfg.Root)
	fmt.Fprintln(out)

	printSection(out, "Include Patterns")
	printList(out, cfg.Include)
	fmt.Fprintln(out)

	printSection(out, "Exclude Patterns")
	printList(out, cfg.Exclude)
	fmt.Fprintln(out)

	printSection(out, "Execution")
	parallelism := strconv.Itoa(cfg.Parallelism)
	if cfg.Parallelism == 0 {
		parallelism = fmt.Sprintf("auto (%d)", pipeline.DefaultParallelism())
	}
	printKV(out, "Parallelism", parallelism)
	printKV(out, "Continue on error", boolYesNo(cfg.ContinueOnError))
	fmt.Fprintln(out)

	printSection(out, "Report")
	printKV(out, "Format", cfg.Report.Format)
	printKV(out, "Min complexity", strconv.Itoa(cfg.Report.MinComplexity))
	top := "all"
	if cfg.Report.Top > 0 {
		top = strconv.Itoa(cfg.Report.Top)
	}
	printKV(out, "Top", top)
	kinds := "all"
	if len(cfg.Report.Kinds) > 0 {
		kinds = strings.Join(cfg.Report.Kinds, ", ")
	}
	printKV(out, "Kinds", kinds)
	fmt.Fprintln(out)

	printSection(out, "Snapshot")
	snap := cfg.Snapshot.Path
	if snap == "" {
		snap = "(disabled)"
	}
	printKV(out, "Path", snap)
	fmt.Fprintln(out)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "  Warning: %v\n", err)
	}
	return nil
}

func printSection(out io.Writer, title string) {
	fmt.Fprintf(out, "  %s\n", headerStyle.Render(title))
}

func printKV(out io.Writer, label, value string) {
	fmt.Fprintf(out, "    %s%s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func printList(out io.Writer, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(out, "    (none)")
		return
	}
	for _, item := range items {
		fmt.Fprintf(out, "    %s\n", item)
	}
}

func boolYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
