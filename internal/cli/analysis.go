package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
	"github.com/imyousuf/codecaliper/internal/dataflow"
	"github.com/imyousuf/codecaliper/internal/gitutil"
	"github.com/imyousuf/codecaliper/internal/input"
	"github.com/imyousuf/codecaliper/internal/metrics"
	"github.com/imyousuf/codecaliper/internal/pipeline"
	"github.com/imyousuf/codecaliper/internal/report"
	"github.com/imyousuf/codecaliper/internal/store"
)

// analysisFlags override configuration values for a single invocation.
type analysisFlags struct {
	include         []string
	exclude         []string
	parallelism     int
	continueOnError bool
	reportFlags
}

// reportFlags control report output.
type reportFlags struct {
	format        string
	minComplexity int
	top           int
	kinds         []string
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "include path regex (repeatable, replaces configured patterns)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "exclude path regex (repeatable, replaces configured patterns)")
	cmd.Flags().IntVarP(&f.parallelism, "parallelism", "j", 0, "concurrent transforms per stage (0 = 2x CPUs)")
	cmd.Flags().BoolVar(&f.continueOnError, "continue-on-error", false, "record failing files and keep going")
	f.reportFlags.register(cmd)
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "report format: text, json, yaml or toml")
	cmd.Flags().IntVar(&f.minComplexity, "min-complexity", 0, "omit scopes below this complexity")
	cmd.Flags().IntVar(&f.top, "top", 0, "show only the N most complex scopes")
	cmd.Flags().StringSliceVar(&f.kinds, "kinds", nil, "scope kinds to list: file, type, function, accessor")
}

// apply copies the flags the user set onto cfg.
func (f *analysisFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("include") {
		cfg.Include = f.include
	}
	if flags.Changed("exclude") {
		cfg.Exclude = f.exclude
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = f.parallelism
	}
	if flags.Changed("continue-on-error") {
		cfg.ContinueOnError = f.continueOnError
	}
	f.reportFlags.apply(cmd, cfg)
}

func (f *reportFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Report.Format = f.format
	}
	if flags.Changed("min-complexity") {
		cfg.Report.MinComplexity = f.minComplexity
	}
	if flags.Changed("top") {
		cfg.Report.Top = f.top
	}
	if flags.Changed("kinds") {
		cfg.Report.Kinds = f.kinds
	}
}

// loadConfig loads and validates the configuration after applying overrides.
func loadConfig(override func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func stderrLogger(w io.Writer) func(format string, args ...any) {
	return func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// runAnalysis enumerates cfg.Root and measures every selected file into a
// fresh store.
func runAnalysis(ctx context.Context, cfg *config.Config, errOut io.Writer) (*store.Store, *pipeline.Summary, error) {
	enum, err := input.New(cfg.Root, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, nil, err
	}
	return measure(ctx, cfg, enum.Root, dataflow.FromSeq2(ctx, enum.Files()), errOut)
}

// runChangedAnalysis measures only the selected files under cfg.Root that
// git reports as changed against base.
func runChangedAnalysis(ctx context.Context, cfg *config.Config, base string, errOut io.Writer) (*store.Store, *pipeline.Summary, error) {
	enum, err := input.New(cfg.Root, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, nil, err
	}
	diff, err := gitutil.Changes(ctx, enum.Root, base)
	if err != nil {
		return nil, nil, err
	}
	paths, err := changedPaths(enum, diff)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		fmt.Fprintf(errOut, "Measuring %d changed files against %s (%.12s)\n", len(paths), diff.Base, diff.MergeBase)
	}
	return measure(ctx, cfg, enum.Root, dataflow.FromSlice(ctx, paths), errOut)
}

// changedPaths keeps the changed files inside enum.Root that its matcher
// selects, re-rooted so file ids stay relative to enum.Root.
func changedPaths(enum *input.Enumerator, diff *gitutil.BranchDiff) ([]string, error) {
	// git reports the top level with symlinks resolved.
	root, err := filepath.EvalSymlinks(enum.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	var paths []string
	for _, p := range diff.Paths() {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		full := filepath.Join(enum.Root, rel)
		if enum.Matcher().Match(full) {
			paths = append(paths, full)
		}
	}
	return paths, nil
}

func measure(ctx context.Context, cfg *config.Config, root string, paths dataflow.Source[string], errOut io.Writer) (*store.Store, *pipeline.Summary, error) {
	st := store.New()
	p := pipeline.Build(st, pipeline.DefaultRegistry(), metrics.NewDefaultCollector(st), pipeline.Config{
		Root:            root,
		Parallelism:     cfg.Parallelism,
		ContinueOnError: cfg.ContinueOnError,
		Verbose:         verbose,
		Logger:          stderrLogger(errOut),
	})
	summary, err := p.Run(ctx, paths)
	return st, summary, err
}

// writeReport renders st in the configured format.
func writeReport(out io.Writer, cfg *config.Config, st *store.Store, scope string, failures []pipeline.Failure) error {
	opts, err := cfg.ReportOptions()
	if err != nil {
		return err
	}
	opts.Scope = scope
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}
	r := report.Build(st, opts)
	for _, f := range failures {
		r.AddFailures(f)
	}
	return report.Write(out, r, format)
}
