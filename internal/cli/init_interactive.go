package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/imyousuf/codecaliper/internal/config"
	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/report"
)

// dialectLabels names each dialect in the wizard.
var dialectLabels = map[parser.Dialect]string{
	parser.DialectCSharp: "C#",
	parser.DialectJava:   "Java",
}

// detectDialects walks rootDir (depth-limited to 3 levels) and returns the
// dialects whose file extensions occur.
func detectDialects(rootDir string) []parser.Dialect {
	found := make(map[parser.Dialect]bool)

	rootDepth := strings.Count(filepath.ToSlash(rootDir), "/")
	_ = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		depth := strings.Count(filepath.ToSlash(path), "/") - rootDepth
		if d.IsDir() {
			if depth >= 3 {
				return fs.SkipDir
			}
			// Skip common build output directories
			switch d.Name() {
			case ".git", "bin", "obj", "target", "build":
				return fs.SkipDir
			}
			return nil
		}
		if dialect, ok := parser.DialectOf(path); ok {
			found[dialect] = true
		}
		return nil
	})

	result := make([]parser.Dialect, 0, len(found))
	for d := range found {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// includePatterns returns one extension regex per dialect.
func includePatterns(dialects []string) []string {
	var out []string
	for _, d := range dialects {
		for _, ext := range parser.FileExtensions[parser.Dialect(d)] {
			out = append(out, regexp.QuoteMeta(ext)+"$")
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	if n < 0 {
		return fmt.Errorf("must be zero or more")
	}
	return nil
}

// runInteractiveInit runs the setup wizard and fills cfg. It reports false
// when the user cancelled.
func runInteractiveInit(cmd *cobra.Command, cwd string, cfg *config.Config) (bool, error) {
	out := cmd.OutOrStdout()

	detected := detectDialects(cwd)
	detectedSet := make(map[parser.Dialect]bool, len(detected))
	for _, d := range detected {
		detectedSet[d] = true
	}

	// Form variables
	var (
		root            = cfg.Root
		dialects        []string
		exclude         = strings.Join(cfg.Exclude, ", ")
		parallelism     = "0"
		continueOnError = cfg.ContinueOnError
		format          = cfg.Report.Format
		minComplexity   = "0"
		snapshotPath    string
		confirm         bool
	)

	// Dialect options with detected ones pre-selected; everything when
	// nothing was detected.
	dialectOptions := make([]huh.Option[string], 0, len(dialectLabels))
	for _, d := range []parser.Dialect{parser.DialectCSharp, parser.DialectJava} {
		opt := huh.NewOption(dialectLabels[d], string(d))
		if len(detected) == 0 || detectedSet[d] {
			opt = opt.Selected(true)
		}
		dialectOptions = append(dialectOptions, opt)
	}

	formatOptions := make([]huh.Option[string], 0, len(report.Formats))
	for _, f := range report.Formats {
		formatOptions = append(formatOptions, huh.NewOption(string(f), string(f)))
	}

	form := huh.NewForm(
		// Group 1: Sources
		huh.NewGroup(
			huh.NewInput().
				Title("Source root").
				Value(&root).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("root cannot be empty")
					}
					return nil
				}),
			huh.NewMultiSelect[string]().
				Title("Dialects to measure").
				Description("Detected dialects are pre-selected").
				Options(dialectOptions...).
				Value(&dialects).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("select at least one dialect")
					}
					return nil
				}),
			huh.NewInput().
				Title("Exclude patterns").
				Description("Comma-separated, case-insensitive regexes matched against file paths").
				Value(&exclude).
				Validate(func(s string) error {
					for _, p := range splitList(s) {
						if _, err := regexp.Compile("(?i)" + p); err != nil {
							return fmt.Errorf("invalid pattern %q", p)
						}
					}
					return nil
				}),
		).Title("Sources"),

		// Group 2: Execution
		huh.NewGroup(
			huh.NewInput().
				Title("Parallelism").
				Description("Concurrent transforms per stage; 0 uses twice the CPU count").
				Value(&parallelism).
				Validate(validateInt),
			huh.NewConfirm().
				Title("Continue on error?").
				Description("Record files that fail to parse and keep going").
				Value(&continueOnError).
				Affirmative("Yes").
				Negative("No"),
		).Title("Execution"),

		// Group 3: Report
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Report format").
				Options(formatOptions...).
				Value(&format),
			huh.NewInput().
				Title("Minimum complexity").
				Description("Scopes below this complexity are left out of the report").
				Value(&minComplexity).
				Validate(validateInt),
			huh.NewInput().
				Title("Snapshot directory").
				Description("Leave empty to skip the snapshot export").
				Value(&snapshotPath),
		).Title("Report"),

		// Group 4: Confirm
		huh.NewGroup(
			huh.NewNote().
				Title("Summary").
				DescriptionFunc(func() string {
					names := make([]string, 0, len(dialects))
					for _, d := range dialects {
						names = append(names, dialectLabels[parser.Dialect(d)])
					}
					snap := snapshotPath
					if snap == "" {
						snap = "(none)"
					}
					return fmt.Sprintf(
						"Root:         %s\n"+
							"Dialects:     %s\n"+
							"Parallelism:  %s\n"+
							"Continue:     %s\n"+
							"Format:       %s\n"+
							"Snapshot:     %s",
						root, strings.Join(names, ", "), parallelism,
						boolYesNo(continueOnError), format, snap,
					)
				}, &dialects),
			huh.NewConfirm().
				Title("Write configuration?").
				Value(&confirm).
				Affirmative("Write").
				Negative("Cancel"),
		).Title("Confirm"),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(out, "Cancelled.")
			return false, nil
		}
		return false, fmt.Errorf("interactive init: %w", err)
	}

	if !confirm {
		fmt.Fprintln(out, "Cancelled.")
		return false, nil
	}

	cfg.Root = strings.TrimSpace(root)
	cfg.Include = includePatterns(dialects)
	cfg.Exclude = splitList(exclude)
	cfg.Parallelism, _ = strconv.Atoi(strings.TrimSpace(parallelism))
	cfg.ContinueOnError = continueOnError
	cfg.Report.Format = format
	cfg.Report.MinComplexity, _ = strconv.Atoi(strings.TrimSpace(minComplexity))
	cfg.Snapshot.Path = strings.TrimSpace(snapshotPath)

	return true, cfg.Validate()
}
