package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	toml "github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	labelStyle = lipgloss.NewStyle().
			Faint(true).
			Width(22)
	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"})
)

// Write encodes r to w in format f.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatText, "":
		return writeText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(r); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

func writeText(w io.Writer, r *Report) error {
	fmt.Fprintln(w, titleStyle.Render("Code metrics"))
	fmt.Fprintln(w)

	s := r.Summary
	printKV(w, "Files", strconv.Itoa(s.Files))
	printKV(w, "Types", strconv.Itoa(s.Types))
	printKV(w, "Functions", strconv.Itoa(s.Functions))
	printKV(w, "Accessors", strconv.Itoa(s.Accessors))
	printKV(w, "Total complexity", strconv.Itoa(s.CyclomaticComplexity))
	printKV(w, "Total SLOC", strconv.Itoa(s.SourceLinesOfCode))
	if s.MaxComplexityScope != "" {
		printKV(w, "Most complex", fmt.Sprintf("%s (%d)", s.MaxComplexityScope, s.MaxComplexity))
	}
	fmt.Fprintln(w)

	if len(r.Scopes) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("SCOPE", "KIND", "CC", "SLOC")
		for _, e := range r.Scopes {
			t.Row(e.Identifier, e.Kind, strconv.Itoa(e.CyclomaticComplexity), strconv.Itoa(e.SourceLinesOfCode))
		}
		fmt.Fprintln(w, t.Render())
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Failures (%d)", len(r.Failures))))
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s\n", failureStyle.Render(f))
		}
	}
	return nil
}

func printKV(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s%s\n", labelStyle.Render(label+":"), value)
}
