// Package report turns a populated store into sorted metric rows and writes
// them as text, JSON, YAML or TOML.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/imyousuf/codecaliper/internal/store"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat returns the format named s, ignoring case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q (want one of text, json, yaml, toml)", s)
}

// Options filters the scope rows of a report. Summary totals always cover
// every scope.
type Options struct {
	Scope         string            // keep only this scope and its nested scopes
	MinComplexity int               // omit scopes below this complexity
	Kinds         []store.ScopeKind // keep only these kinds, all when empty
	Top           int               // keep the N most complex scopes, all when 0
}

// Entry is one scope row.
type Entry struct {
	Identifier           string `json:"identifier" yaml:"identifier" toml:"identifier"`
	Kind                 string `json:"kind" yaml:"kind" toml:"kind"`
	CyclomaticComplexity int    `json:"cyclomatic_complexity" yaml:"cyclomatic_complexity" toml:"cyclomatic_complexity"`
	SourceLinesOfCode    int    `json:"source_lines_of_code" yaml:"source_lines_of_code" toml:"source_lines_of_code"`
}

// File is one file row with physical line counts.
type File struct {
	ID                   string `json:"id" yaml:"id" toml:"id"`
	Dialect              string `json:"dialect" yaml:"dialect" toml:"dialect"`
	Hash                 string `json:"hash" yaml:"hash" toml:"hash"`
	TotalLines           int    `json:"total_lines" yaml:"total_lines" toml:"total_lines"`
	BlankLines           int    `json:"blank_lines" yaml:"blank_lines" toml:"blank_lines"`
	CommentLines         int    `json:"comment_lines" yaml:"comment_lines" toml:"comment_lines"`
	CodeLines            int    `json:"code_lines" yaml:"code_lines" toml:"code_lines"`
	CyclomaticComplexity int    `json:"cyclomatic_complexity" yaml:"cyclomatic_complexity" toml:"cyclomatic_complexity"`
	SourceLinesOfCode    int    `json:"source_lines_of_code" yaml:"source_lines_of_code" toml:"source_lines_of_code"`
}

// Summary aggregates a whole run.
type Summary struct {
	Files                int    `json:"files" yaml:"files" toml:"files"`
	Types                int    `json:"types" yaml:"types" toml:"types"`
	Functions            int    `json:"functions" yaml:"functions" toml:"functions"`
	Accessors            int    `json:"accessors" yaml:"accessors" toml:"accessors"`
	CyclomaticComplexity int    `json:"cyclomatic_complexity" yaml:"cyclomatic_complexity" toml:"cyclomatic_complexity"`
	SourceLinesOfCode    int    `json:"source_lines_of_code" yaml:"source_lines_of_code" toml:"source_lines_of_code"`
	MaxComplexity        int    `json:"max_complexity" yaml:"max_complexity" toml:"max_complexity"`
	MaxComplexityScope   string `json:"max_complexity_scope,omitempty" yaml:"max_complexity_scope,omitempty" toml:"max_complexity_scope,omitempty"`
}

// Report is the formatted view of a store.
type Report struct {
	Summary  Summary  `json:"summary" yaml:"summary" toml:"summary"`
	Files    []File   `json:"files" yaml:"files" toml:"files"`
	Scopes   []Entry  `json:"scopes" yaml:"scopes" toml:"scopes"`
	Failures []string `json:"failures,omitempty" yaml:"failures,omitempty" toml:"failures,omitempty"`
}

// Build collects the scopes and files of st.
func Build(st *store.Store, opts Options) *Report {
	r := &Report{}

	for _, fd := range st.Files() {
		r.Files = append(r.Files, File{
			ID:                   fd.Identifier,
			Dialect:              fd.Dialect,
			Hash:                 fmt.Sprintf("%016x", fd.Hash),
			TotalLines:           fd.Lines.Total,
			BlankLines:           fd.Lines.Blank,
			CommentLines:         fd.Lines.Comment,
			CodeLines:            fd.Lines.Code,
			CyclomaticComplexity: fd.CyclomaticComplexity,
			SourceLinesOfCode:    fd.SourceLinesOfCode,
		})
	}

	keep := kindFilter(opts.Kinds)
	for _, rec := range st.Scopes() {
		r.Summary.add(rec)
		if opts.Scope != "" && !store.Contains(opts.Scope, rec.Identifier) {
			continue
		}
		if !keep(rec.Kind) || rec.CyclomaticComplexity < opts.MinComplexity {
			continue
		}
		r.Scopes = append(r.Scopes, Entry{
			Identifier:           rec.Identifier,
			Kind:                 rec.Kind.String(),
			CyclomaticComplexity: rec.CyclomaticComplexity,
			SourceLinesOfCode:    rec.SourceLinesOfCode,
		})
	}

	if opts.Top > 0 {
		sort.SliceStable(r.Scopes, func(i, j int) bool {
			return r.Scopes[i].CyclomaticComplexity > r.Scopes[j].CyclomaticComplexity
		})
		if len(r.Scopes) > opts.Top {
			r.Scopes = r.Scopes[:opts.Top]
		}
	}
	return r
}

// AddFailures appends failure messages to the report.
func (r *Report) AddFailures(errs ...error) {
	for _, err := range errs {
		r.Failures = append(r.Failures, err.Error())
	}
}

func (s *Summary) add(rec store.ScopeRecord) {
	switch rec.Kind {
	case store.ScopeFile:
		s.Files++
		// file totals already include every nested scope
		s.CyclomaticComplexity += rec.CyclomaticComplexity
		s.SourceLinesOfCode += rec.SourceLinesOfCode
		return
	case store.ScopeType:
		s.Types++
		return
	case store.ScopeFunction:
		s.Functions++
	case store.ScopeAccessor:
		s.Accessors++
	}
	if rec.CyclomaticComplexity > s.MaxComplexity {
		s.MaxComplexity = rec.CyclomaticComplexity
		s.MaxComplexityScope = rec.Identifier
	}
}

func kindFilter(kinds []store.ScopeKind) func(store.ScopeKind) bool {
	if len(kinds) == 0 {
		return func(store.ScopeKind) bool { return true }
	}
	set := make(map[store.ScopeKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(k store.ScopeKind) bool { return set[k] }
}
