package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/imyousuf/codecaliper/internal/syntax"
)

// Dialect represents a supported source dialect.
type Dialect string

const (
	DialectCSharp Dialect = "csharp"
	DialectJava   Dialect = "java"
)

// FileExtensions maps each dialect to its recognized file extensions.
// Extensions are matched case-insensitively.
var FileExtensions = map[Dialect][]string{
	DialectCSharp: {".cs"},
	DialectJava:   {".java"},
}

var (
	// ErrUnsupportedDialect is returned when no parser or walker is
	// registered for a file's extension.
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	// ErrParse is wrapped by every ParseError.
	ErrParse = errors.New("parse error")
)

// ParseError reports malformed source text. No partial tree is produced.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("%s:%d:%d: syntax error near %q", e.Path, e.Line, e.Column, e.Snippet)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Parser defines the interface for dialect-specific source parsers.
type Parser interface {
	// Dialect returns which dialect this parser handles.
	Dialect() Dialect

	// Extensions returns the file extensions this parser can handle.
	Extensions() []string

	// Parse parses the given file content into a syntax tree.
	Parse(filePath string, content []byte) (*syntax.Tree, error)
}

// DialectOf returns the dialect implied by a path's extension.
func DialectOf(path string) (Dialect, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	for d, exts := range FileExtensions {
		for _, e := range exts {
			if e == ext {
				return d, true
			}
		}
	}
	return "", false
}
