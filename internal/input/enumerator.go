// Package input enumerates the source files of an analysis root.
package input

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
)

// Matcher selects paths with include and exclude regular expressions. A path
// matches when it matches at least one include pattern (or no include
// patterns were given) and none of the exclude patterns. Patterns are
// case-insensitive and applied to slash-separated paths.
type Matcher struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewMatcher compiles the include and exclude patterns.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	inc, err := compile("include", include)
	if err != nil {
		return nil, err
	}
	exc, err := compile("exclude", exclude)
	if err != nil {
		return nil, err
	}
	return &Matcher{include: inc, exclude: exc}, nil
}

func compile(kind string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", kind, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Match reports whether p is selected.
func (m *Matcher) Match(p string) bool {
	p = filepath.ToSlash(p)
	if len(m.include) > 0 && !anyMatch(m.include, p) {
		return false
	}
	return !anyMatch(m.exclude, p)
}

// Excluded reports whether p matches an exclude pattern. Directories are
// pruned with Excluded since include patterns usually name files.
func (m *Matcher) Excluded(p string) bool {
	return anyMatch(m.exclude, filepath.ToSlash(p))
}

func anyMatch(res []*regexp.Regexp, p string) bool {
	for _, re := range res {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// Enumerator lists the files under Root selected by its matcher.
type Enumerator struct {
	Root string
	FS   fs.FS

	matcher *Matcher
}

// New creates an enumerator over the directory tree at root.
func New(root string, include, exclude []string) (*Enumerator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return NewFS(os.DirFS(abs), abs, include, exclude)
}

// NewFS creates an enumerator over fsys, reporting paths joined onto root.
func NewFS(fsys fs.FS, root string, include, exclude []string) (*Enumerator, error) {
	m, err := NewMatcher(include, exclude)
	if err != nil {
		return nil, err
	}
	return &Enumerator{Root: root, FS: fsys, matcher: m}, nil
}

// Matcher returns the path matcher.
func (e *Enumerator) Matcher() *Matcher { return e.matcher }

// Files lazily yields the selected file paths in lexical order. A walk error
// is yielded once and ends the sequence.
func (e *Enumerator) Files() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := fs.WalkDir(e.FS, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			full := filepath.Join(e.Root, filepath.FromSlash(p))
			if !e.matcher.Match(full) {
				return nil
			}
			if !yield(full, nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", fmt.Errorf("enumerate %s: %w", e.Root, err))
		}
	}
}
