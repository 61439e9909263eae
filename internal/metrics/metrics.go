// Package metrics computes cyclomatic complexity and source lines of code for
// every scope of a parsed file and records them in the keyed store.
package metrics

import (
	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/store"
	"github.com/imyousuf/codecaliper/internal/syntax"
)

// ErrUnsupportedDialect is returned when no walker handles a file's dialect.
var ErrUnsupportedDialect = parser.ErrUnsupportedDialect

// Walker measures one file's syntax tree.
type Walker interface {
	// Visit walks tree, accumulating the file totals into fileScope and
	// writing every nested scope into the store as it closes.
	Visit(fileScope *store.ScopeRecord, tree *syntax.Tree) error
}
