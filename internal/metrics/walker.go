package metrics

import (
	"fmt"
	"strings"

	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/store"
	"github.com/imyousuf/codecaliper/internal/syntax"
)

// ScopeWalker is the stack-based metrics walker shared by every dialect whose
// parser produces syntax trees.
type ScopeWalker struct {
	store    *store.Store
	dialects map[string]bool
}

// NewWalker creates a walker writing into st that accepts trees of the given
// dialects.
func NewWalker(st *store.Store, dialects ...parser.Dialect) *ScopeWalker {
	w := &ScopeWalker{store: st, dialects: make(map[string]bool, len(dialects))}
	for _, d := range dialects {
		w.dialects[string(d)] = true
	}
	return w
}

// Visit resets fileScope and walks tree into it. State lives in a per-call
// scope stack, so concurrent visits of different files are safe.
func (w *ScopeWalker) Visit(fileScope *store.ScopeRecord, tree *syntax.Tree) error {
	if tree == nil || tree.Root == nil {
		return fmt.Errorf("visit %s: empty syntax tree", fileScope.Identifier)
	}
	if !w.dialects[tree.Dialect] {
		return fmt.Errorf("visit %s (%s): %w", fileScope.Identifier, tree.Dialect, ErrUnsupportedDialect)
	}

	fileScope.Kind = store.ScopeFile
	fileScope.CyclomaticComplexity = 0
	fileScope.SourceLinesOfCode = 0

	v := &visit{store: w.store, current: fileScope}
	v.node(tree.Root)
	if len(v.stack) != 0 {
		return fmt.Errorf("visit %s: %d scopes left open", fileScope.Identifier, len(v.stack))
	}
	return nil
}

// visit is the state of one file traversal.
type visit struct {
	store   *store.Store
	current *store.ScopeRecord
	stack   []*store.ScopeRecord
}

func (v *visit) node(n *syntax.Node) {
	switch n.Kind {
	case syntax.KindType:
		v.scope(n, store.ScopeType, n.Name+n.TypeParameters, 0)
		return

	case syntax.KindMethod:
		v.scope(n, store.ScopeFunction, n.Name+n.TypeParameters+parameterList(n)+n.ReturnType, 1)
		return

	case syntax.KindConstructor:
		v.scope(n, store.ScopeFunction, n.Name+parameterList(n), 1)
		return

	case syntax.KindDestructor:
		v.scope(n, store.ScopeFunction, "~"+n.Name+parameterList(n), 1)
		return

	case syntax.KindAccessor:
		name := n.Keyword
		if n.Owner != "" {
			name = store.Join(n.Owner, n.Keyword)
		}
		v.scope(n, store.ScopeAccessor, name, 1)
		return

	case syntax.KindBlock:
		v.current.SourceLinesOfCode += n.Statements()

	case syntax.KindSwitchSection:
		if !n.Default {
			v.current.CyclomaticComplexity++
		}
		v.current.SourceLinesOfCode += n.Statements()

	case syntax.KindIf, syntax.KindWhile, syntax.KindDo, syntax.KindFor:
		v.current.CyclomaticComplexity += 1 + connectives(n.Condition)

	case syntax.KindForEach, syntax.KindCatch:
		v.current.CyclomaticComplexity++

	case syntax.KindSimpleLambda:
		v.current.CyclomaticComplexity++
		v.current.SourceLinesOfCode++

	case syntax.KindLambda, syntax.KindAnonymousMethod:
		v.current.CyclomaticComplexity++
	}

	v.children(n)
}

func (v *visit) children(n *syntax.Node) {
	for _, c := range n.Children {
		v.node(c)
	}
}

// scope opens a nested scope, walks n inside it and closes it.
func (v *visit) scope(n *syntax.Node, kind store.ScopeKind, name string, baseline int) {
	v.stack = append(v.stack, v.current)
	v.current = &store.ScopeRecord{
		Identifier:           store.Join(v.current.Identifier, name),
		Kind:                 kind,
		CyclomaticComplexity: baseline,
	}

	v.children(n)

	closed := v.current
	v.current = v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	v.current.Add(closed)
	v.store.Put(closed)
}

func parameterList(n *syntax.Node) string {
	return "(" + strings.Join(n.Parameters, ", ") + ")"
}

// connectives counts the && and || operators of a condition, descending
// through binary and parenthesized expressions only.
func connectives(n *syntax.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	switch n.Kind {
	case syntax.KindBinary:
		if n.Operator == "&&" || n.Operator == "||" {
			count++
		}
	case syntax.KindParenthesized:
	default:
		return 0
	}
	for _, c := range n.Children {
		count += connectives(c)
	}
	return count
}
