package parser

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/codecaliper/internal/syntax"
)

// Grammar describes how a tree-sitter grammar maps onto syntax kinds.
type Grammar struct {
	Dialect  Dialect
	Language *sitter.Language

	// Kinds maps grammar node types to syntax kinds. Unlisted types become
	// syntax.KindOther.
	Kinds map[string]syntax.Kind

	// IsStatement reports whether a grammar node type is a statement.
	IsStatement func(nodeType string) bool

	// Skip lists grammar node types dropped from the tree (comments).
	Skip map[string]bool

	// Decorate fills in the kind-specific fields of a converted node. It runs
	// after the node's children have been converted.
	Decorate func(el Element)
}

// TreeSitter parses source text with a tree-sitter grammar and converts the
// concrete tree into a syntax.Tree. Parsers are pooled so concurrent callers
// never share one.
type TreeSitter struct {
	grammar Grammar
	pool    sync.Pool
}

// NewTreeSitter creates a pooled tree-sitter parser for the grammar.
func NewTreeSitter(g Grammar) *TreeSitter {
	ts := &TreeSitter{grammar: g}
	ts.pool.New = func() any {
		p := sitter.NewParser()
		p.SetLanguage(g.Language)
		return p
	}
	return ts
}

// Dialect returns the grammar's dialect.
func (ts *TreeSitter) Dialect() Dialect { return ts.grammar.Dialect }

// Extensions returns the extensions registered for the grammar's dialect.
func (ts *TreeSitter) Extensions() []string { return FileExtensions[ts.grammar.Dialect] }

// Parse parses content and converts it. Trees containing ERROR or MISSING
// nodes are rejected with a *ParseError.
func (ts *TreeSitter) Parse(filePath string, content []byte) (*syntax.Tree, error) {
	sp, _ := ts.pool.Get().(*sitter.Parser)
	if sp == nil {
		return nil, fmt.Errorf("no parser available for %s", ts.grammar.Dialect)
	}
	tree, err := sp.ParseCtx(context.Background(), nil, content)
	ts.pool.Put(sp)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}

	root := tree.RootNode()
	if root.HasError() {
		return nil, newParseError(filePath, root, content)
	}

	c := &converter{grammar: &ts.grammar, content: content}
	return &syntax.Tree{
		Path:    filePath,
		Dialect: string(ts.grammar.Dialect),
		Source:  content,
		Root:    c.convert(root),
	}, nil
}

func newParseError(filePath string, root *sitter.Node, content []byte) *ParseError {
	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	pe := &ParseError{
		Path:   filePath,
		Line:   int(bad.StartPoint().Row) + 1,
		Column: int(bad.StartPoint().Column) + 1,
	}
	snippet := bad.Content(content)
	if len(snippet) > 40 {
		snippet = snippet[:40]
	}
	pe.Snippet = snippet
	return pe
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

type converter struct {
	grammar *Grammar
	content []byte
}

func (c *converter) convert(ts *sitter.Node) *syntax.Node {
	typ := ts.Type()
	n := &syntax.Node{
		Kind: c.grammar.Kinds[typ],
		Type: typ,
		Span: syntax.Span{
			Start:     syntax.Position{Row: int(ts.StartPoint().Row), Column: int(ts.StartPoint().Column)},
			End:       syntax.Position{Row: int(ts.EndPoint().Row), Column: int(ts.EndPoint().Column)},
			StartByte: int(ts.StartByte()),
			EndByte:   int(ts.EndByte()),
		},
	}
	if c.grammar.IsStatement != nil {
		n.Statement = c.grammar.IsStatement(typ)
	}

	for i := 0; i < int(ts.NamedChildCount()); i++ {
		child := ts.NamedChild(i)
		if child == nil || c.grammar.Skip[child.Type()] {
			continue
		}
		n.Children = append(n.Children, c.convert(child))
	}

	if c.grammar.Decorate != nil {
		c.grammar.Decorate(Element{TS: ts, Node: n, Source: c.content})
	}
	return n
}

// Element pairs a tree-sitter node with its converted syntax node while a
// grammar decorates it.
type Element struct {
	TS     *sitter.Node
	Node   *syntax.Node
	Source []byte
}

// Text returns the source text of a tree-sitter node, or "" for nil.
func (el Element) Text(ts *sitter.Node) string {
	if ts == nil {
		return ""
	}
	return ts.Content(el.Source)
}

// Field returns the child stored under a grammar field name.
func (el Element) Field(name string) *sitter.Node {
	return el.TS.ChildByFieldName(name)
}

// FieldText returns the source text of a field, or "" if it is absent.
func (el Element) FieldText(name string) string {
	return el.Text(el.Field(name))
}

// NamedChildOfType returns the first named child with one of the given types.
func (el Element) NamedChildOfType(types ...string) *sitter.Node {
	for i := 0; i < int(el.TS.NamedChildCount()); i++ {
		child := el.TS.NamedChild(i)
		for _, t := range types {
			if child.Type() == t {
				return child
			}
		}
	}
	return nil
}

// HasToken reports whether an anonymous child of ts has the given type.
func HasToken(ts *sitter.Node, token string) bool {
	if ts == nil {
		return false
	}
	for i := 0; i < int(ts.ChildCount()); i++ {
		child := ts.Child(i)
		if child != nil && !child.IsNamed() && child.Type() == token {
			return true
		}
	}
	return false
}

// Converted returns the converted syntax child matching a tree-sitter child.
func (el Element) Converted(ts *sitter.Node) *syntax.Node {
	if ts == nil {
		return nil
	}
	start, end, typ := int(ts.StartByte()), int(ts.EndByte()), ts.Type()
	for _, c := range el.Node.Children {
		if c.Span.StartByte == start && c.Span.EndByte == end && c.Type == typ {
			return c
		}
	}
	return nil
}

// Operator returns the operator token of a binary expression.
func (el Element) Operator() string {
	if op := el.Field("operator"); op != nil {
		return op.Type()
	}
	for i := 0; i < int(el.TS.ChildCount()); i++ {
		child := el.TS.Child(i)
		if child != nil && !child.IsNamed() {
			return child.Type()
		}
	}
	return ""
}

// MergeSwitchSections folds every section of body whose grammar type is
// sectionType and which holds no statements into the section that follows it.
// Grammars split stacked labels (case 1: case 2: ...) into several sections;
// after merging each statement group is one section, and it is a default
// section when any of its labels was default.
func MergeSwitchSections(body *syntax.Node, sectionType string) {
	if body == nil {
		return
	}
	kept := body.Children[:0]
	var pending *syntax.Node
	for _, child := range body.Children {
		if child.Kind != syntax.KindSwitchSection || child.Type != sectionType {
			kept = append(kept, child)
			continue
		}
		if pending != nil {
			child.Default = child.Default || pending.Default
			child.Children = append(pending.Children, child.Children...)
			child.Span.Start = pending.Span.Start
			child.Span.StartByte = pending.Span.StartByte
			pending = nil
		}
		if child.Statements() == 0 {
			pending = child
			continue
		}
		kept = append(kept, child)
	}
	// Labels at the end of a switch have nothing to fall into.
	if pending != nil {
		kept = append(kept, pending)
	}
	body.Children = kept
}
