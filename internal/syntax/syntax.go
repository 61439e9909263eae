// Package syntax defines the dialect-neutral syntax tree consumed by the
// metrics walker. Parsers translate their concrete trees into this shape so the
// walker only ever switches over a closed set of node kinds.
package syntax

// Kind classifies a syntax node.
type Kind int

const (
	KindOther Kind = iota
	KindCompilationUnit
	KindType
	KindMethod
	KindConstructor
	KindDestructor
	KindAccessor
	KindBlock
	KindSwitchSection
	KindIf
	KindWhile
	KindDo
	KindFor
	KindForEach
	KindCatch
	KindSimpleLambda
	KindLambda
	KindAnonymousMethod
	KindBinary
	KindParenthesized
)

var kindNames = [...]string{
	KindOther:           "other",
	KindCompilationUnit: "compilation_unit",
	KindType:            "type",
	KindMethod:          "method",
	KindConstructor:     "constructor",
	KindDestructor:      "destructor",
	KindAccessor:        "accessor",
	KindBlock:           "block",
	KindSwitchSection:   "switch_section",
	KindIf:              "if",
	KindWhile:           "while",
	KindDo:              "do",
	KindFor:             "for",
	KindForEach:         "foreach",
	KindCatch:           "catch",
	KindSimpleLambda:    "simple_lambda",
	KindLambda:          "lambda",
	KindAnonymousMethod: "anonymous_method",
	KindBinary:          "binary",
	KindParenthesized:   "parenthesized",
}

// String returns the string representation of Kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Position is a zero-based row/column location in source text.
type Position struct {
	Row    int
	Column int
}

// Span locates a node in its source.
type Span struct {
	Start     Position
	End       Position
	StartByte int
	EndByte   int
}

// Node is one node of a parsed file.
//
// Only the fields relevant to a node's Kind are populated: declarations carry
// Name, TypeParameters, Parameters and ReturnType; accessors carry Owner and
// Keyword; binary expressions carry Operator; switch sections carry Default.
type Node struct {
	Kind Kind
	// Type is the grammar's own name for the node (e.g. "if_statement").
	Type string
	Span Span

	Name           string
	TypeParameters string
	Parameters     []string
	ReturnType     string

	// Owner is the rendered signature of the property or indexer an accessor
	// belongs to.
	Owner   string
	Keyword string

	Operator string

	// Default reports whether a switch section carries a default label.
	Default bool

	// Statement marks nodes that count as statements when they appear
	// directly inside a block or switch section.
	Statement bool

	// Condition points at the controlling expression of an if, while, do or
	// for node. It is also present in Children.
	Condition *Node

	Children []*Node
}

// Statements returns the number of direct children marked as statements.
func (n *Node) Statements() int {
	count := 0
	for _, c := range n.Children {
		if c.Statement {
			count++
		}
	}
	return count
}

// Tree is a parsed source file.
type Tree struct {
	Path    string
	Dialect string
	Source  []byte
	Root    *Node
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *Node) string {
	if n == nil || n.Span.StartByte < 0 || n.Span.EndByte > len(t.Source) || n.Span.StartByte > n.Span.EndByte {
		return ""
	}
	return string(t.Source[n.Span.StartByte:n.Span.EndByte])
}

// WalkFunc is called for each node during traversal.
// Return false to skip children.
type WalkFunc func(n *Node) bool

// Walk traverses the tree rooted at n in depth-first order.
func Walk(n *Node, fn WalkFunc) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Count returns the number of nodes of the given kind under n, n included.
func Count(n *Node, kind Kind) int {
	count := 0
	Walk(n, func(c *Node) bool {
		if c.Kind == kind {
			count++
		}
		return true
	})
	return count
}
