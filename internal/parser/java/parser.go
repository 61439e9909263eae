// Package java converts Java source into syntax trees using the tree-sitter
// Java grammar.
package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/syntax"
)

// JavaParser parses Java source files.
type JavaParser struct {
	*parser.TreeSitter
}

// NewParser creates a new Java parser.
func NewParser() *JavaParser {
	return &JavaParser{TreeSitter: parser.NewTreeSitter(Grammar())}
}

var kinds = map[string]syntax.Kind{
	"program":                         syntax.KindCompilationUnit,
	"class_declaration":               syntax.KindType,
	"interface_declaration":           syntax.KindType,
	"enum_declaration":                syntax.KindType,
	"record_declaration":              syntax.KindType,
	"annotation_type_declaration":     syntax.KindType,
	"method_declaration":              syntax.KindMethod,
	"constructor_declaration":         syntax.KindConstructor,
	"compact_constructor_declaration": syntax.KindConstructor,
	"block":                           syntax.KindBlock,
	"constructor_body":                syntax.KindBlock,
	"switch_block_statement_group":    syntax.KindSwitchSection,
	"switch_rule":                     syntax.KindSwitchSection,
	"if_statement":                    syntax.KindIf,
	"while_statement":                 syntax.KindWhile,
	"do_statement":                    syntax.KindDo,
	"for_statement":                   syntax.KindFor,
	"enhanced_for_statement":          syntax.KindForEach,
	"catch_clause":                    syntax.KindCatch,
	"lambda_expression":               syntax.KindLambda,
	"binary_expression":               syntax.KindBinary,
	"parenthesized_expression":        syntax.KindParenthesized,
}

// statementTypes are Java statement nodes whose type does not end in
// "_statement".
var statementTypes = map[string]bool{
	"block":                           true,
	"local_variable_declaration":      true,
	"switch_expression":               true,
	"explicit_constructor_invocation": true,
}

// Grammar returns the Java grammar mapping.
func Grammar() parser.Grammar {
	return parser.Grammar{
		Dialect:     parser.DialectJava,
		Language:    java.GetLanguage(),
		Kinds:       kinds,
		IsStatement: isStatement,
		Skip: map[string]bool{
			"line_comment":  true,
			"block_comment": true,
			"comment":       true,
		},
		Decorate: decorate,
	}
}

func isStatement(nodeType string) bool {
	return statementTypes[nodeType] || strings.HasSuffix(nodeType, "_statement")
}

func decorate(el parser.Element) {
	n := el.Node
	switch n.Kind {
	case syntax.KindType:
		n.Name = el.FieldText("name")
		n.TypeParameters = el.FieldText("type_parameters")

	case syntax.KindMethod:
		n.Name = el.FieldText("name")
		n.TypeParameters = el.FieldText("type_parameters")
		n.Parameters = parameterTypes(el, el.Field("parameters"))
		n.ReturnType = el.FieldText("type") + el.FieldText("dimensions")

	case syntax.KindConstructor:
		n.Name = el.FieldText("name")
		n.Parameters = parameterTypes(el, el.Field("parameters"))

	case syntax.KindSwitchSection:
		for i := 0; i < int(el.TS.NamedChildCount()); i++ {
			label := el.TS.NamedChild(i)
			if label.Type() == "switch_label" && parser.HasToken(label, "default") {
				n.Default = true
				break
			}
		}

	case syntax.KindIf, syntax.KindWhile, syntax.KindDo, syntax.KindFor:
		n.Condition = el.Converted(el.Field("condition"))

	case syntax.KindLambda:
		// x -> x + 1 has a bare identifier as its parameter list.
		if params := el.Field("parameters"); params != nil && params.Type() == "identifier" {
			n.Kind = syntax.KindSimpleLambda
		}

	case syntax.KindBinary:
		n.Operator = el.Operator()

	default:
		if n.Type == "switch_block" {
			parser.MergeSwitchSections(n, "switch_block_statement_group")
		}
	}
}

// parameterTypes renders the declared type of each formal parameter,
// omitting names. Receiver parameters are not part of the signature.
func parameterTypes(el parser.Element, list *sitter.Node) []string {
	if list == nil {
		return nil
	}
	types := make([]string, 0, list.NamedChildCount())
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			types = append(types, el.Text(p.ChildByFieldName("type"))+el.Text(p.ChildByFieldName("dimensions")))
		case "spread_parameter":
			types = append(types, spreadType(el, p)+"...")
		}
	}
	return types
}

func spreadType(el parser.Element, p *sitter.Node) string {
	for i := 0; i < int(p.NamedChildCount()); i++ {
		child := p.NamedChild(i)
		if child.Type() != "modifiers" {
			return el.Text(child)
		}
	}
	return ""
}
