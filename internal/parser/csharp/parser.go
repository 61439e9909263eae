// Package csharp converts C# source into syntax trees using the tree-sitter
// C# grammar.
package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/imyousuf/codecaliper/internal/parser"
	"github.com/imyousuf/codecaliper/internal/syntax"
)

// CSharpParser parses C# source files.
type CSharpParser struct {
	*parser.TreeSitter
}

// NewParser creates a new C# parser.
func NewParser() *CSharpParser {
	return &CSharpParser{TreeSitter: parser.NewTreeSitter(Grammar())}
}

var kinds = map[string]syntax.Kind{
	"compilation_unit":            syntax.KindCompilationUnit,
	"class_declaration":           syntax.KindType,
	"struct_declaration":          syntax.KindType,
	"interface_declaration":       syntax.KindType,
	"record_declaration":          syntax.KindType,
	"record_struct_declaration":   syntax.KindType,
	"method_declaration":          syntax.KindMethod,
	"constructor_declaration":     syntax.KindConstructor,
	"destructor_declaration":      syntax.KindDestructor,
	"accessor_declaration":        syntax.KindAccessor,
	"block":                       syntax.KindBlock,
	"switch_section":              syntax.KindSwitchSection,
	"if_statement":                syntax.KindIf,
	"while_statement":             syntax.KindWhile,
	"do_statement":                syntax.KindDo,
	"for_statement":               syntax.KindFor,
	"foreach_statement":           syntax.KindForEach,
	"catch_clause":                syntax.KindCatch,
	"lambda_expression":           syntax.KindLambda,
	"anonymous_method_expression": syntax.KindAnonymousMethod,
	"binary_expression":           syntax.KindBinary,
	"parenthesized_expression":    syntax.KindParenthesized,
}

// accessorKeywords are the tokens that can open an accessor declaration.
var accessorKeywords = []string{"get", "set", "init", "add", "remove"}

// Grammar returns the C# grammar mapping.
func Grammar() parser.Grammar {
	return parser.Grammar{
		Dialect:     parser.DialectCSharp,
		Language:    csharp.GetLanguage(),
		Kinds:       kinds,
		IsStatement: isStatement,
		Skip:        map[string]bool{"comment": true},
		Decorate:    decorate,
	}
}

func isStatement(nodeType string) bool {
	return nodeType == "block" || strings.HasSuffix(nodeType, "_statement")
}

func decorate(el parser.Element) {
	n := el.Node
	switch n.Kind {
	case syntax.KindType:
		n.Name = el.FieldText("name")
		n.TypeParameters = typeParameters(el)

	case syntax.KindMethod:
		n.Name = el.FieldText("name")
		n.TypeParameters = typeParameters(el)
		n.Parameters = parameterTypes(el, el.Field("parameters"))
		n.ReturnType = el.FieldText("returns")
		if n.ReturnType == "" {
			n.ReturnType = el.FieldText("type")
		}

	case syntax.KindConstructor, syntax.KindDestructor:
		n.Name = el.FieldText("name")
		n.Parameters = parameterTypes(el, el.Field("parameters"))

	case syntax.KindAccessor:
		n.Keyword = accessorKeyword(el)

	case syntax.KindSwitchSection:
		n.Default = el.NamedChildOfType("default_switch_label") != nil || parser.HasToken(el.TS, "default")

	case syntax.KindIf, syntax.KindWhile, syntax.KindDo, syntax.KindFor:
		n.Condition = el.Converted(el.Field("condition"))

	case syntax.KindLambda:
		// x => x + 1 has no parenthesized parameter list.
		if el.NamedChildOfType("parameter_list") == nil {
			n.Kind = syntax.KindSimpleLambda
		}

	case syntax.KindBinary:
		n.Operator = el.Operator()

	default:
		switch n.Type {
		case "switch_body":
			parser.MergeSwitchSections(n, "switch_section")
		case "property_declaration", "event_declaration":
			assignOwner(el, el.FieldText("name"))
		case "indexer_declaration":
			params := el.Field("parameters")
			if params == nil {
				params = el.NamedChildOfType("bracketed_parameter_list")
			}
			owner := "[" + strings.Join(parameterTypes(el, params), ", ") + "]" + el.FieldText("type")
			assignOwner(el, owner)
		}
	}
}

func typeParameters(el parser.Element) string {
	tp := el.Field("type_parameters")
	if tp == nil {
		tp = el.NamedChildOfType("type_parameter_list")
	}
	return el.Text(tp)
}

// parameterTypes renders the declared type of each parameter, omitting names.
func parameterTypes(el parser.Element, list *sitter.Node) []string {
	if list == nil {
		return nil
	}
	types := make([]string, 0, list.NamedChildCount())
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p.Type() != "parameter" {
			continue
		}
		types = append(types, el.Text(p.ChildByFieldName("type")))
	}
	return types
}

func accessorKeyword(el parser.Element) string {
	if name := el.Field("name"); name != nil {
		return el.Text(name)
	}
	for _, kw := range accessorKeywords {
		if parser.HasToken(el.TS, kw) {
			return kw
		}
	}
	return ""
}

// assignOwner stamps the member signature on the accessors of a property,
// event or indexer.
func assignOwner(el parser.Element, owner string) {
	for _, child := range el.Node.Children {
		if child.Type != "accessor_list" {
			continue
		}
		for _, acc := range child.Children {
			if acc.Kind == syntax.KindAccessor {
				acc.Owner = owner
			}
		}
	}
}
