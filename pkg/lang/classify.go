package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/plagiscan/engine/pkg/model"
)

// grammar bundles a tree-sitter language with the node-type classification
// needed to normalize its leaves into Token.Kind values.
type grammar struct {
	sitterLang *sitter.Language
	// collapse maps a node type that should become a single normalized
	// token (and not be descended into) to the Kind it collapses to.
	collapse map[string]string
	// comment marks node types that are dropped entirely: no token, no
	// AST node. Comments and whitespace carry no signal for matching and
	// would otherwise inflate false similarity between unrelated files.
	comment map[string]bool
}

var grammars = map[model.Language]grammar{
	model.LangGo: {
		sitterLang: golang.GetLanguage(),
		collapse: map[string]string{
			"identifier":                KindIdentifier,
			"field_identifier":          KindIdentifier,
			"type_identifier":           KindIdentifier,
			"package_identifier":        KindIdentifier,
			"interpreted_string_literal": KindString,
			"raw_string_literal":        KindString,
			"rune_literal":              KindString,
			"int_literal":               KindNumber,
			"float_literal":             KindNumber,
			"imaginary_literal":         KindNumber,
		},
		comment: map[string]bool{"comment": true},
	},
	model.LangRust: {
		sitterLang: rust.GetLanguage(),
		collapse: map[string]string{
			"identifier":       KindIdentifier,
			"field_identifier": KindIdentifier,
			"type_identifier":  KindIdentifier,
			"string_literal":   KindString,
			"raw_string_literal": KindString,
			"char_literal":     KindString,
			"integer_literal":  KindNumber,
			"float_literal":    KindNumber,
		},
		comment: map[string]bool{"line_comment": true, "block_comment": true},
	},
	model.LangPython: {
		sitterLang: python.GetLanguage(),
		collapse: map[string]string{
			"identifier": KindIdentifier,
			"string":     KindString,
			"integer":    KindNumber,
			"float":      KindNumber,
		},
		comment: map[string]bool{"comment": true},
	},
	model.LangJavaScript: {
		sitterLang: javascript.GetLanguage(),
		collapse: map[string]string{
			"identifier":                    KindIdentifier,
			"property_identifier":           KindIdentifier,
			"shorthand_property_identifier": KindIdentifier,
			"string":                        KindString,
			"template_string":               KindString,
			"number":                        KindNumber,
		},
		comment: map[string]bool{"comment": true},
	},
	model.LangTypeScript: {
		sitterLang: typescript.GetLanguage(),
		collapse: map[string]string{
			"identifier":                    KindIdentifier,
			"property_identifier":           KindIdentifier,
			"shorthand_property_identifier": KindIdentifier,
			"type_identifier":               KindIdentifier,
			"string":                        KindString,
			"template_string":               KindString,
			"number":                        KindNumber,
		},
		comment: map[string]bool{"comment": true},
	},
	model.LangJava: {
		sitterLang: java.GetLanguage(),
		collapse: map[string]string{
			"identifier":                     KindIdentifier,
			"type_identifier":                KindIdentifier,
			"string_literal":                 KindString,
			"decimal_integer_literal":        KindNumber,
			"decimal_floating_point_literal": KindNumber,
			"hex_integer_literal":            KindNumber,
		},
		comment: map[string]bool{"line_comment": true, "block_comment": true},
	},
	model.LangC: {
		sitterLang: c.GetLanguage(),
		collapse: map[string]string{
			"identifier":       KindIdentifier,
			"field_identifier": KindIdentifier,
			"type_identifier":  KindIdentifier,
			"string_literal":   KindString,
			"char_literal":     KindString,
			"number_literal":   KindNumber,
		},
		comment: map[string]bool{"comment": true},
	},
	model.LangCPP: {
		sitterLang: cpp.GetLanguage(),
		collapse: map[string]string{
			"identifier":       KindIdentifier,
			"field_identifier": KindIdentifier,
			"type_identifier":  KindIdentifier,
			"string_literal":   KindString,
			"char_literal":     KindString,
			"number_literal":   KindNumber,
		},
		comment: map[string]bool{"comment": true},
	},
}
