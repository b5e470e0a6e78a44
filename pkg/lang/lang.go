// Package lang implements a Language Adapter: a capability surface of
// {tokenize, parse} selected by an explicit language tag carried on the
// job (rather than inferred from a file extension), with outputs
// normalized for cross-submission comparison.
package lang

import (
	"fmt"

	"github.com/plagiscan/engine/pkg/model"
)

// Token is one normalized lexical unit. Kind is what gets hashed into
// k-grams; identifiers collapse to KindIdentifier, numeric and string
// literals collapse to KindNumber/KindString, and comments/whitespace
// never appear here at all — this normalization is what makes
// renaming-resistant similarity work. Lexeme preserves the original text
// for diagnostics only — it plays no part in fingerprinting.
type Token struct {
	Kind      string
	Lexeme    string
	StartLine int
	EndLine   int
}

const (
	KindIdentifier = "ID"
	KindString     = "STR"
	KindNumber     = "NUM"
)

// Node is one AST node: a kind label, its children in source order, and the
// line span it covers. TokenCount is the number of normalized tokens (as
// produced by Tokenize) spanned by this subtree; it is what
// pkg/fingerprint compares against min_subtree_tokens.
type Node struct {
	Kind       string
	Children   []*Node
	StartLine  int
	EndLine    int
	TokenCount int
}

// Adapter maps a single language's grammar to the two operations the
// fingerprint builder needs.
type Adapter interface {
	// Tokenize returns the normalized token stream.
	Tokenize(source []byte) ([]Token, error)
	// Parse returns the normalized AST. A grammar that cannot produce a
	// tree returns model.ErrParseFailed; this must never prevent Tokenize
	// from succeeding, so callers should attempt Tokenize independently
	// rather than deriving it from a failed Parse.
	Parse(source []byte) (*Node, error)
}

// Get resolves a language tag to its Adapter. Unknown tags fail with
// model.ErrUnsupportedLanguage.
func Get(language model.Language) (Adapter, error) {
	grammar, ok := grammars[language]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedLanguage, language)
	}
	return &treeSitterAdapter{grammar: grammar}, nil
}

// Supported reports every language tag with a registered grammar.
func Supported() []model.Language {
	out := make([]model.Language, 0, len(grammars))
	for lang := range grammars {
		out = append(out, lang)
	}
	return out
}
