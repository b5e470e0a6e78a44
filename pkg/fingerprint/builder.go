package fingerprint

import (
	"fmt"

	"github.com/plagiscan/engine/pkg/lang"
	"github.com/plagiscan/engine/pkg/model"
)

// Builder produces fingerprints for a SourceFile via its Language Adapter.
type Builder struct{}

// NewBuilder returns a stateless fingerprint Builder.
func NewBuilder() *Builder { return &Builder{} }

// BuildToken tokenizes src and winnows it into a TokenFingerprint. A
// TokenizeError propagates to the caller: the file contributes no
// fingerprint, and any pair involving it reports zero similarity.
func (b *Builder) BuildToken(file model.SourceFile, k, w int) (*model.TokenFingerprint, error) {
	adapter, err := lang.Get(file.Language)
	if err != nil {
		return nil, err
	}
	tokens, err := adapter.Tokenize(file.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenizeFailed, err)
	}
	return BuildTokenFingerprint(file.ContentHash, tokens, k, w), nil
}

// BuildAst parses src and hashes its qualifying subtrees. A ParseError does
// not propagate: the caller gets an empty AstFingerprint and the error for
// logging, while the token path is unaffected.
func (b *Builder) BuildAst(file model.SourceFile, minSubtreeTokens int) (*model.AstFingerprint, error) {
	adapter, err := lang.Get(file.Language)
	if err != nil {
		return &model.AstFingerprint{ContentHash: file.ContentHash}, err
	}
	root, err := adapter.Parse(file.Bytes)
	if err != nil {
		return &model.AstFingerprint{ContentHash: file.ContentHash}, err
	}
	return BuildAstFingerprint(file.ContentHash, root, minSubtreeTokens), nil
}
