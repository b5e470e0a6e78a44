package lang

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/plagiscan/engine/pkg/model"
)

// treeSitterAdapter implements Adapter over a single tree-sitter grammar.
// A fresh sitter.Parser is created per call rather than reused across
// files: the fingerprint builder runs many of these concurrently
// (internal/fileproc), and sitter.Parser is not goroutine-safe.
type treeSitterAdapter struct {
	grammar grammar
}

func (a *treeSitterAdapter) parseTree(source []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(a.grammar.sitterLang)
	tree, err := p.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrParseFailed, err)
	}
	if tree.RootNode() == nil {
		return nil, fmt.Errorf("%w: empty tree", model.ErrParseFailed)
	}
	return tree, nil
}

// Tokenize walks the tree-sitter leaves and classifies each into a
// normalized Token, dropping comments. It tolerates a tree containing
// ERROR nodes (tree-sitter always produces a tree, even for invalid source)
// rather than failing the whole token path: a syntax error in one file
// should not prevent it from being compared against others.
func (a *treeSitterAdapter) Tokenize(source []byte) ([]Token, error) {
	tree, err := a.parseTree(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenizeFailed, err)
	}
	defer tree.Close()

	var tokens []Token
	a.walkTokens(tree.RootNode(), source, &tokens)
	return tokens, nil
}

func (a *treeSitterAdapter) walkTokens(node *sitter.Node, source []byte, out *[]Token) {
	if node == nil {
		return
	}
	nodeType := node.Type()

	if a.grammar.comment[nodeType] {
		return
	}

	if kind, ok := a.grammar.collapse[nodeType]; ok {
		*out = append(*out, Token{
			Kind:      kind,
			Lexeme:    nodeText(node, source),
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
		})
		return
	}

	if node.ChildCount() == 0 {
		*out = append(*out, Token{
			Kind:      nodeType,
			Lexeme:    nodeText(node, source),
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
		})
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		a.walkTokens(node.Child(i), source, out)
	}
}

// Parse builds the normalized AST used for subtree hashing. Nodes collapse
// the same way Tokenize's leaves do, and comments are excluded entirely, so
// the two views stay structurally consistent: a Node's TokenCount equals
// the number of Tokenize tokens spanned by its source range.
func (a *treeSitterAdapter) Parse(source []byte) (*Node, error) {
	tree, err := a.parseTree(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return a.walkAST(tree.RootNode(), source), nil
}

func (a *treeSitterAdapter) walkAST(node *sitter.Node, source []byte) *Node {
	if node == nil {
		return nil
	}
	nodeType := node.Type()

	if a.grammar.comment[nodeType] {
		return nil
	}

	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1

	if kind, ok := a.grammar.collapse[nodeType]; ok {
		return &Node{Kind: kind, StartLine: startLine, EndLine: endLine, TokenCount: 1}
	}

	if node.ChildCount() == 0 {
		return &Node{Kind: nodeType, StartLine: startLine, EndLine: endLine, TokenCount: 1}
	}

	var children []*Node
	tokenCount := 0
	for i := 0; i < int(node.ChildCount()); i++ {
		child := a.walkAST(node.Child(i), source)
		if child == nil {
			continue
		}
		children = append(children, child)
		tokenCount += child.TokenCount
	}

	return &Node{
		Kind:       nodeType,
		Children:   children,
		StartLine:  startLine,
		EndLine:    endLine,
		TokenCount: tokenCount,
	}
}

func nodeText(node *sitter.Node, source []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if start > end || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}
