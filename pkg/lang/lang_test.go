package lang

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plagiscan/engine/pkg/model"
)

func TestGetUnsupportedLanguage(t *testing.T) {
	_, err := Get(model.Language("cobol"))
	require.ErrorIs(t, err, model.ErrUnsupportedLanguage)
}

func TestSupportedIncludesSpecLanguages(t *testing.T) {
	supported := map[model.Language]bool{}
	for _, l := range Supported() {
		supported[l] = true
	}
	for _, want := range []model.Language{
		model.LangPython, model.LangJavaScript, model.LangTypeScript,
		model.LangC, model.LangCPP, model.LangJava, model.LangGo, model.LangRust,
	} {
		require.True(t, supported[want], "expected %s to be supported", want)
	}
}

func TestTokenizeDropsCommentsAndNormalizes(t *testing.T) {
	a, err := Get(model.LangPython)
	require.NoError(t, err)

	src := []byte("def foo(x):\n    # a comment\n    return x + 1\n")
	tokens, err := a.Tokenize(src)
	require.NoError(t, err)

	for _, tok := range tokens {
		require.NotContains(t, tok.Lexeme, "a comment")
	}

	var kinds []string
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}
	require.Contains(t, kinds, KindIdentifier)
	require.Contains(t, kinds, KindNumber)
	require.Contains(t, kinds, "def")
	require.Contains(t, kinds, "return")
}

func TestTokenizeRenameInvariance(t *testing.T) {
	a, err := Get(model.LangPython)
	require.NoError(t, err)

	original := []byte("def foo(x):\n    return x * 2\n")
	renamed := []byte("def bar(y):\n    return y * 2\n")

	tokA, err := a.Tokenize(original)
	require.NoError(t, err)
	tokB, err := a.Tokenize(renamed)
	require.NoError(t, err)

	require.Equal(t, len(tokA), len(tokB))
	for i := range tokA {
		require.Equal(t, tokA[i].Kind, tokB[i].Kind, "token %d kind mismatch", i)
	}
}

func TestTokenizeWhitespaceReformattingInvariance(t *testing.T) {
	a, err := Get(model.LangGo)
	require.NoError(t, err)

	compact := []byte("package p\nfunc f(x int) int { return x+1 }\n")
	spaced := []byte("package p\n\nfunc f(x int) int {\n\treturn x + 1\n}\n")

	tokA, err := a.Tokenize(compact)
	require.NoError(t, err)
	tokB, err := a.Tokenize(spaced)
	require.NoError(t, err)

	require.Equal(t, len(tokA), len(tokB))
	for i := range tokA {
		require.Equal(t, tokA[i].Kind, tokB[i].Kind, "token %d kind mismatch", i)
	}
}

func TestParseTokenCountMatchesTokenize(t *testing.T) {
	a, err := Get(model.LangGo)
	require.NoError(t, err)

	src := []byte("package p\nfunc f(x int) int { return x + 1 }\n")
	tokens, err := a.Tokenize(src)
	require.NoError(t, err)

	root, err := a.Parse(src)
	require.NoError(t, err)

	require.Equal(t, len(tokens), root.TokenCount)
}

func TestParseChildOrderPreserved(t *testing.T) {
	a, err := Get(model.LangGo)
	require.NoError(t, err)

	root, err := a.Parse([]byte("package p\nfunc f() { a(); b() }\n"))
	require.NoError(t, err)
	require.NotNil(t, root)
	require.NotEmpty(t, root.Children)
}
