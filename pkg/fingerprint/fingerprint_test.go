package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plagiscan/engine/pkg/lang"
	"github.com/plagiscan/engine/pkg/model"
)

func tokenize(t *testing.T, language model.Language, src string) []lang.Token {
	t.Helper()
	adapter, err := lang.Get(language)
	require.NoError(t, err)
	toks, err := adapter.Tokenize([]byte(src))
	require.NoError(t, err)
	return toks
}

func TestBuildTokenFingerprintInvariants(t *testing.T) {
	toks := tokenize(t, model.LangPython, "def f(x):\n    return x + 1\n")
	fp := BuildTokenFingerprint("h", toks, 6, 5)

	for _, h := range fp.Hashes {
		spans, ok := fp.Positions[h]
		require.True(t, ok, "every hash must have a position entry")
		require.NotEmpty(t, spans)
		for _, sp := range spans {
			require.LessOrEqual(t, sp.StartLine, sp.EndLine)
			require.GreaterOrEqual(t, sp.StartLine, 1)
		}
	}
}

func TestBuildTokenFingerprintDeterministic(t *testing.T) {
	src := "def f(x):\n    return x + 1\n"
	toks1 := tokenize(t, model.LangPython, src)
	toks2 := tokenize(t, model.LangPython, src)

	fp1 := BuildTokenFingerprint("h", toks1, 6, 5)
	fp2 := BuildTokenFingerprint("h", toks2, 6, 5)

	require.Equal(t, fp1.Hashes, fp2.Hashes)
	require.Equal(t, fp1.TotalKgrams, fp2.TotalKgrams)
}

func TestBuildTokenFingerprintTooShortYieldsEmpty(t *testing.T) {
	toks := tokenize(t, model.LangPython, "x = 1\n")
	fp := BuildTokenFingerprint("h", toks, 6, 5)
	require.Empty(t, fp.Hashes)
	require.Equal(t, 0, fp.TotalKgrams)
}

func TestWinnowGuaranteesSharedSubstring(t *testing.T) {
	// A substring of >= w+k-1 = 10 normalized tokens shared between two
	// files must yield at least one shared hash.
	shared := "def shared_fn(alpha, beta, gamma):\n    return alpha + beta + gamma\n"
	fileA := shared + "x = 1\n"
	fileB := "y = 2\n" + shared

	fpA := BuildTokenFingerprint("a", tokenize(t, model.LangPython, fileA), 6, 5)
	fpB := BuildTokenFingerprint("b", tokenize(t, model.LangPython, fileB), 6, 5)

	shared1 := intersect(fpA.Hashes, fpB.Hashes)
	require.NotEmpty(t, shared1, "expected at least one shared winnowed hash")
}

func TestWinnowEmitsEachSelectionAtMostOnceAtCanonicalPosition(t *testing.T) {
	toks := tokenize(t, model.LangGo, "package p\nfunc f(a, b, c, d, e int) int { return a + b + c + d + e }\n")
	codes := make([]uint64, len(toks))
	seed := engineSeed(model.EngineVersion)
	for i, tok := range toks {
		codes[i] = codeOf(tok.Kind, seed)
	}
	kgrams := rollingKgramHashes(codes, 6)
	selections := winnow(kgrams, 5)

	seenPos := make(map[int]bool)
	for _, sel := range selections {
		require.False(t, seenPos[sel.pos], "position %d selected twice", sel.pos)
		seenPos[sel.pos] = true
	}
}

func TestBuildAstFingerprintDeterministicAndOrderSensitive(t *testing.T) {
	a1, err := lang.Get(model.LangGo)
	require.NoError(t, err)

	src := []byte("package p\nfunc f() {\n\ta()\n\tb()\n}\n")
	root1, err := a1.Parse(src)
	require.NoError(t, err)
	root2, err := a1.Parse(src)
	require.NoError(t, err)

	fp1 := BuildAstFingerprint("h", root1, 1)
	fp2 := BuildAstFingerprint("h", root2, 1)
	require.Equal(t, fp1.Hashes, fp2.Hashes)

	// Swapping call order changes the function body's subtree hash.
	swapped := []byte("package p\nfunc f() {\n\tb()\n\ta()\n}\n")
	rootSwapped, err := a1.Parse(swapped)
	require.NoError(t, err)
	fpSwapped := BuildAstFingerprint("h", rootSwapped, 1)

	require.NotEqual(t, fp1.Hashes, fpSwapped.Hashes)
}

func TestBuildAstFingerprintRespectsMinSubtreeTokens(t *testing.T) {
	a1, err := lang.Get(model.LangGo)
	require.NoError(t, err)
	root, err := a1.Parse([]byte("package p\nfunc f() { return }\n"))
	require.NoError(t, err)

	low := BuildAstFingerprint("h", root, 1)
	high := BuildAstFingerprint("h", root, 10000)

	require.NotEmpty(t, low.Hashes)
	require.Empty(t, high.Hashes)
}

func TestBuildAstFingerprintNilRoot(t *testing.T) {
	fp := BuildAstFingerprint("h", nil, 20)
	require.Empty(t, fp.Hashes)
	require.Equal(t, 0, fp.TotalSubtrees)
}

func intersect(a, b []uint64) []uint64 {
	set := make(map[uint64]bool, len(a))
	for _, h := range a {
		set[h] = true
	}
	var out []uint64
	for _, h := range b {
		if set[h] {
			out = append(out, h)
		}
	}
	return out
}
