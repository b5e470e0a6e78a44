package similarity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/plagiscan/engine/pkg/fingerprint"
	"github.com/plagiscan/engine/pkg/model"
	"github.com/plagiscan/engine/pkg/store"
)

type fakeResolver struct {
	files map[model.ContentHash]model.SourceFile
	calls int
}

func (r *fakeResolver) Resolve(hash model.ContentHash) (model.SourceFile, error) {
	r.calls++
	f, ok := r.files[hash]
	if !ok {
		return model.SourceFile{}, fmt.Errorf("no such file: %s", hash)
	}
	return f, nil
}

func newEngine(resolver *fakeResolver) *Engine {
	fpStore := store.NewFingerprintStore(time.Hour, 0, nil)
	cache := store.NewResultCache(fpStore)
	builder := fingerprint.NewBuilder()
	return New(fpStore, cache, builder, resolver)
}

func defaultOpts() model.Options {
	return model.Options{
		K: 6, W: 5, MinSubtreeTokens: 4,
		CandidateThreshold: 0.15, Gap: 2, MinMatchKgrams: 2,
		MaxCandidatesPerFile: 256,
	}
}

func TestCompareBelowThresholdEarlyExit(t *testing.T) {
	resolver := &fakeResolver{files: map[model.ContentHash]model.SourceFile{
		"a": {ContentHash: "a", Language: model.LangPython, Bytes: []byte("x = 1\n")},
		"b": {ContentHash: "b", Language: model.LangPython, Bytes: []byte("def totally_unrelated():\n    return 'nothing in common here at all'\n")},
	}}
	e := newEngine(resolver)

	res, err := e.Compare("a", "b", defaultOpts())
	require.NoError(t, err)
	require.Less(t, res.TokenSimilarity, 0.15)
	require.Equal(t, 0.0, res.AstSimilarity)
	require.Empty(t, res.Matches)
	require.NotEmpty(t, res.Reason)
}

func TestCompareSimilarFilesProducesMatches(t *testing.T) {
	shared := "def shared_fn(alpha, beta, gamma, delta):\n    total = alpha + beta + gamma + delta\n    return total\n"
	resolver := &fakeResolver{files: map[model.ContentHash]model.SourceFile{
		"a": {ContentHash: "a", Language: model.LangPython, Bytes: []byte(shared)},
		"b": {ContentHash: "b", Language: model.LangPython, Bytes: []byte(shared)},
	}}
	e := newEngine(resolver)

	res, err := e.Compare("a", "b", defaultOpts())
	require.NoError(t, err)
	require.Greater(t, res.TokenSimilarity, 0.15)
	require.Equal(t, 1.0, res.TokenSimilarity, "identical files should be maximally token-similar")
	require.NotEmpty(t, res.Matches)

	for _, m := range res.Matches {
		require.LessOrEqual(t, m.AStart, m.AEnd)
		require.LessOrEqual(t, m.BStart, m.BEnd)
	}
}

func TestCompareIsSymmetricUnderCanonicalization(t *testing.T) {
	shared := "def shared_fn(alpha, beta, gamma, delta):\n    total = alpha + beta + gamma + delta\n    return total\n"
	resolver := &fakeResolver{files: map[model.ContentHash]model.SourceFile{
		"a": {ContentHash: "a", Language: model.LangPython, Bytes: []byte(shared)},
		"b": {ContentHash: "b", Language: model.LangPython, Bytes: []byte(shared)},
	}}
	e := newEngine(resolver)

	res1, err := e.Compare("a", "b", defaultOpts())
	require.NoError(t, err)
	res2, err := e.Compare("b", "a", defaultOpts())
	require.NoError(t, err)
	require.Equal(t, res1, res2)
}

func TestCompareCachesAcrossCalls(t *testing.T) {
	resolver := &fakeResolver{files: map[model.ContentHash]model.SourceFile{
		"a": {ContentHash: "a", Language: model.LangPython, Bytes: []byte("x = 1\n")},
		"b": {ContentHash: "b", Language: model.LangPython, Bytes: []byte("y = 2\n")},
	}}
	e := newEngine(resolver)

	_, err := e.Compare("a", "b", defaultOpts())
	require.NoError(t, err)
	callsAfterFirst := resolver.calls

	_, err = e.Compare("a", "b", defaultOpts())
	require.NoError(t, err)
	require.Equal(t, callsAfterFirst, resolver.calls, "second compare should hit the result cache, not re-resolve")
}

func TestCompareUnresolvableFileReturnsFingerprintUnavailable(t *testing.T) {
	resolver := &fakeResolver{files: map[model.ContentHash]model.SourceFile{
		"a": {ContentHash: "a", Language: model.LangPython, Bytes: []byte("x = 1\n")},
	}}
	e := newEngine(resolver)

	_, err := e.Compare("a", "missing", defaultOpts())
	require.ErrorIs(t, err, model.ErrFingerprintUnavail)
}

func TestCompareUnsupportedLanguagePropagates(t *testing.T) {
	resolver := &fakeResolver{files: map[model.ContentHash]model.SourceFile{
		"a": {ContentHash: "a", Language: model.Language("cobol"), Bytes: []byte("IDENTIFICATION DIVISION.")},
		"b": {ContentHash: "b", Language: model.LangPython, Bytes: []byte("x = 1\n")},
	}}
	e := newEngine(resolver)

	_, err := e.Compare("a", "b", defaultOpts())
	require.ErrorIs(t, err, model.ErrUnsupportedLanguage)
}

func TestJaccardBothEmptyIsZero(t *testing.T) {
	require.Equal(t, 0.0, jaccard(nil, nil))
}

func TestJaccardIdentical(t *testing.T) {
	require.Equal(t, 1.0, jaccard([]uint64{1, 2, 3}, []uint64{1, 2, 3}))
}

func TestJaccardDisjoint(t *testing.T) {
	require.Equal(t, 0.0, jaccard([]uint64{1, 2}, []uint64{3, 4}))
}

func TestReconstructMatchesMergesWithinGap(t *testing.T) {
	a := &model.TokenFingerprint{
		Hashes: []uint64{1, 2},
		Positions: map[uint64][]model.Span{
			1: {{StartLine: 1, EndLine: 2}},
			2: {{StartLine: 4, EndLine: 5}}, // gap of 1 line from the first group's end
		},
	}
	b := &model.TokenFingerprint{
		Hashes: []uint64{1, 2},
		Positions: map[uint64][]model.Span{
			1: {{StartLine: 1, EndLine: 2}},
			2: {{StartLine: 4, EndLine: 5}},
		},
	}
	matches := reconstructMatches(a, b, model.Options{Gap: 2, MinMatchKgrams: 2})
	require.Len(t, matches, 1)
	require.Equal(t, 1, matches[0].AStart)
	require.Equal(t, 5, matches[0].AEnd)
}

func TestReconstructMatchesDropsGroupsBelowMinKgrams(t *testing.T) {
	a := &model.TokenFingerprint{
		Hashes: []uint64{1},
		Positions: map[uint64][]model.Span{
			1: {{StartLine: 1, EndLine: 2}},
		},
	}
	b := &model.TokenFingerprint{
		Hashes: []uint64{1},
		Positions: map[uint64][]model.Span{
			1: {{StartLine: 1, EndLine: 2}},
		},
	}
	matches := reconstructMatches(a, b, model.Options{Gap: 2, MinMatchKgrams: 2})
	require.Empty(t, matches, "a single shared hash cannot meet a min_match_kgrams of 2")
}

func TestReconstructMatchesProducesDisjointARanges(t *testing.T) {
	a := &model.TokenFingerprint{
		Hashes: []uint64{1, 2, 3, 4},
		Positions: map[uint64][]model.Span{
			1: {{StartLine: 1, EndLine: 3}},
			2: {{StartLine: 1, EndLine: 3}},
			3: {{StartLine: 2, EndLine: 4}},
			4: {{StartLine: 2, EndLine: 4}},
		},
	}
	b := &model.TokenFingerprint{
		Hashes: []uint64{1, 2, 3, 4},
		Positions: map[uint64][]model.Span{
			1: {{StartLine: 1, EndLine: 3}},
			2: {{StartLine: 1, EndLine: 3}},
			3: {{StartLine: 50, EndLine: 52}},
			4: {{StartLine: 50, EndLine: 52}},
		},
	}
	matches := reconstructMatches(a, b, model.Options{Gap: 2, MinMatchKgrams: 2})
	for i := 1; i < len(matches); i++ {
		require.Greater(t, matches[i].AStart, matches[i-1].AEnd, "A-ranges must be disjoint and sorted")
	}
}
