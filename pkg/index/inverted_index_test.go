package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plagiscan/engine/pkg/model"
)

func TestIndexFileIdempotent(t *testing.T) {
	idx := New()
	fp := &model.TokenFingerprint{ContentHash: "a", Hashes: []uint64{1, 2, 3}}

	idx.IndexFile("a", fp, nil)
	idx.IndexFile("a", fp, nil) // re-index must be a no-op

	candFP := &model.TokenFingerprint{ContentHash: "b", Hashes: []uint64{1, 2, 3}}
	idx.IndexFile("b", candFP, nil)

	cands := idx.CandidatesForToken(candFP, 0.5)
	require.Len(t, cands, 1)
	require.Equal(t, model.ContentHash("a"), cands[0].ContentHash)
	require.Equal(t, 3, cands[0].OverlapCount)
}

func TestCandidatesSortedByOverlapThenHash(t *testing.T) {
	idx := New()
	idx.IndexFile("a", &model.TokenFingerprint{ContentHash: "a", Hashes: []uint64{1, 2, 3, 4}}, nil)
	idx.IndexFile("b", &model.TokenFingerprint{ContentHash: "b", Hashes: []uint64{1, 2}}, nil)
	idx.IndexFile("c", &model.TokenFingerprint{ContentHash: "c", Hashes: []uint64{1, 2, 3, 4}}, nil)

	query := &model.TokenFingerprint{ContentHash: "q", Hashes: []uint64{1, 2, 3, 4}}
	cands := idx.CandidatesForToken(query, 0.1)

	require.Len(t, cands, 3)
	require.Equal(t, model.ContentHash("a"), cands[0].ContentHash)
	require.Equal(t, model.ContentHash("c"), cands[1].ContentHash)
	require.Equal(t, model.ContentHash("b"), cands[2].ContentHash)
}

func TestCandidatesRespectOverlapThreshold(t *testing.T) {
	idx := New()
	idx.IndexFile("a", &model.TokenFingerprint{ContentHash: "a", Hashes: []uint64{1}}, nil)

	query := &model.TokenFingerprint{ContentHash: "q", Hashes: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	cands := idx.CandidatesForToken(query, 0.5)
	require.Empty(t, cands, "one shared hash out of ten is below a 0.5 ratio threshold")
}

func TestCandidatesExcludesSelf(t *testing.T) {
	idx := New()
	fp := &model.TokenFingerprint{ContentHash: "a", Hashes: []uint64{1, 2, 3}}
	idx.IndexFile("a", fp, nil)

	cands := idx.CandidatesForToken(fp, 0.1)
	require.Empty(t, cands)
}

func TestRemovePurgesPostings(t *testing.T) {
	idx := New()
	idx.IndexFile("a", &model.TokenFingerprint{ContentHash: "a", Hashes: []uint64{1, 2, 3}}, nil)
	idx.Remove("a")

	query := &model.TokenFingerprint{ContentHash: "q", Hashes: []uint64{1, 2, 3}}
	require.Empty(t, idx.CandidatesForToken(query, 0.1))

	// Re-indexing after removal should work again (idempotency guard reset).
	idx.IndexFile("a", &model.TokenFingerprint{ContentHash: "a", Hashes: []uint64{1, 2, 3}}, nil)
	require.Len(t, idx.CandidatesForToken(query, 0.1), 1)
}

func TestAstAndTokenPostingsDoNotCollide(t *testing.T) {
	idx := New()
	idx.IndexFile("a",
		&model.TokenFingerprint{ContentHash: "a", Hashes: []uint64{42}},
		&model.AstFingerprint{ContentHash: "a", Hashes: []uint64{7}},
	)

	tokenQuery := &model.TokenFingerprint{ContentHash: "q", Hashes: []uint64{7}}
	require.Empty(t, idx.CandidatesForToken(tokenQuery, 0.1), "ast hash 7 must not appear in the token postings space")

	astQuery := &model.AstFingerprint{ContentHash: "q", Hashes: []uint64{7}}
	require.Len(t, idx.CandidatesForAst(astQuery, 0.1), 1)
}
