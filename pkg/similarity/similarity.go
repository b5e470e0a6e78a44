// Package similarity implements pairwise comparison of two content hashes
// into token/AST Jaccard similarity plus reconstructed match spans, backed
// by the fingerprint store and result cache.
package similarity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/plagiscan/engine/pkg/fingerprint"
	"github.com/plagiscan/engine/pkg/model"
	"github.com/plagiscan/engine/pkg/store"
)

// FileResolver recovers a SourceFile's bytes from its content hash, for the
// case where compare needs to fingerprint a file that is not yet in the
// store. Kept as an explicit collaborator interface rather than a package
// global, the way the rest of this engine threads its I/O boundaries.
type FileResolver interface {
	Resolve(hash model.ContentHash) (model.SourceFile, error)
}

// Engine is the stateful Similarity Engine: it owns no file bytes itself,
// only the fingerprint store, result cache, and builder it needs to satisfy
// Compare. Its match-scoring and merge logic generalizes the single-pass
// MinHash scoring approach to a dual token/AST scheme with an explicit
// cache layer in front.
type Engine struct {
	store    *store.FingerprintStore
	cache    *store.ResultCache
	builder  *fingerprint.Builder
	resolver FileResolver
}

// New constructs a similarity Engine over the given collaborators.
func New(fpStore *store.FingerprintStore, resultCache *store.ResultCache, builder *fingerprint.Builder, resolver FileResolver) *Engine {
	return &Engine{store: fpStore, cache: resultCache, builder: builder, resolver: resolver}
}

// Compare computes the PairResult for two content hashes, consulting the
// result cache before falling back to a fresh comparison.
func (e *Engine) Compare(a, b model.ContentHash, opts model.Options) (*model.PairResult, error) {
	hashA, hashB, _ := model.CanonicalPair(a, b)
	return e.cache.Resolve(hashA, hashB, func() (*model.PairResult, error) {
		return e.computePair(hashA, hashB, opts)
	})
}

func (e *Engine) computePair(hashA, hashB model.ContentHash, opts model.Options) (*model.PairResult, error) {
	tokenA, errA := e.loadTokenFP(hashA, opts)
	tokenB, errB := e.loadTokenFP(hashB, opts)

	// UnsupportedLanguage and a genuine FingerprintUnavailable (no bytes, no
	// cache entry) are unrecoverable for this pair and propagate so the task
	// runner can retry or dead-letter it. TokenizeError is handled below:
	// the file contributes no fingerprint but the pair is still written
	// with a zero result and a reason, not failed.
	for _, err := range []error{errA, errB} {
		if err != nil && !errors.Is(err, model.ErrTokenizeFailed) {
			return nil, err
		}
	}
	if errA != nil || errB != nil {
		return &model.PairResult{
			HashA:  hashA,
			HashB:  hashB,
			Reason: "tokenize failed: file contributes no fingerprint",
		}, nil
	}

	tokenSim := jaccard(tokenA.Hashes, tokenB.Hashes)

	threshold := opts.CandidateThreshold
	if threshold <= 0 {
		threshold = 0.15
	}
	if tokenSim < threshold {
		return &model.PairResult{
			HashA:           hashA,
			HashB:           hashB,
			TokenSimilarity: tokenSim,
			AstSimilarity:   0,
			Reason:          "below candidate threshold",
		}, nil
	}

	astA, _ := e.loadAstFP(hashA, opts)
	astB, _ := e.loadAstFP(hashB, opts)
	astSim := jaccard(astA.Hashes, astB.Hashes)

	matches := reconstructMatches(tokenA, tokenB, opts)

	return &model.PairResult{
		HashA:           hashA,
		HashB:           hashB,
		TokenSimilarity: tokenSim,
		AstSimilarity:   astSim,
		Matches:         matches,
	}, nil
}

func (e *Engine) loadTokenFP(hash model.ContentHash, opts model.Options) (*model.TokenFingerprint, error) {
	if fp, ok := e.store.GetTokenFP(hash); ok {
		return fp, nil
	}
	file, err := e.resolver.Resolve(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", model.ErrFingerprintUnavail, hash, err)
	}
	fp, err := e.builder.BuildToken(file, opts.K, opts.W)
	if err != nil {
		// ErrUnsupportedLanguage and ErrTokenizeFailed carry their own
		// disposition (§7) and must reach the caller unwrapped so it can
		// tell them apart from a generic FingerprintUnavailable.
		if errors.Is(err, model.ErrUnsupportedLanguage) || errors.Is(err, model.ErrTokenizeFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrFingerprintUnavail, err)
	}
	e.store.PutTokenFP(hash, fp)
	return fp, nil
}

// loadAstFP tolerates a parse failure by returning an empty fingerprint: a
// missing AST side reports ast_sim = 0 without failing the whole
// comparison, since token similarity already stands.
func (e *Engine) loadAstFP(hash model.ContentHash, opts model.Options) (*model.AstFingerprint, error) {
	if fp, ok := e.store.GetAstFP(hash); ok {
		return fp, nil
	}
	file, err := e.resolver.Resolve(hash)
	if err != nil {
		return &model.AstFingerprint{ContentHash: hash}, err
	}
	fp, err := e.builder.BuildAst(file, opts.MinSubtreeTokens)
	if err != nil {
		return fp, err
	}
	e.store.PutAstFP(hash, fp)
	return fp, nil
}

// jaccard computes |A ∩ B| / |A ∪ B| over two hash sets, defining the result
// as 0 when both are empty.
func jaccard(a, b []uint64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[uint64]bool, len(a))
	for _, h := range a {
		set[h] = true
	}
	intersection := 0
	union := len(set)
	for _, h := range b {
		if set[h] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

type matchCandidate struct {
	hash  uint64
	aSpan model.Span
	bSpan model.Span
}

// reconstructMatches takes the cross product of shared-hash positions and
// greedily merges them left-to-right on A with gap tolerance and monotonic
// B consistency, applying a min-shared-hashes floor per group and a
// non-overlapping-A post-condition.
func reconstructMatches(a, b *model.TokenFingerprint, opts model.Options) []model.Match {
	gap := opts.Gap
	if gap <= 0 {
		gap = 2
	}
	minKgrams := opts.MinMatchKgrams
	if minKgrams <= 0 {
		minKgrams = 2
	}

	shared := intersectHashes(a.Hashes, b.Hashes)
	var candidates []matchCandidate
	for _, h := range shared {
		for _, aSpan := range a.Positions[h] {
			for _, bSpan := range b.Positions[h] {
				candidates = append(candidates, matchCandidate{hash: h, aSpan: aSpan, bSpan: bSpan})
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].aSpan.StartLine < candidates[j].aSpan.StartLine
	})

	type group struct {
		aStart, aEnd int
		bStart, bEnd int
		hashes       map[uint64]bool
	}

	var groups []*group
	for _, c := range candidates {
		var cur *group
		if len(groups) > 0 {
			cur = groups[len(groups)-1]
		}
		if cur != nil &&
			c.aSpan.StartLine <= cur.aEnd+gap &&
			c.bSpan.StartLine <= cur.bEnd+gap &&
			c.bSpan.StartLine >= cur.bEnd-gap {
			if c.aSpan.StartLine < cur.aStart {
				cur.aStart = c.aSpan.StartLine
			}
			if c.aSpan.EndLine > cur.aEnd {
				cur.aEnd = c.aSpan.EndLine
			}
			if c.bSpan.StartLine < cur.bStart {
				cur.bStart = c.bSpan.StartLine
			}
			if c.bSpan.EndLine > cur.bEnd {
				cur.bEnd = c.bSpan.EndLine
			}
			cur.hashes[c.hash] = true
			continue
		}
		groups = append(groups, &group{
			aStart: c.aSpan.StartLine, aEnd: c.aSpan.EndLine,
			bStart: c.bSpan.StartLine, bEnd: c.bSpan.EndLine,
			hashes: map[uint64]bool{c.hash: true},
		})
	}

	var matches []model.Match
	lastAEnd := -1 << 31
	for _, g := range groups {
		if len(g.hashes) < minKgrams {
			continue
		}
		if g.aStart <= lastAEnd {
			continue // overlaps an earlier, already-accepted group on A
		}
		matches = append(matches, model.Match{
			AStart: g.aStart, AEnd: g.aEnd,
			BStart: g.bStart, BEnd: g.bEnd,
		})
		lastAEnd = g.aEnd
	}

	model.SortMatches(matches)
	return matches
}

func intersectHashes(a, b []uint64) []uint64 {
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
