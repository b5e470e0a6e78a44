package fingerprint

import (
	"sort"

	"github.com/plagiscan/engine/pkg/lang"
	"github.com/plagiscan/engine/pkg/model"
)

// BuildTokenFingerprint implements the winnowing fingerprint scheme: slide
// a k-gram window over the normalized token-kind sequence, rolling-hash each
// k-gram, then select the minimum hash (rightmost on tie) in every
// w-wide window of k-gram hashes, emitting each selected hash at most once
// at its canonical position.
func BuildTokenFingerprint(hash model.ContentHash, tokens []lang.Token, k, w int) *model.TokenFingerprint {
	fp := &model.TokenFingerprint{
		ContentHash: hash,
		Positions:   make(map[uint64][]model.Span),
	}

	if k <= 0 || w <= 0 || len(tokens) < k {
		return fp
	}

	seed := engineSeed(model.EngineVersion)
	codes := make([]uint64, len(tokens))
	for i, tok := range tokens {
		codes[i] = codeOf(tok.Kind, seed)
	}

	kgramHashes := rollingKgramHashes(codes, k)
	selections := winnow(kgramHashes, w)

	seen := make(map[uint64]bool, len(selections))
	for _, sel := range selections {
		fp.TotalKgrams++

		span := spanOf(tokens[sel.pos : sel.pos+k])
		fp.Positions[sel.hash] = append(fp.Positions[sel.hash], span)
		if !seen[sel.hash] {
			seen[sel.hash] = true
			fp.Hashes = append(fp.Hashes, sel.hash)
		}
	}

	sort.Slice(fp.Hashes, func(i, j int) bool { return fp.Hashes[i] < fp.Hashes[j] })
	return fp
}

// rollingKgramHashes computes one hash per k-gram using a Karp-Rabin style
// polynomial rolling hash over the token codes, finalized with an avalanche
// mix to spread bits before winnowing selects minimums over it.
func rollingKgramHashes(codes []uint64, k int) []uint64 {
	n := len(codes)
	if n < k {
		return nil
	}
	const base uint64 = 1000000007

	baseK := uint64(1)
	for i := 0; i < k-1; i++ {
		baseK *= base
	}

	out := make([]uint64, n-k+1)
	var h uint64
	for i := 0; i < k; i++ {
		h = h*base + codes[i]
	}
	out[0] = mix(h)

	for i := 1; i <= n-k; i++ {
		h = (h-codes[i-1]*baseK)*base + codes[i+k-1]
		out[i] = mix(h)
	}
	return out
}

type selection struct {
	pos  int
	hash uint64
}

// winnow is the classic Schleimer/Wilkerson/Aiken winnowing algorithm:
// within every window of w consecutive hashes, pick the minimum, breaking
// ties toward the rightmost occurrence, and skip re-emitting a position
// already selected by the previous window. This guarantees detection of any
// shared substring of w+k-1 normalized tokens.
func winnow(hashes []uint64, w int) []selection {
	n := len(hashes)
	if n == 0 {
		return nil
	}
	if n <= w {
		pos, val := minRightmost(hashes, 0, n)
		return []selection{{pos: pos, hash: val}}
	}

	var out []selection
	prevSelected := -1
	for start := 0; start <= n-w; start++ {
		pos, val := minRightmost(hashes, start, start+w)
		if pos != prevSelected {
			out = append(out, selection{pos: pos, hash: val})
			prevSelected = pos
		}
	}
	return out
}

// minRightmost returns the index and value of the minimum in
// hashes[lo:hi], preferring the rightmost index on ties.
func minRightmost(hashes []uint64, lo, hi int) (int, uint64) {
	minPos := lo
	minVal := hashes[lo]
	for i := lo + 1; i < hi; i++ {
		if hashes[i] <= minVal {
			minVal = hashes[i]
			minPos = i
		}
	}
	return minPos, minVal
}

// spanOf returns the minimal span enclosing a run of tokens.
func spanOf(tokens []lang.Token) model.Span {
	span := model.Span{StartLine: tokens[0].StartLine, EndLine: tokens[0].EndLine}
	for _, tok := range tokens[1:] {
		if tok.StartLine < span.StartLine {
			span.StartLine = tok.StartLine
		}
		if tok.EndLine > span.EndLine {
			span.EndLine = tok.EndLine
		}
	}
	return span
}
