package fingerprint

import (
	"sort"

	"github.com/plagiscan/engine/pkg/lang"
	"github.com/plagiscan/engine/pkg/model"
)

// BuildAstFingerprint computes a canonical hash over (kind, child hashes...)
// bottom-up for every subtree whose token count meets minSubtreeTokens. A
// nil root (parse failed) is not an error here — callers report an empty
// AstFingerprint instead.
func BuildAstFingerprint(hash model.ContentHash, root *lang.Node, minSubtreeTokens int) *model.AstFingerprint {
	fp := &model.AstFingerprint{ContentHash: hash}
	if root == nil {
		return fp
	}

	seed := engineSeed(model.EngineVersion)
	seen := make(map[uint64]bool)
	walkSubtreeHashes(root, seed, minSubtreeTokens, fp, seen)

	sort.Slice(fp.Hashes, func(i, j int) bool { return fp.Hashes[i] < fp.Hashes[j] })
	return fp
}

// walkSubtreeHashes returns node's own canonical hash, folding in every
// child's hash in source order (so the result is sensitive to child
// ordering), and records the hash for any node large enough to count.
func walkSubtreeHashes(node *lang.Node, seed uint64, minSubtreeTokens int, fp *model.AstFingerprint, seen map[uint64]bool) uint64 {
	h := codeOf(node.Kind, seed)
	for _, child := range node.Children {
		childHash := walkSubtreeHashes(child, seed, minSubtreeTokens, fp, seen)
		h = combine(h, childHash)
	}

	if node.TokenCount >= minSubtreeTokens {
		fp.TotalSubtrees++
		if !seen[h] {
			seen[h] = true
			fp.Hashes = append(fp.Hashes, h)
		}
	}

	return h
}
