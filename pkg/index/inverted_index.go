// Package index implements an inverted index mapping fingerprint hash to
// the set of files containing it, used to prune the full pairwise product
// down to plausible candidates before the similarity engine runs.
package index

import (
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/plagiscan/engine/pkg/model"
)

// defaultMinOverlapRatio is the default minimum-overlap threshold for candidates.
const defaultMinOverlapRatio = 0.15

// HashKind tags whether a posting comes from the token or AST fingerprint
// space, so the two never collide in a single postings map even though both
// are uint64 hash values.
type HashKind uint8

const (
	KindToken HashKind = iota
	KindAst
)

type postingKey struct {
	kind HashKind
	hash uint64
}

// InvertedIndex maps (kind, hash) postings to the roaring bitmap of file IDs
// sharing that hash, plus the reverse per-file record needed to remove a
// file's postings on eviction.
type InvertedIndex struct {
	ids *idMap

	mu         sync.RWMutex
	postings   map[postingKey]*roaring.Bitmap
	indexed    map[model.ContentHash]bool                // idempotency guard for index_file
	fileHashes map[model.ContentHash]map[postingKey]bool // reverse map for Remove
}

// New constructs an empty InvertedIndex.
func New() *InvertedIndex {
	return &InvertedIndex{
		ids:        newIDMap(),
		postings:   make(map[postingKey]*roaring.Bitmap),
		indexed:    make(map[model.ContentHash]bool),
		fileHashes: make(map[model.ContentHash]map[postingKey]bool),
	}
}

// IndexFile adds postings for every hash in tokenFP and astFP under
// contentHash. Idempotent: re-indexing the same content hash is a no-op,
// so callers may call this unconditionally on every pipeline pass without
// first checking whether the file was already indexed.
func (idx *InvertedIndex) IndexFile(hash model.ContentHash, tokenFP *model.TokenFingerprint, astFP *model.AstFingerprint) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.indexed[hash] {
		return
	}
	idx.indexed[hash] = true

	id := idx.ids.idFor(hash)
	keys := make(map[postingKey]bool)

	if tokenFP != nil {
		for _, h := range tokenFP.Hashes {
			keys[postingKey{kind: KindToken, hash: h}] = true
		}
	}
	if astFP != nil {
		for _, h := range astFP.Hashes {
			keys[postingKey{kind: KindAst, hash: h}] = true
		}
	}

	for key := range keys {
		bm, ok := idx.postings[key]
		if !ok {
			bm = roaring.New()
			idx.postings[key] = bm
		}
		bm.Add(id)
	}
	idx.fileHashes[hash] = keys
}

// Remove purges every posting contributed by hash, and clears the
// idempotency guard so the file can be re-indexed later if its content
// reappears. Called when the backing fingerprint is evicted from the
// fingerprint store, since a stale posting would otherwise point at a
// fingerprint that no longer exists.
func (idx *InvertedIndex) Remove(hash model.ContentHash) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	keys, ok := idx.fileHashes[hash]
	if !ok {
		return
	}
	id, ok := idx.ids.lookup(hash)
	if ok {
		for key := range keys {
			if bm, ok := idx.postings[key]; ok {
				bm.Remove(id)
				if bm.IsEmpty() {
					delete(idx.postings, key)
				}
			}
		}
	}
	delete(idx.fileHashes, hash)
	delete(idx.indexed, hash)
}

// Candidate is one result of CandidatesForToken or CandidatesForAst: a file sharing at least the
// threshold number of hashes with the query fingerprint, and how many it
// shares.
type Candidate struct {
	ContentHash  model.ContentHash
	OverlapCount int
}

// candidates is the shared implementation behind CandidatesForToken and
// CandidatesForAst: count, per file ID, how many of the query hashes it
// shares, keep those meeting ceil(minOverlapRatio * len(hashes)), and sort
// by overlap count descending, content hash ascending on ties.
func (idx *InvertedIndex) candidates(kind HashKind, hashes []uint64, minOverlapRatio float64, exclude model.ContentHash) []Candidate {
	if minOverlapRatio <= 0 {
		minOverlapRatio = defaultMinOverlapRatio
	}
	if len(hashes) == 0 {
		return nil
	}

	idx.mu.RLock()
	overlap := make(map[uint32]int)
	for _, h := range hashes {
		bm, ok := idx.postings[postingKey{kind: kind, hash: h}]
		if !ok {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			overlap[it.Next()]++
		}
	}
	idx.mu.RUnlock()

	threshold := int(math.Ceil(minOverlapRatio * float64(len(hashes))))
	if threshold < 1 {
		threshold = 1
	}

	out := make([]Candidate, 0, len(overlap))
	for id, count := range overlap {
		if count < threshold {
			continue
		}
		hash, ok := idx.ids.hashFor(id)
		if !ok || hash == exclude {
			continue
		}
		out = append(out, Candidate{ContentHash: hash, OverlapCount: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OverlapCount != out[j].OverlapCount {
			return out[i].OverlapCount > out[j].OverlapCount
		}
		return out[i].ContentHash < out[j].ContentHash
	})
	return out
}

// CandidatesForToken returns files sharing at least
// ceil(minOverlapRatio*len(fp.Hashes)) token-fingerprint hashes with fp,
// excluding fp's own content hash.
func (idx *InvertedIndex) CandidatesForToken(fp *model.TokenFingerprint, minOverlapRatio float64) []Candidate {
	return idx.candidates(KindToken, fp.Hashes, minOverlapRatio, fp.ContentHash)
}

// CandidatesForAst returns files sharing at least
// ceil(minOverlapRatio*len(fp.Hashes)) AST-fingerprint hashes with fp,
// excluding fp's own content hash.
func (idx *InvertedIndex) CandidatesForAst(fp *model.AstFingerprint, minOverlapRatio float64) []Candidate {
	return idx.candidates(KindAst, fp.Hashes, minOverlapRatio, fp.ContentHash)
}
