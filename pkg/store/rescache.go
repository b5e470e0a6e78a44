package store

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/plagiscan/engine/pkg/model"
)

// ResultCache is the pairwise result cache: get/put keyed on the
// canonicalized ordered pair, with single-flight de-duplication across
// concurrent callers comparing the same pair via
// golang.org/x/sync/singleflight, the standard ecosystem tool for "at most
// one in-flight computation per key".
type ResultCache struct {
	store *FingerprintStore

	mu      sync.RWMutex
	entries map[string]*model.PairResult

	group singleflight.Group
}

// NewResultCache builds a ResultCache whose validity checks consult store.
// Entries whose backing fingerprint was evicted could be invalidated via
// reverse-reference tracking or lazy validation on read; this
// implementation chooses lazy validation, since it needs no bookkeeping on
// the eviction path and the store already exposes a cheap Has check.
func NewResultCache(store *FingerprintStore) *ResultCache {
	return &ResultCache{
		store:   store,
		entries: make(map[string]*model.PairResult),
	}
}

// GetPair returns a cached PairResult for (a, b), canonicalizing the pair
// first. A hit is only returned while both backing fingerprints are still
// present in the store.
func (c *ResultCache) GetPair(a, b model.ContentHash) (*model.PairResult, bool) {
	hashA, hashB, _ := model.CanonicalPair(a, b)
	key := model.PairKey(hashA, hashB)

	c.mu.RLock()
	res, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.store.Has(hashA) || !c.store.Has(hashB) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return res, true
}

// PutPair stores result under the canonicalized key for (a, b).
func (c *ResultCache) PutPair(a, b model.ContentHash, result *model.PairResult) {
	hashA, hashB, _ := model.CanonicalPair(a, b)
	key := model.PairKey(hashA, hashB)
	c.mu.Lock()
	c.entries[key] = result
	c.mu.Unlock()
}

// Resolve returns the cached PairResult for (a, b) if valid, otherwise calls
// compute exactly once across all concurrent callers for that pair (via
// singleflight), caches the result, and returns it. compute is expected to
// run the full similarity comparison.
func (c *ResultCache) Resolve(a, b model.ContentHash, compute func() (*model.PairResult, error)) (*model.PairResult, error) {
	if res, ok := c.GetPair(a, b); ok {
		return res, nil
	}

	hashA, hashB, _ := model.CanonicalPair(a, b)
	key := model.PairKey(hashA, hashB)

	v, err, _ := c.group.Do(key, func() (any, error) {
		if res, ok := c.GetPair(a, b); ok {
			return res, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.PutPair(a, b, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.PairResult), nil
}

// Invalidate drops every cached pair entry whose key embeds hash. Cheap
// enough for the expected cache sizes (pair count is bounded by the
// candidate selector's fan-out, not the full file count squared); a
// reverse-reference index would trade this O(n) scan for O(evictions)
// bookkeeping on every put, which is not warranted at this scale.
func (c *ResultCache) Invalidate(hash model.ContentHash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, res := range c.entries {
		if res.HashA == hash || res.HashB == hash {
			delete(c.entries, key)
		}
	}
}
