// Package store implements the content-addressed fingerprint store: a
// bounded, TTL-and-LRU-evicting cache of fingerprints keyed by content
// hash, plus the single-flight pairwise result cache layered on top of it.
package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/plagiscan/engine/pkg/model"
)

// EvictListener is notified whenever a fingerprint is evicted or explicitly
// removed from the store, so a collaborator (the inverted index) can purge
// dependent postings. Keeping this a callback rather than an import of
// pkg/index avoids a dependency cycle between the two packages.
type EvictListener func(hash model.ContentHash)

// entry is the unit of LRU/TTL bookkeeping for one content hash's pair of
// fingerprints. Both fingerprints are stored together: a content hash names
// one file, and both of its fingerprints are evicted in lockstep.
type entry struct {
	hash      model.ContentHash
	tokenFP   *model.TokenFingerprint
	astFP     *model.AstFingerprint
	expiresAt time.Time
	elem      *list.Element
	size      int64
}

// FingerprintStore is a bounded, TTL-and-LRU-evicting cache. It is safe for
// concurrent use. It generalizes a file-backed, oldest-write eviction
// policy into an in-memory, access-order LRU policy, since eviction here
// needs to track actual recency of use rather than write order.
type FingerprintStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxBytes int64
	curBytes int64
	order    *list.List // front = most recently used
	entries  map[model.ContentHash]*entry
	onEvict  EvictListener
}

// NewFingerprintStore constructs a store with the given TTL and byte budget.
// A zero maxBytes disables size-based eviction (TTL still applies).
func NewFingerprintStore(ttl time.Duration, maxBytes int64, onEvict EvictListener) *FingerprintStore {
	return &FingerprintStore{
		ttl:      ttl,
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[model.ContentHash]*entry),
		onEvict:  onEvict,
	}
}

// GetTokenFP returns the cached token fingerprint for hash, if present and
// unexpired.
func (s *FingerprintStore) GetTokenFP(hash model.ContentHash) (*model.TokenFingerprint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.touch(hash)
	if e == nil || e.tokenFP == nil {
		return nil, false
	}
	return e.tokenFP, true
}

// PutTokenFP stores fp under hash, replacing any prior token fingerprint for
// that hash.
func (s *FingerprintStore) PutTokenFP(hash model.ContentHash, fp *model.TokenFingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.getOrCreate(hash)
	e.tokenFP = fp
	s.recomputeSize(e)
	s.evictIfNeeded()
}

// GetAstFP returns the cached AST fingerprint for hash, if present and
// unexpired.
func (s *FingerprintStore) GetAstFP(hash model.ContentHash) (*model.AstFingerprint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.touch(hash)
	if e == nil || e.astFP == nil {
		return nil, false
	}
	return e.astFP, true
}

// PutAstFP stores fp under hash, replacing any prior AST fingerprint for
// that hash.
func (s *FingerprintStore) PutAstFP(hash model.ContentHash, fp *model.AstFingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.getOrCreate(hash)
	e.astFP = fp
	s.recomputeSize(e)
	s.evictIfNeeded()
}

// Has reports whether hash currently has a live (unexpired) entry, without
// bumping its recency — used by the result cache to validate a pair entry
// without disturbing LRU order on a miss path.
func (s *FingerprintStore) Has(hash model.ContentHash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[hash]
	if !ok {
		return false
	}
	return !s.expired(e)
}

// Evict removes hash unconditionally and notifies the listener. Used when a
// caller determines a fingerprint is stale outside the normal TTL/LRU path.
func (s *FingerprintStore) Evict(hash model.ContentHash) {
	s.mu.Lock()
	e, ok := s.entries[hash]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.removeEntry(e)
	s.mu.Unlock()
	if s.onEvict != nil {
		s.onEvict(hash)
	}
}

func (s *FingerprintStore) touch(hash model.ContentHash) *entry {
	e, ok := s.entries[hash]
	if !ok {
		return nil
	}
	if s.expired(e) {
		s.removeEntry(e)
		go s.notifyEvict(hash)
		return nil
	}
	e.expiresAt = time.Now().Add(s.ttl)
	s.order.MoveToFront(e.elem)
	return e
}

func (s *FingerprintStore) notifyEvict(hash model.ContentHash) {
	if s.onEvict != nil {
		s.onEvict(hash)
	}
}

func (s *FingerprintStore) expired(e *entry) bool {
	return s.ttl > 0 && time.Now().After(e.expiresAt)
}

func (s *FingerprintStore) getOrCreate(hash model.ContentHash) *entry {
	if e, ok := s.entries[hash]; ok {
		e.expiresAt = time.Now().Add(s.ttl)
		s.order.MoveToFront(e.elem)
		return e
	}
	e := &entry{hash: hash, expiresAt: time.Now().Add(s.ttl)}
	e.elem = s.order.PushFront(e)
	s.entries[hash] = e
	return e
}

func (s *FingerprintStore) recomputeSize(e *entry) {
	s.curBytes -= e.size
	e.size = estimateSize(e.tokenFP, e.astFP)
	s.curBytes += e.size
}

// evictIfNeeded evicts least-recently-used entries until the store is under
// budget. Must be called with s.mu held; the listener is invoked after the
// lock is released to avoid reentrancy with callers of GetTokenFP/GetAstFP.
func (s *FingerprintStore) evictIfNeeded() {
	if s.maxBytes <= 0 {
		return
	}
	var evicted []model.ContentHash
	for s.curBytes > s.maxBytes {
		back := s.order.Back()
		if back == nil {
			break
		}
		e := back.Value.(*entry)
		s.removeEntry(e)
		evicted = append(evicted, e.hash)
	}
	if len(evicted) > 0 && s.onEvict != nil {
		listener := s.onEvict
		go func() {
			for _, h := range evicted {
				listener(h)
			}
		}()
	}
}

func (s *FingerprintStore) removeEntry(e *entry) {
	s.order.Remove(e.elem)
	delete(s.entries, e.hash)
	s.curBytes -= e.size
}

// estimateSize gives a rough byte-cost for budget accounting: 8 bytes per
// winnowed/subtree hash plus a small fixed overhead per span entry. Exact
// accuracy isn't required, only a bound that trends with actual memory
// use.
func estimateSize(tfp *model.TokenFingerprint, afp *model.AstFingerprint) int64 {
	var n int64
	if tfp != nil {
		n += int64(len(tfp.Hashes)) * 8
		for _, spans := range tfp.Positions {
			n += int64(len(spans)) * 16
		}
	}
	if afp != nil {
		n += int64(len(afp.Hashes)) * 8
	}
	return n
}
