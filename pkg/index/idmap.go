package index

import (
	"sync"

	"github.com/plagiscan/engine/pkg/model"
)

// idMap assigns a compact, stable uint32 file ID to each content hash, so
// postings lists can hold roaring bitmaps of IDs rather than sets of
// strings, trading a small registry for much smaller per-hash postings.
type idMap struct {
	mu     sync.RWMutex
	byHash map[model.ContentHash]uint32
	byID   []model.ContentHash
}

func newIDMap() *idMap {
	return &idMap{byHash: make(map[model.ContentHash]uint32)}
}

// idFor returns the existing ID for hash, assigning a new one if needed.
func (m *idMap) idFor(hash model.ContentHash) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byHash[hash]; ok {
		return id
	}
	id := uint32(len(m.byID))
	m.byHash[hash] = id
	m.byID = append(m.byID, hash)
	return id
}

// hashFor resolves an ID back to its content hash.
func (m *idMap) hashFor(id uint32) (model.ContentHash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(id) >= len(m.byID) {
		return "", false
	}
	return m.byID[id], true
}

// lookup returns the ID for hash without assigning one.
func (m *idMap) lookup(hash model.ContentHash) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHash[hash]
	return id, ok
}
