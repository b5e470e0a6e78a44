// Package boltstore is an optional durable backend for the fingerprint
// store: a bbolt-backed persistence layer that survives process restarts,
// sitting behind the same content-hash keying as the in-memory
// pkg/store.FingerprintStore. Grounded on the bucket/Open/Update/View
// pattern of jmylchreest-aide's pkg/store.BoltStore.
package boltstore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/plagiscan/engine/pkg/model"
)

var (
	bucketTokenFP = []byte("token_fingerprints")
	bucketAstFP   = []byte("ast_fingerprints")
)

// Store is a bbolt-backed durable mirror of the fingerprint store. It is
// not itself the hot-path cache — pkg/store.FingerprintStore stays
// in-memory for latency — but gives a process restart a warm start instead
// of recomputing every fingerprint from scratch.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database at path with both
// fingerprint buckets ready.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", model.ErrStoreUnavailable, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTokenFP, bucketAstFP} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutTokenFP persists a token fingerprint under its content hash.
func (s *Store) PutTokenFP(hash model.ContentHash, fp *model.TokenFingerprint) error {
	return s.put(bucketTokenFP, hash, fp)
}

// GetTokenFP loads a token fingerprint, returning ok=false if absent.
func (s *Store) GetTokenFP(hash model.ContentHash) (*model.TokenFingerprint, bool, error) {
	var fp model.TokenFingerprint
	ok, err := s.get(bucketTokenFP, hash, &fp)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &fp, true, nil
}

// PutAstFP persists an AST fingerprint under its content hash.
func (s *Store) PutAstFP(hash model.ContentHash, fp *model.AstFingerprint) error {
	return s.put(bucketAstFP, hash, fp)
}

// GetAstFP loads an AST fingerprint, returning ok=false if absent.
func (s *Store) GetAstFP(hash model.ContentHash) (*model.AstFingerprint, bool, error) {
	var fp model.AstFingerprint
	ok, err := s.get(bucketAstFP, hash, &fp)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &fp, true, nil
}

// Delete removes both fingerprint entries for hash, mirroring an eviction
// from the in-memory store so the two stores don't diverge indefinitely.
func (s *Store) Delete(hash model.ContentHash) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketTokenFP).Delete([]byte(hash)); err != nil {
			return err
		}
		return tx.Bucket(bucketAstFP).Delete([]byte(hash))
	})
}

func (s *Store) put(bucket []byte, hash model.ContentHash, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(hash), data)
	})
}

func (s *Store) get(bucket []byte, hash model.ContentHash, v any) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(hash))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}
