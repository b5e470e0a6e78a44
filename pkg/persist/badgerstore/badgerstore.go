// Package badgerstore is the durable ResultSink backing the Task Runner's
// persisted PairResults: upsert-by-composite-key storage keyed on
// (task_id, hash_a, hash_b).
package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/plagiscan/engine/pkg/model"
)

// Store persists PairResults in a BadgerDB keyed by task and content-hash
// pair, giving the Task Runner an idempotency check (HasResult) and durable
// write (WritePairResult) without needing a separate database dependency.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", model.ErrStoreUnavailable, path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func resultKey(taskID string, hashA, hashB model.ContentHash) []byte {
	canonA, canonB, _ := model.CanonicalPair(hashA, hashB)
	var buf bytes.Buffer
	buf.WriteString(taskID)
	buf.WriteByte(0)
	buf.WriteString(string(canonA))
	buf.WriteByte(0)
	buf.WriteString(string(canonB))
	return buf.Bytes()
}

// WritePairResult upserts result under (taskID, result.HashA, result.HashB).
func (s *Store) WritePairResult(ctx context.Context, taskID string, result model.PairResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	key := resultKey(taskID, result.HashA, result.HashB)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// HasResult reports whether a PairResult was already written for this
// (task, hash pair), the idempotency check the Task Runner uses to skip
// already-completed pairs on a retried job.
func (s *Store) HasResult(ctx context.Context, taskID string, hashA, hashB model.ContentHash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := resultKey(taskID, hashA, hashB)
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return found, nil
}

// GetPairResult loads a previously written PairResult, if any.
func (s *Store) GetPairResult(taskID string, hashA, hashB model.ContentHash) (*model.PairResult, bool, error) {
	key := resultKey(taskID, hashA, hashB)
	var result model.PairResult
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, false, nil
	}
	return &result, true, nil
}

// ResultsForTask iterates every PairResult written under taskID, for
// reporting (pkg/report).
func (s *Store) ResultsForTask(taskID string) ([]model.PairResult, error) {
	prefix := append([]byte(taskID), 0)
	var results []model.PairResult
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var result model.PairResult
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &result)
			})
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return results, nil
}
