// Package cache provides run-scoped memoization plus an optional
// persistent store for expensive git-derived values.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// RunCache memoizes values that are stable for the lifetime of one
// analysis run. Safe for concurrent use; merge detection for different
// branches runs in parallel and shares patch-id digests.
type RunCache struct {
	mu       sync.RWMutex
	patchIDs map[string]string
}

// NewRunCache returns an empty run cache.
func NewRunCache() *RunCache {
	return &RunCache{patchIDs: make(map[string]string)}
}

// PatchID returns the memoized patch-id for a commit, if present.
func (c *RunCache) PatchID(sha string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.patchIDs[sha]
	return id, ok
}

// SetPatchID records a patch-id digest.
func (c *RunCache) SetPatchID(sha, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patchIDs[sha] = id
}

// Len reports how many patch-ids are memoized.
func (c *RunCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patchIDs)
}

const blameBucket = "blame_reports"

// Store persists per-file analysis artifacts between runs so repeated
// invocations on an unchanged repository skip the expensive blame reads.
type Store struct {
	db *bbolt.DB
}

type entry struct {
	HeadSHA string          `json:"head_sha"`
	SavedAt time.Time       `json:"saved_at"`
	Payload json.RawMessage `json:"payload"`
}

// OpenStore opens (creating if needed) the bolt-backed cache at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists([]byte(blameBucket))
		return berr
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// GetBlame loads a cached blame report for path, valid only if it was
// saved against the same HEAD commit.
func (s *Store) GetBlame(path, headSHA string, out interface{}) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(blameBucket)).Get([]byte(path))
		if raw == nil {
			return nil
		}
		var e entry
		if uerr := json.Unmarshal(raw, &e); uerr != nil {
			return nil // stale format, treat as miss
		}
		if e.HeadSHA != headSHA {
			return nil
		}
		if uerr := json.Unmarshal(e.Payload, out); uerr != nil {
			return nil
		}
		found = true
		return nil
	})
	return found, err
}

// PutBlame stores a blame report keyed by path and HEAD commit.
func (s *Store) PutBlame(path, headSHA string, report interface{}) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal blame report: %w", err)
	}
	raw, err := json.Marshal(entry{HeadSHA: headSHA, SavedAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(blameBucket)).Put([]byte(path), raw)
	})
}
