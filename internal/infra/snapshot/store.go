package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketServiceTools = []byte("service_tools")

// Store persists the last-applied tool names per service in a bbolt
// file, so a restarted process can purge tools registered by its
// predecessor.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	closed bool
}

// Open opens (or creates) the snapshot database.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure snapshot dir: %w", err)
	}
	options := &bolt.Options{Timeout: time.Second}
	db, err := bolt.Open(trimmed, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketServiceTools)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return &Store{db: db, path: trimmed}, nil
}

// Load returns every persisted service with its tool names.
func (s *Store) Load() (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	entries := make(map[string][]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketServiceTools)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var tools []string
			if err := json.Unmarshal(v, &tools); err != nil {
				return fmt.Errorf("decode snapshot for %s: %w", string(k), err)
			}
			entries[string(k)] = tools
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Save replaces the persisted tool names for a service.
func (s *Store) Save(service string, tools []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	payload, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", service, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketServiceTools).Put([]byte(service), payload)
	})
}

// Delete drops the persisted entry for a service.
func (s *Store) Delete(service string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("snapshot store is closed")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketServiceTools).Delete([]byte(service))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
