// Package blockstore implements one shard of the content-addressed block
// tier: an in-memory hash -> bytes mapping exposed over HTTP, plus the
// client used by the metadata service and the sync client to reach it.
//
// Blocks are immutable and never deleted. Storing under a hash that is
// already present is a no-op on content because identifiers are derived
// from the bytes themselves.
package blockstore

import (
	"sync"

	log "github.com/sirupsen/logrus"

	storeerrors "github.com/zzenonn/blocksync/internal/errors"
)

// Store is the in-memory block mapping for a single shard.
type Store struct {
	mu     sync.RWMutex
	blocks map[string][]byte
	bytes  int64
}

// Stats is a point-in-time snapshot of shard occupancy.
type Stats struct {
	Blocks int   `json:"blocks"`
	Bytes  int64 `json:"bytes"`
}

// NewStore creates an empty shard store.
func NewStore() *Store {
	return &Store{
		blocks: make(map[string][]byte),
	}
}

// Put stores a block under its hash. Idempotent: a hash that is already
// present keeps its existing bytes.
func (s *Store) Put(hash string, block []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blocks[hash]; exists {
		log.Debugf("store %s: already present, %d blocks held", hash, len(s.blocks))
		return
	}
	stored := make([]byte, len(block))
	copy(stored, block)
	s.blocks[hash] = stored
	s.bytes += int64(len(stored))
	log.Debugf("store %s: %d blocks held", hash, len(s.blocks))
}

// Get retrieves a block by hash, returning ErrBlockNotFound when absent.
func (s *Store) Get(hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, exists := s.blocks[hash]
	if !exists {
		return nil, storeerrors.ErrBlockNotFound
	}
	out := make([]byte, len(block))
	copy(out, block)
	return out, nil
}

// Has reports whether a block is present.
func (s *Store) Has(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.blocks[hash]
	return exists
}

// Stats returns the current block count and byte total.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{Blocks: len(s.blocks), Bytes: s.bytes}
}
