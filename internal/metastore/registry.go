// Package metastore implements the metadata tier: the per-filename
// version + hashlist registry, its HTTP surface, and the client used by the
// sync client to drive it.
//
// The registry is the single owner of file metadata. Every operation runs
// under one process-wide mutex, so concurrent modifies on the same filename
// linearize and the version field is a total order witness per file. Shard
// presence probes for a modify run inside the critical section; blocks are
// never deleted, so a block seen present at probe time is still present at
// commit time.
package metastore

import (
	"context"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/blocksync/internal/domain"
	storeerrors "github.com/zzenonn/blocksync/internal/errors"
	"github.com/zzenonn/blocksync/internal/placement"
)

// BlockChecker is the one block-tier capability the registry needs: a
// presence probe against a single shard.
type BlockChecker interface {
	HasBlock(ctx context.Context, hash string) (bool, error)
}

// Registry maps filenames to their records and validates cross-tier block
// presence on modify.
type Registry struct {
	mu     sync.Mutex
	files  map[string]*domain.FileRecord
	ring   *placement.Ring
	shards []BlockChecker

	// presence caches hashes a shard has confirmed holding. Positive
	// answers never go stale because blocks are immutable and undeletable,
	// so a cache hit skips the outbound probe entirely.
	presence *lru.Cache[string, struct{}]
}

// NewRegistry creates a registry over the given shard clients. The shard
// slice ordering must match the cluster config; the ring routes hashes into
// it.
func NewRegistry(ring *placement.Ring, shards []BlockChecker, presenceCacheSize int) (*Registry, error) {
	if ring.Size() != len(shards) {
		return nil, fmt.Errorf("ring expects %d shards, got %d clients", ring.Size(), len(shards))
	}
	presence, err := lru.New[string, struct{}](presenceCacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		files:    make(map[string]*domain.FileRecord),
		ring:     ring,
		shards:   shards,
		presence: presence,
	}, nil
}

// Read returns the current version and hashlist for a filename. It never
// fails: an unknown filename reads as version 0 with no hashes, and a
// tombstoned one as its delete version with no hashes.
func (r *Registry) Read(filename string) (int64, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.files[filename]
	if !exists {
		log.Debugf("read %s: no record", filename)
		return 0, nil
	}
	if record.Tombstone {
		log.Debugf("read %s: tombstoned at version %d", filename, record.Version)
		return record.Version, nil
	}
	log.Debugf("read %s: version %d, %d blocks", filename, record.Version, len(record.HashList))
	return record.Version, append([]string(nil), record.HashList...)
}

// Modify commits a new hashlist for filename at the given version.
//
// The version must be exactly one past the stored version (0 for a new
// file). Every referenced hash that is not carried over from the current
// record must be present on its owning shard; absent hashes fail the call
// with MissingBlocksError, reported once each in request order. Nothing is
// committed on failure.
func (r *Registry) Modify(ctx context.Context, filename string, version int64, hashlist []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.files[filename]
	var current int64
	if exists {
		current = record.Version
	}
	if version != current+1 {
		return &storeerrors.WrongVersionError{Current: current}
	}

	// Hashes carried over from the committed record were verified by the
	// modify that introduced them and are never re-probed.
	carried := mapset.NewThreadUnsafeSet[string]()
	if exists {
		carried.Append(record.HashList...)
	}

	probed := mapset.NewThreadUnsafeSet[string]()
	var missing []string
	for _, hash := range hashlist {
		if !domain.ValidHash(hash) {
			return fmt.Errorf("%w: %q", storeerrors.ErrInvalidHash, hash)
		}
		if carried.Contains(hash) || !probed.Add(hash) {
			continue
		}
		present, err := r.hasBlock(ctx, hash)
		if err != nil {
			return fmt.Errorf("probing shard for %s: %w", hash, err)
		}
		if !present {
			missing = append(missing, hash)
		}
	}
	if len(missing) != 0 {
		log.Infof("modify %s v%d: %d blocks missing", filename, version, len(missing))
		return &storeerrors.MissingBlocksError{Missing: missing}
	}

	if !exists {
		record = &domain.FileRecord{}
		r.files[filename] = record
	}
	record.HashList = append([]string(nil), hashlist...)
	record.Tombstone = false
	record.Version = version
	log.Infof("modify %s: committed version %d with %d blocks", filename, version, len(hashlist))
	return nil
}

// Delete tombstones a filename at the given version. The filename must have
// a record, and the version must be exactly one past the stored version.
// Deleting an already tombstoned file advances its version again.
func (r *Registry) Delete(filename string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.files[filename]
	if !exists {
		return storeerrors.ErrFileNotFound
	}
	if version != record.Version+1 {
		return &storeerrors.WrongVersionError{Current: record.Version}
	}
	record.Version = version
	record.Tombstone = true
	record.HashList = nil
	log.Infof("delete %s: tombstoned at version %d", filename, version)
	return nil
}

func (r *Registry) hasBlock(ctx context.Context, hash string) (bool, error) {
	if _, ok := r.presence.Get(hash); ok {
		return true, nil
	}
	shard, err := r.ring.Place(hash)
	if err != nil {
		return false, err
	}
	present, err := r.shards[shard].HasBlock(ctx, hash)
	if err != nil {
		return false, err
	}
	if present {
		r.presence.Add(hash, struct{}{})
	}
	return present, nil
}
