// Package placement routes block hashes to their owning shard.
//
// Every block lives on exactly one shard: for hash h and shard count N the
// owner is parse_hex(h) mod N. The same computation runs in the client and
// in the metadata service, both against the shard ordering from the cluster
// config, so the two tiers never disagree about where a block belongs.
package placement

import (
	"fmt"
	"math/big"

	"github.com/zzenonn/blocksync/internal/domain"
	storeerrors "github.com/zzenonn/blocksync/internal/errors"
)

// Ring maps block hashes onto a fixed set of shard indexes.
type Ring struct {
	n    int
	nBig *big.Int
}

// NewRing creates a ring over n shards.
func NewRing(n int) (*Ring, error) {
	if n <= 0 {
		return nil, fmt.Errorf("shard count must be positive, got %d", n)
	}
	return &Ring{n: n, nBig: big.NewInt(int64(n))}, nil
}

// Size returns the shard count.
func (r *Ring) Size() int {
	return r.n
}

// Place returns the owning shard index for a block hash.
func (r *Ring) Place(hash string) (int, error) {
	if !domain.ValidHash(hash) {
		return 0, fmt.Errorf("%w: %q", storeerrors.ErrInvalidHash, hash)
	}
	h := new(big.Int)
	if _, ok := h.SetString(hash, 16); !ok {
		return 0, fmt.Errorf("%w: %q", storeerrors.ErrInvalidHash, hash)
	}
	return int(h.Mod(h, r.nBig).Int64()), nil
}

// Group buckets hashes by owning shard, preserving input order within each
// bucket. Duplicate hashes are kept; callers dedupe if they need to.
func (r *Ring) Group(hashes []string) (map[int][]string, error) {
	out := make(map[int][]string)
	for _, h := range hashes {
		idx, err := r.Place(h)
		if err != nil {
			return nil, err
		}
		out[idx] = append(out[idx], h)
	}
	return out, nil
}
