package placement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzenonn/blocksync/internal/domain"
)

// Pad a short hex suffix out to a full 64-char hash with leading zeros.
func hash(suffix string) string {
	return strings.Repeat("0", domain.HashHexLen-len(suffix)) + suffix
}

func TestNewRingRejectsNonPositiveCounts(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := NewRing(n)
		assert.Error(t, err)
	}
}

func TestPlaceSingleShard(t *testing.T) {
	ring, err := NewRing(1)
	require.NoError(t, err)

	for _, h := range []string{hash("0"), hash("f"), domain.HashBlock([]byte("anything"))} {
		idx, err := ring.Place(h)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	}
}

// With power-of-two shard counts the owner is the last hex digit mod N,
// because 16 is congruent to 0 modulo 2, 4, 8, and 16.
func TestPlacePowerOfTwoShards(t *testing.T) {
	tests := []struct {
		n      int
		suffix string
		want   int
	}{
		{n: 2, suffix: "4", want: 0},
		{n: 2, suffix: "7", want: 1},
		{n: 4, suffix: "b", want: 3},
		{n: 8, suffix: "e", want: 6},
		{n: 16, suffix: "f", want: 15},
		{n: 16, suffix: "a3", want: 3},
	}
	for _, tt := range tests {
		ring, err := NewRing(tt.n)
		require.NoError(t, err)
		idx, err := ring.Place(hash(tt.suffix))
		require.NoError(t, err)
		assert.Equal(t, tt.want, idx, "hash ...%s mod %d", tt.suffix, tt.n)
	}
}

// 16 is congruent to 1 modulo 3, so the owner under three shards is the hex
// digit sum mod 3.
func TestPlaceThreeShards(t *testing.T) {
	ring, err := NewRing(3)
	require.NoError(t, err)

	tests := []struct {
		suffix string
		want   int
	}{
		{suffix: "1", want: 1},
		{suffix: "ff", want: 0},  // 15+15 = 30
		{suffix: "123", want: 0}, // 1+2+3 = 6
		{suffix: "be", want: 1},  // 11+14 = 25
	}
	for _, tt := range tests {
		idx, err := ring.Place(hash(tt.suffix))
		require.NoError(t, err)
		assert.Equal(t, tt.want, idx, "hash ...%s", tt.suffix)
	}
}

func TestPlaceRejectsMalformedHashes(t *testing.T) {
	ring, err := NewRing(4)
	require.NoError(t, err)

	for _, h := range []string{"", "abc", strings.Repeat("g", 64), strings.ToUpper(hash("ab"))} {
		_, err := ring.Place(h)
		assert.Error(t, err, "hash %q", h)
	}
}

func TestGroupPreservesOrderWithinShards(t *testing.T) {
	ring, err := NewRing(2)
	require.NoError(t, err)

	even1, even2 := hash("2"), hash("4")
	odd1, odd2 := hash("3"), hash("5")

	grouped, err := ring.Group([]string{odd1, even1, odd2, even2})
	require.NoError(t, err)
	assert.Equal(t, []string{even1, even2}, grouped[0])
	assert.Equal(t, []string{odd1, odd2}, grouped[1])
}

func TestPlaceIsStable(t *testing.T) {
	ring, err := NewRing(7)
	require.NoError(t, err)

	h := domain.HashBlock([]byte("stable"))
	first, err := ring.Place(h)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ring.Place(h)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
