package blockstore

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzenonn/blocksync/internal/config"
	"github.com/zzenonn/blocksync/internal/domain"
	storeerrors "github.com/zzenonn/blocksync/internal/errors"
)

func testSettings() config.Settings {
	return config.Settings{RequestTimeout: 5, MaxTransportRetry: 1}
}

func startShard(t *testing.T) (*Store, *Client) {
	t.Helper()
	store := NewStore()
	server := httptest.NewServer(NewServer(store))
	t.Cleanup(server.Close)
	endpoint := strings.TrimPrefix(server.URL, "http://")
	return store, NewClient(endpoint, testSettings())
}

func TestClientRoundTrip(t *testing.T) {
	_, client := startShard(t)
	ctx := context.Background()

	block := bytes.Repeat([]byte{0x42}, domain.ChunkSize)
	hash := domain.HashBlock(block)

	present, err := client.HasBlock(ctx, hash)
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, client.StoreBlock(ctx, hash, block))
	require.NoError(t, client.StoreBlock(ctx, hash, block)) // idempotent

	present, err = client.HasBlock(ctx, hash)
	require.NoError(t, err)
	assert.True(t, present)

	got, err := client.GetBlock(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, block, got)
}

func TestClientGetAbsentBlock(t *testing.T) {
	_, client := startShard(t)

	_, err := client.GetBlock(context.Background(), domain.HashBlock([]byte("nope")))
	assert.ErrorIs(t, err, storeerrors.ErrBlockNotFound)
}

func TestServerRejectsMismatchedContent(t *testing.T) {
	store := NewStore()
	server := httptest.NewServer(NewServer(store))
	defer server.Close()

	hash := domain.HashBlock([]byte("expected"))
	req, err := http.NewRequest(http.MethodPut, server.URL+"/blocks/"+hash, bytes.NewReader([]byte("different")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, store.Has(hash))
}

func TestServerRejectsMalformedHash(t *testing.T) {
	store := NewStore()
	server := httptest.NewServer(NewServer(store))
	defer server.Close()

	resp, err := http.Get(server.URL + "/blocks/not-a-hash")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerRejectsOversizedBlock(t *testing.T) {
	store := NewStore()
	server := httptest.NewServer(NewServer(store))
	defer server.Close()

	oversized := bytes.Repeat([]byte{0x1}, domain.ChunkSize+1)
	hash := domain.HashBlock(oversized)
	req, err := http.NewRequest(http.MethodPut, server.URL+"/blocks/"+hash, bytes.NewReader(oversized))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestServerStats(t *testing.T) {
	store := NewStore()
	server := httptest.NewServer(NewServer(store))
	defer server.Close()

	block := []byte("counted")
	store.Put(domain.HashBlock(block), block)

	resp, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Blocks)
	assert.Equal(t, int64(len(block)), stats.Bytes)
}
