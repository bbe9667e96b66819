package blockstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zzenonn/blocksync/internal/config"
	storeerrors "github.com/zzenonn/blocksync/internal/errors"
)

// Client talks to one shard over HTTP. Connections are pooled by the
// underlying transport and live for the process lifetime.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetry   uint64
}

// NewClient creates a client for the shard at endpoint (host:port).
func NewClient(endpoint string, settings config.Settings) *Client {
	return &Client{
		baseURL:    config.BaseURL(endpoint),
		httpClient: &http.Client{Timeout: time.Duration(settings.RequestTimeout) * time.Second},
		maxRetry:   uint64(settings.MaxTransportRetry),
	}
}

// StoreBlock uploads a block under its hash. Safe to repeat.
func (c *Client) StoreBlock(ctx context.Context, hash string, block []byte) error {
	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.blockURL(hash), bytes.NewReader(block))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("store %s: http %d", hash, resp.StatusCode))
		}
		return nil
	})
}

// GetBlock fetches a block's bytes, returning ErrBlockNotFound when the
// shard does not hold it.
func (c *Client) GetBlock(ctx context.Context, hash string) ([]byte, error) {
	var block []byte
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.blockURL(hash), http.NoBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			block, err = io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			return nil
		case http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("get %s: %w", hash, storeerrors.ErrBlockNotFound))
		default:
			return backoff.Permanent(fmt.Errorf("get %s: http %d", hash, resp.StatusCode))
		}
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// HasBlock probes for presence of a block on the shard.
func (c *Client) HasBlock(ctx context.Context, hash string) (bool, error) {
	var present bool
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.blockURL(hash), http.NoBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		switch resp.StatusCode {
		case http.StatusOK:
			present = true
			return nil
		case http.StatusNotFound:
			present = false
			return nil
		default:
			return backoff.Permanent(fmt.Errorf("has %s: http %d", hash, resp.StatusCode))
		}
	})
	if err != nil {
		return false, err
	}
	return present, nil
}

// retry runs op with a bounded constant backoff. Only transport errors are
// retried; HTTP responses of any status are final.
func (c *Client) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), c.maxRetry), ctx)
	return backoff.Retry(op, policy)
}

func (c *Client) blockURL(hash string) string {
	return c.baseURL + "/blocks/" + hash
}
