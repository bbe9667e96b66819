package metastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zzenonn/blocksync/internal/config"
	storeerrors "github.com/zzenonn/blocksync/internal/errors"
)

// Client talks to the metadata service over HTTP. Protocol failures are
// returned as the typed errors from internal/errors so callers can drive
// the retry loop with errors.As / errors.Is.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetry   uint64
}

// NewClient creates a client for the metadata service at endpoint.
func NewClient(endpoint string, settings config.Settings) *Client {
	return &Client{
		baseURL:    config.BaseURL(endpoint),
		httpClient: &http.Client{Timeout: time.Duration(settings.RequestTimeout) * time.Second},
		maxRetry:   uint64(settings.MaxTransportRetry),
	}
}

// ReadFile returns the current version and hashlist for filename. An
// unknown filename reads as (0, empty); a tombstoned one as its delete
// version with an empty hashlist.
func (c *Client) ReadFile(ctx context.Context, filename string) (int64, []string, error) {
	var out fileResponse
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(filename), http.NoBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("read %s: http %d", filename, resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return 0, nil, err
	}
	return out.Version, out.HashList, nil
}

// ModifyFile commits hashlist for filename at version. Protocol failures
// surface as *MissingBlocksError or *WrongVersionError.
func (c *Client) ModifyFile(ctx context.Context, filename string, version int64, hashlist []string) error {
	if hashlist == nil {
		hashlist = []string{}
	}
	body, err := json.Marshal(modifyRequest{Version: version, HashList: hashlist})
	if err != nil {
		return err
	}
	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.fileURL(filename), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return backoff.Permanent(decodeError(resp, fmt.Sprintf("modify %s v%d", filename, version)))
	})
}

// DeleteFile tombstones filename at version. Protocol failures surface as
// ErrFileNotFound or *WrongVersionError.
func (c *Client) DeleteFile(ctx context.Context, filename string, version int64) error {
	target := fmt.Sprintf("%s?version=%d", c.fileURL(filename), version)
	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, http.NoBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return backoff.Permanent(decodeError(resp, fmt.Sprintf("delete %s v%d", filename, version)))
	})
}

// decodeError maps a structured error response back onto the typed errors.
func decodeError(resp *http.Response, op string) error {
	var wire errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return fmt.Errorf("%s: http %d", op, resp.StatusCode)
	}
	switch wire.Kind {
	case storeerrors.KindMissingBlocks:
		return &storeerrors.MissingBlocksError{Missing: wire.Missing}
	case storeerrors.KindWrongVersion:
		return &storeerrors.WrongVersionError{Current: wire.Current}
	case storeerrors.KindFileNotFound:
		return storeerrors.ErrFileNotFound
	default:
		return fmt.Errorf("%s: http %d", op, resp.StatusCode)
	}
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), c.maxRetry), ctx)
	return backoff.Retry(op, policy)
}

func (c *Client) fileURL(filename string) string {
	return c.baseURL + "/files/" + url.PathEscape(filename)
}
