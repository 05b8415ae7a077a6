package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tez-capital/cryptoblob/internal/errkind"
	"github.com/tez-capital/cryptoblob/storage"
)

const maxModifyAttempts = 8

// Client implements storage.Backend against a Server (or any HTTP
// endpoint speaking the same GET/PUT/DELETE-with-If-Match contract).
type Client struct {
	BaseURL string
	HTTP    *http.Client

	mu    sync.Mutex
	etags map[string]string
}

var _ storage.Backend = (*Client)(nil)

// NewClient targets baseURL, e.g. "http://localhost:8080/objects".
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/"), HTTP: http.DefaultClient, etags: make(map[string]string)}
}

func (c *Client) locURL(loc string) string {
	return c.BaseURL + "/" + url.PathEscape(loc)
}

// Load fetches loc's current bytes.
func (c *Client) Load(ctx context.Context, loc string) ([]byte, error) {
	data, etag, err := c.get(ctx, loc)
	if err != nil {
		return nil, err
	}
	c.cacheEtag(loc, etag)
	return data, nil
}

func (c *Client) get(ctx context.Context, loc string) (data []byte, etag string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.locURL(loc), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build GET %s: %v", errkind.ErrBackend, loc, err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: GET %s: %v", errkind.ErrBackend, loc, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: read body %s: %v", errkind.ErrBackend, loc, err)
		}
		return body, resp.Header.Get("ETag"), nil
	case http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: %s: not found", errkind.ErrBackend, loc)
	default:
		return nil, "", fmt.Errorf("%w: GET %s: unexpected status %d", errkind.ErrBackend, loc, resp.StatusCode)
	}
}

// Modify implements the optimistic conditional-update loop: read the
// current bytes and ETag, write fn's result with If-Match, and on a 409
// re-read before retrying fn, up to maxModifyAttempts. Every call
// starts with a GET; the client's ETag table is updated after reads
// and writes but is not consulted here.
func (c *Client) Modify(ctx context.Context, loc string, fn storage.Modifier) error {
	current, etag, err := c.currentWithCachedEtag(ctx, loc)
	if err != nil && !isNotFoundBackendErr(err) {
		return err
	}

	for attempt := 0; attempt < maxModifyAttempts; attempt++ {
		next, err := fn(current)
		if err != nil {
			return err
		}

		switch {
		case next == nil && current == nil:
			return nil
		case next == nil:
			if err := c.delete(ctx, loc, etag); err != nil {
				if isConflictErr(err) {
					current, etag, err = c.get(ctx, loc)
					if err != nil && !isNotFoundBackendErr(err) {
						return err
					}
					continue
				}
				return err
			}
			c.cacheEtag(loc, "")
			return nil
		case current != nil && string(next) == string(current):
			return nil
		default:
			newEtag, err := c.put(ctx, loc, next, etag)
			if err != nil {
				if isConflictErr(err) {
					current, etag, err = c.get(ctx, loc)
					if err != nil && !isNotFoundBackendErr(err) {
						return err
					}
					continue
				}
				return err
			}
			c.cacheEtag(loc, newEtag)
			return nil
		}
	}
	return fmt.Errorf("%w: %s: exceeded %d conditional-update retries", errkind.ErrBackend, loc, maxModifyAttempts)
}

func (c *Client) currentWithCachedEtag(ctx context.Context, loc string) ([]byte, string, error) {
	return c.get(ctx, loc)
}

func (c *Client) put(ctx context.Context, loc string, data []byte, ifMatch string) (newEtag string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.locURL(loc), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: build PUT %s: %v", errkind.ErrBackend, loc, err)
	}
	if ifMatch == "" {
		req.Header.Set("If-Match", "*")
	} else {
		req.Header.Set("If-Match", ifMatch)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: PUT %s: %v", errkind.ErrBackend, loc, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Header.Get("ETag"), nil
	case http.StatusConflict:
		return "", conflictErr(loc)
	default:
		return "", fmt.Errorf("%w: PUT %s: unexpected status %d", errkind.ErrBackend, loc, resp.StatusCode)
	}
}

func (c *Client) delete(ctx context.Context, loc, ifMatch string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.locURL(loc), nil)
	if err != nil {
		return fmt.Errorf("%w: build DELETE %s: %v", errkind.ErrBackend, loc, err)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: DELETE %s: %v", errkind.ErrBackend, loc, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return nil
	case http.StatusConflict:
		return conflictErr(loc)
	default:
		return fmt.Errorf("%w: DELETE %s: unexpected status %d", errkind.ErrBackend, loc, resp.StatusCode)
	}
}

func (c *Client) cacheEtag(loc, etag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if etag == "" {
		delete(c.etags, loc)
		return
	}
	c.etags[loc] = etag
}

type conflictMarker struct{ loc string }

func (e conflictMarker) Error() string { return fmt.Sprintf("objectstore: conditional write conflict on %s", e.loc) }

func conflictErr(loc string) error { return fmt.Errorf("%w: %w", errkind.ErrBackend, conflictMarker{loc}) }

func isConflictErr(err error) bool {
	var cm conflictMarker
	return err != nil && errors.As(err, &cm)
}

func isNotFoundBackendErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
