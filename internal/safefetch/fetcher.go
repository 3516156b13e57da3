package safefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stitchfolk/pattern-delivery/internal/pkg/logger"
)

// Result is the outcome of a successful guarded fetch.
type Result struct {
	Body        []byte
	ContentType string
	Status      int
}

// Client performs validated HTTP GETs with a bounded timeout and a response
// size cap. The zero value is not usable; construct with NewClient.
type Client struct {
	timeout  time.Duration
	maxBytes int64
	log      *logger.Logger

	// allowPrivate disables the loopback/private checks so package tests can
	// fetch from httptest servers. Never set outside tests.
	allowPrivate bool
}

// NewClient creates a guarded fetch client. maxBytes caps the response body;
// zero means 100 MB.
func NewClient(timeout time.Duration, maxBytes int64) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	return &Client{
		timeout:  timeout,
		maxBytes: maxBytes,
		log:      logger.With("safefetch"),
	}
}

// Fetch validates rawURL, then issues the GET. Validation failure means no
// network I/O at all. Redirect targets are re-validated against the same
// rules; a redirect into blocked address space aborts the request.
func (c *Client) Fetch(ctx context.Context, rawURL string, allowedHosts []string) (*Result, error) {
	if err := validate(rawURL, allowedHosts, c.allowPrivate); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return validate(req.URL.String(), allowedHosts, c.allowPrivate)
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ValidationError{Reason: ReasonInvalidFormat}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("fetching %s: response exceeds %d byte limit", rawURL, c.maxBytes)
	}

	c.log.Debug("fetched file", "url", rawURL, "bytes", len(body), "status", resp.StatusCode)

	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
	}, nil
}
