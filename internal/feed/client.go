package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// TokenSource acquires a fresh bearer token after an authentication expiry.
type TokenSource func(ctx context.Context) (string, error)

// Client is the resilient HTTP client every adapter that talks to an
// authenticated third-party service is expected to use: bounded retries
// with exponential backoff on 429/5xx and transport errors, and a single
// re-login attempt on 401 when a TokenSource is available.
type Client struct {
	HTTP        *http.Client
	Attempts    int
	BackoffCap  time.Duration
	Token       string
	TokenSource TokenSource

	log zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Attempts:   6,
		BackoffCap: 30 * time.Second,
		log:        log,
	}
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do performs the request, re-building it per attempt. The caller owns the
// response body of a successful call.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*http.Response, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	reloginUsed := false

	for attempt := 0; attempt < attempts; attempt++ {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rdr)
		if err != nil {
			return nil, fmt.Errorf("build request %s %s: %w", method, url, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			if wErr := c.wait(ctx, attempt, fmt.Sprintf("%s %s: %v", method, url, err)); wErr != nil {
				return nil, wErr
			}
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized && c.TokenSource != nil && !reloginUsed {
			resp.Body.Close()
			c.log.Debug().Str("url", url).Msg("401, refreshing token")
			token, tErr := c.TokenSource(ctx)
			if tErr != nil {
				return nil, fmt.Errorf("token refresh after 401: %w", tErr)
			}
			c.Token = token
			reloginUsed = true
			continue
		}

		if retryable(resp.StatusCode) {
			resp.Body.Close()
			lastErr = fmt.Errorf("%s %s: http %d", method, url, resp.StatusCode)
			if wErr := c.wait(ctx, attempt, lastErr.Error()); wErr != nil {
				return nil, wErr
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("%s %s: http %d", method, url, resp.StatusCode)
		}
		return resp, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%s %s: no stable response", method, url)
	}
	return nil, lastErr
}

// Get fetches the URL and returns the whole body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

func (c *Client) wait(ctx context.Context, attempt int, reason string) error {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > c.BackoffCap {
		d = c.BackoffCap
	}
	c.log.Debug().Str("reason", reason).Dur("backoff", d).Msg("retrying")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// BatchSizer shrinks the chunk size for bulk endpoints when requests time
// out instead of failing the whole batch, and grows it back on success.
type BatchSizer struct {
	size, min, max, step int
}

func NewBatchSizer(initial int) *BatchSizer {
	if initial <= 0 {
		initial = 50
	}
	return &BatchSizer{size: initial, min: 10, max: 100, step: 10}
}

func (b *BatchSizer) Size() int { return b.size }

func (b *BatchSizer) Shrink() {
	if b.size/2 > b.min {
		b.size /= 2
	} else {
		b.size = b.min
	}
}

func (b *BatchSizer) Grow() {
	if b.size+b.step < b.max {
		b.size += b.step
	} else {
		b.size = b.max
	}
}
