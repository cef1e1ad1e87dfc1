package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	userAgent      = "StockNews/1.0"
	maxErrorBody   = 512
)

// Request describes a single GET call.
type Request struct {
	URL    string
	Query  url.Values
	Header http.Header
}

// Client performs bounded GET requests that decode JSON bodies.
type Client struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// NewWithHTTPClient wraps an existing client, keeping its transport and timeout.
func NewWithHTTPClient(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// GetJSON performs the request and decodes a 200 response into out.
// Non-2xx statuses come back as *Error; they are never retried here.
func (c *Client) GetJSON(ctx context.Context, r Request, out any) error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return &Error{Kind: KindClient, Err: fmt.Errorf("parse url: %w", err)}
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &Error{Kind: KindClient, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %d %s", resp.StatusCode, string(body)),
		}
	}

	// Body failures carry no status: the request itself succeeded.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return &Error{Kind: KindNetwork, Err: fmt.Errorf("read response: %w", err)}
		}
		return &Error{Kind: KindParse, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
