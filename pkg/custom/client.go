package custom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProgressFunc wraps a download destination, e.g. with a progress bar.
// size is -1 when the server does not announce it.
type ProgressFunc func(size int64, description string, w io.Writer) io.Writer

// Client downloads installer artifacts
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a download client with a default timeout
func NewClient() *Client {
	return NewClientWithTimeout(10 * time.Minute)
}

// NewClientWithTimeout creates a download client with a custom timeout
func NewClientWithTimeout(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "ultrabunt/1.0",
	}
}

// Get performs an HTTP GET request and rejects non-200 answers
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return resp, nil
}

// Download copies url into w and returns the number of bytes written
func (c *Client) Download(ctx context.Context, url string, w io.Writer, progress ProgressFunc) (int64, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if progress != nil {
		w = progress(resp.ContentLength, "downloading", w)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("downloading: %w", err)
	}
	return n, nil
}
