package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Several provider pricing pages refuse the default Go user agent, so all
// collector traffic identifies as a desktop browser.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPClient wraps http.Client for collector fetches. It does not retry:
// a failed fetch is a failed collection, retried only by a fresh run.
type HTTPClient struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Timeout: timeout,
	}
}

// GetText fetches a URL and returns the response body as a string.
func (c *HTTPClient) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches a URL and decodes the JSON response into v.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, v interface{}) error {
	body, err := c.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	return body, nil
}
