// Package serp provides a client for the headless SERP rendering service,
// which executes a query against a given search engine domain and returns
// the parsed result entries.
package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the SERP service operations.
type Client interface {
	// Search runs the query against the given engine domain
	// (e.g. "google.com", "bing.com") and returns parsed results.
	Search(ctx context.Context, query, domain string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed SERP service response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	// Blocked is set when the engine served a CAPTCHA or interstitial
	// instead of results.
	Blocked bool   `json:"blocked"`
	Engine  string `json:"engine"`
}

// SearchResult represents a single organic result entry.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	maxResults int
}

// WithMaxResults caps the number of results returned by the service.
func WithMaxResults(n int) SearchOption {
	return func(o *searchOpts) {
		o.maxResults = n
	}
}

// Option configures the SERP client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new SERP service client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://serp.nbopipeline.dev",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)
		retryReq.Body = io.NopCloser(bytes.NewReader(payload))

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "serp: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("serp: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

type searchRequest struct {
	Query      string `json:"query"`
	Domain     string `json:"domain"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (c *httpClient) Search(ctx context.Context, query, domain string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	payload, err := json.Marshal(searchRequest{
		Query:      query,
		Domain:     domain,
		MaxResults: so.maxResults,
	})
	if err != nil {
		return nil, eris.Wrap(err, "serp: marshal request")
	}

	reqURL := fmt.Sprintf("%s/search", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "serp: create request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req, payload)
	if err != nil {
		return nil, eris.Wrap(err, "serp: request failed")
	}

	// The service returns 422 when the engine produced no parseable results.
	// Treat this as empty results rather than an error.
	if statusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{Engine: domain}, nil
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("serp: unexpected status %d: %s", statusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serp: unmarshal response")
	}

	return &result, nil
}
