// Package apify is a thin client for the Apify actor-run API, covering the
// operations needed to drive a LinkedIn profile scraping actor: start a run,
// poll its status, and fetch the run's default dataset.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Apify v2 API.
const defaultBaseURL = "https://api.apify.com/v2"

// Terminal actor-run statuses as reported by the platform.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimedOut  = "TIMED-OUT"
	StatusAborted   = "ABORTED"
)

// Client defines the Apify actor-run operations.
type Client interface {
	StartRun(ctx context.Context, actorID string, input RunInput) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	DatasetItems(ctx context.Context, datasetID string) ([]json.RawMessage, error)
}

// RunInput is the actor input for a profile-scraping run. Cookie is the raw
// browser cookie bundle the actor authenticates with.
type RunInput struct {
	URLs   []string          `json:"urls"`
	Cookie json.RawMessage   `json:"cookie"`
	Proxy  map[string]any    `json:"proxy,omitempty"`
}

// Run describes an actor run and its current status.
type Run struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
}

// Terminal reports whether the run has reached a final status.
func (r *Run) Terminal() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusAborted:
		return true
	}
	return false
}

// APIError is returned when Apify responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether the error is an Apify HTTP 429 response.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if eris.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Apify client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
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

// runEnvelope wraps every actor-run response body.
type runEnvelope struct {
	Data Run `json:"data"`
}

func (c *httpClient) StartRun(ctx context.Context, actorID string, input RunInput) (*Run, error) {
	var resp runEnvelope
	path := fmt.Sprintf("/acts/%s/runs", url.PathEscape(actorID))
	if err := c.post(ctx, path, input, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: start run %s", actorID))
	}
	return &resp.Data, nil
}

func (c *httpClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var resp runEnvelope
	if err := c.get(ctx, fmt.Sprintf("/actor-runs/%s", runID), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: get run %s", runID))
	}
	return &resp.Data, nil
}

func (c *httpClient) DatasetItems(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/datasets/%s/items", datasetID), &items); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: dataset items %s", datasetID))
	}
	return items, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
