// Package rocketreach provides a client and a rate-limited account pool
// for the RocketReach person lookup API.
package rocketreach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the RocketReach operations.
type Client interface {
	// LookupProfile resolves an email to a LinkedIn profile URL using the
	// given account key. Empty result means the person was not found.
	LookupProfile(ctx context.Context, apiKey, email string) (string, error)
}

// ErrRateLimited is returned when the API answers 429 for an account.
var ErrRateLimited = eris.New("rocketreach: rate limited")

// Option configures the RocketReach client.
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

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new RocketReach client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.rocketreach.co/v2",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lookupResponse is the subset of the person lookup payload we use.
type lookupResponse struct {
	Status      string `json:"status"`
	LinkedInURL string `json:"linkedin_url"`
}

func (c *httpClient) LookupProfile(ctx context.Context, apiKey, email string) (string, error) {
	reqURL := fmt.Sprintf("%s/api/lookupProfile?email=%s", c.baseURL, url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "rocketreach: create request")
	}
	req.Header.Set("Api-Key", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "rocketreach: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "rocketreach: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", eris.Errorf("rocketreach: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result lookupResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "rocketreach: unmarshal response")
	}

	return result.LinkedInURL, nil
}
