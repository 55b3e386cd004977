package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/ratelimit"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/store"
)

type stubLookup struct {
	lastReq model.LookupRequest
	result  model.LookupResult
}

func (s *stubLookup) Lookup(_ context.Context, req model.LookupRequest) model.LookupResult {
	s.lastReq = req
	res := s.result
	res.Email = req.Email
	return res
}

type stubScraper struct {
	lastURL  string
	lastURLs []string
	lastPool string
	single   model.ScrapeResult
	bulk     model.BulkScrapeResult
}

func (s *stubScraper) Scrape(_ context.Context, url, pool string) model.ScrapeResult {
	s.lastURL, s.lastPool = url, pool
	return s.single
}

func (s *stubScraper) ScrapeBulk(_ context.Context, urls []string, pool string) model.BulkScrapeResult {
	s.lastURLs, s.lastPool = urls, pool
	return s.bulk
}

type stubUsage struct {
	stats map[string]ratelimit.PoolStats
	err   error
}

func (s *stubUsage) Stats(context.Context) (map[string]ratelimit.PoolStats, error) {
	return s.stats, s.err
}

type stubStats struct {
	stats *store.SubscriberStats
}

func (s *stubStats) SubscriberStats(context.Context) (*store.SubscriberStats, error) {
	return s.stats, nil
}

func newTestServer(cfg Config, deps Deps) *httptest.Server {
	if deps.Lookup == nil {
		deps.Lookup = &stubLookup{}
	}
	return httptest.NewServer(New(cfg, deps).Handler())
}

func doRequest(t *testing.T, method, url, apiKey, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthNoAuth(t *testing.T) {
	ts := newTestServer(Config{APIKey: "secret"}, Deps{})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet, ts.URL+"/health", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(Config{APIKey: "secret"}, Deps{})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/lookup/jane@acme.com", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/lookup/jane@acme.com", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/lookup/jane@acme.com", "secret", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIKeyDisabledWhenUnset(t *testing.T) {
	ts := newTestServer(Config{}, Deps{})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/lookup/jane@acme.com", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLookupGet(t *testing.T) {
	lookup := &stubLookup{result: model.LookupResult{
		LinkedInURL: "https://www.linkedin.com/in/jane-smith",
		Success:     true,
		MethodUsed:  model.MethodGoogleSearch,
	}}
	ts := newTestServer(Config{}, Deps{Lookup: lookup})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet,
		ts.URL+"/api/v1/lookup/jane@acme.com?first_name=Jane&last_name=Smith&country=US", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var res model.LookupResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.Equal(t, "https://www.linkedin.com/in/jane-smith", res.LinkedInURL)

	assert.Equal(t, "jane@acme.com", lookup.lastReq.Email)
	assert.Equal(t, "Jane", lookup.lastReq.FirstName)
	assert.Equal(t, "Smith", lookup.lastReq.LastName)
	assert.Equal(t, "US", lookup.lastReq.Country)
}

func TestLookupGetInvalidEmail(t *testing.T) {
	ts := newTestServer(Config{}, Deps{})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/lookup/not-an-email", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLookupPost(t *testing.T) {
	lookup := &stubLookup{result: model.LookupResult{Success: true}}
	ts := newTestServer(Config{}, Deps{Lookup: lookup})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/lookup", "",
		`{"email":"jane@acme.com","first_name":"Jane"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jane@acme.com", lookup.lastReq.Email)
}

func TestLookupPostBadBody(t *testing.T) {
	ts := newTestServer(Config{}, Deps{})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/lookup", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrape(t *testing.T) {
	scraper := &stubScraper{single: model.ScrapeResult{
		Success:   true,
		RateLimit: model.RateLimitInfo{IsAllowed: true, Remaining: 4, PoolUsed: "backup"},
	}}
	ts := newTestServer(Config{}, Deps{Scraper: scraper})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/scraper/profile", "",
		`{"linkedin_url":"https://www.linkedin.com/in/jane-smith","pool":"backup"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://www.linkedin.com/in/jane-smith", scraper.lastURL)
	assert.Equal(t, "backup", scraper.lastPool)
}

func TestScrapeDefaultsToMainPool(t *testing.T) {
	scraper := &stubScraper{single: model.ScrapeResult{
		Success:   true,
		RateLimit: model.RateLimitInfo{IsAllowed: true},
	}}
	ts := newTestServer(Config{}, Deps{Scraper: scraper})
	defer ts.Close()

	doRequest(t, http.MethodPost, ts.URL+"/api/v1/scraper/profile", "",
		`{"linkedin_url":"https://www.linkedin.com/in/jane-smith"}`)

	assert.Equal(t, "main", scraper.lastPool)
}

func TestScrapeRateLimited(t *testing.T) {
	scraper := &stubScraper{single: model.ScrapeResult{
		Success:   false,
		Error:     "daily rate limit exceeded",
		RateLimit: model.RateLimitInfo{IsAllowed: false, Remaining: 0},
	}}
	ts := newTestServer(Config{}, Deps{Scraper: scraper})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/scraper/profile", "",
		`{"linkedin_url":"https://www.linkedin.com/in/jane-smith"}`)

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestScrapeMissingURL(t *testing.T) {
	ts := newTestServer(Config{}, Deps{Scraper: &stubScraper{}})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/scraper/profile", "", `{"pool":"main"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrapeNotConfigured(t *testing.T) {
	ts := newTestServer(Config{}, Deps{})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/scraper/profile", "",
		`{"linkedin_url":"https://www.linkedin.com/in/jane-smith"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestScrapeBulk(t *testing.T) {
	scraper := &stubScraper{bulk: model.BulkScrapeResult{
		Success:    true,
		ValidCount: 2,
		RateLimit:  model.RateLimitInfo{IsAllowed: true},
	}}
	ts := newTestServer(Config{}, Deps{Scraper: scraper})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/scraper/bulk", "",
		`{"linkedin_urls":["https://www.linkedin.com/in/a","https://www.linkedin.com/in/b"]}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, scraper.lastURLs, 2)
	assert.Equal(t, "main", scraper.lastPool)
}

func TestScrapeBulkEmpty(t *testing.T) {
	ts := newTestServer(Config{}, Deps{Scraper: &stubScraper{}})
	defer ts.Close()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/scraper/bulk", "", `{"linkedin_urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScraperStats(t *testing.T) {
	usage := &stubUsage{stats: map[string]ratelimit.PoolStats{
		"main": {Used: 3, Limit: 70, Remaining: 67},
	}}
	ts := newTestServer(Config{}, Deps{Usage: usage})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/scraper/stats", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Pools map[string]ratelimit.PoolStats `json:"pools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 67, body.Pools["main"].Remaining)
}

func TestSubscriberStats(t *testing.T) {
	stats := &stubStats{stats: &store.SubscriberStats{Total: 10, WithLinkedIn: 4, WithoutLinkedIn: 6}}
	ts := newTestServer(Config{}, Deps{Stats: stats})
	defer ts.Close()

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/subscribers/stats", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body store.SubscriberStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 10, body.Total)
}

func TestRequestIDPreserved(t *testing.T) {
	ts := newTestServer(Config{}, Deps{})
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "test-id-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "test-id-123", resp.Header.Get(RequestIDHeader))
}
