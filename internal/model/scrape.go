package model

import (
	"encoding/json"
	"strings"
)

// RateLimitInfo describes the rate-limit outcome attached to a scrape result.
type RateLimitInfo struct {
	IsAllowed bool   `json:"is_allowed"`
	Remaining int    `json:"remaining"`
	PoolUsed  string `json:"pool_used"`
}

// ScrapeResult is the outcome of scraping a single LinkedIn profile.
// ProfileData is the raw record returned by the job runner; its shape is
// externally controlled, so it is carried as loosely-typed JSON.
type ScrapeResult struct {
	LinkedInURL          string          `json:"linkedin_url"`
	Success              bool            `json:"success"`
	Error                string          `json:"error,omitempty"`
	ProfileData          json.RawMessage `json:"profile_data,omitempty"`
	ElapsedMs            int64           `json:"elapsed_ms"`
	RateLimit            RateLimitInfo   `json:"rate_limit"`
	OtherPoolsRemaining  map[string]int  `json:"other_pools_remaining,omitempty"`
	ResetTime            string          `json:"reset_time,omitempty"`
}

// BulkScrapeItem is the per-URL outcome within a bulk scrape.
type BulkScrapeItem struct {
	LinkedInURL string          `json:"linkedin_url"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
	ProfileData json.RawMessage `json:"profile_data,omitempty"`
}

// BulkScrapeResult is the outcome of a bulk scrape request. Syntactically
// invalid URLs are separated up front and never charged against the pool.
type BulkScrapeResult struct {
	Success             bool             `json:"success"`
	Error               string           `json:"error,omitempty"`
	ValidCount          int              `json:"valid_count"`
	InvalidCount        int              `json:"invalid_count"`
	InvalidURLs         []string         `json:"invalid_urls"`
	Results             []BulkScrapeItem `json:"results"`
	ElapsedMs           int64            `json:"elapsed_ms"`
	RateLimit           RateLimitInfo    `json:"rate_limit"`
	OtherPoolsRemaining map[string]int   `json:"other_pools_remaining,omitempty"`
	ResetTime           string           `json:"reset_time,omitempty"`
}

// ValidLinkedInProfileURL reports whether a URL looks like a LinkedIn
// profile page. Only /in/ profile URLs are scrapeable.
func ValidLinkedInProfileURL(url string) bool {
	lower := strings.ToLower(strings.TrimSpace(url))
	if lower == "" {
		return false
	}
	return strings.Contains(lower, "linkedin.com/in/")
}
