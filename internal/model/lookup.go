// Package model defines the request and result shapes shared across the
// lookup and scraping pipeline.
package model

import (
	"strings"
)

// DomainType classifies an email domain's likely ownership.
type DomainType string

const (
	DomainWork     DomainType = "work"
	DomainPersonal DomainType = "personal"
	DomainUnknown  DomainType = "unknown"
)

// Method identifies which lookup strategy produced a result.
type Method string

const (
	MethodDatabaseCache       Method = "database_cache"
	MethodGoogleSearch        Method = "google_search"
	MethodRocketReachPrimary  Method = "rocketreach_primary"
	MethodRocketReachFallback Method = "rocketreach_fallback"
	MethodNone                Method = "none"
)

// LookupRequest holds the inputs for a LinkedIn profile lookup.
// Email is required; name and location fields are optional hints.
type LookupRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Country   string `json:"country,omitempty"`
}

// LookupResult is the wire contract returned for a lookup request.
type LookupResult struct {
	Email            string     `json:"email"`
	LinkedInURL      string     `json:"linkedin_url,omitempty"`
	Success          bool       `json:"success"`
	MethodUsed       Method     `json:"method_used"`
	DomainType       DomainType `json:"domain_type"`
	SearchDomainUsed string     `json:"search_domain_used,omitempty"`
	CacheHit         bool       `json:"cache_hit"`
	CacheUpdated     bool       `json:"cache_updated"`
	ElapsedMs        int64      `json:"elapsed_ms"`
	Error            string     `json:"error,omitempty"`
}

// SearchCandidate is a single search-engine result considered as a possible
// profile match. Candidates are transient and never persisted.
type SearchCandidate struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ValidEmail reports whether an email has the minimal shape the pipeline
// requires: exactly one "@" and a dotted domain suffix.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	at := strings.Count(email, "@")
	if at != 1 {
		return false
	}
	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]
	if local == "" || domain == "" {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// placeholder values commonly seen in user-supplied fields that should be
// treated as absent.
var emptyPlaceholders = map[string]struct{}{
	"":          {},
	"none":      {},
	"null":      {},
	"n/a":       {},
	"#n/a":      {},
	"undefined": {},
	"nil":       {},
	"na":        {},
	"-":         {},
	"unknown":   {},
	"#null":     {},
}

// SanitizeParam trims and normalizes an optional string field, returning ""
// when the value is empty or a null placeholder.
func SanitizeParam(value string) string {
	trimmed := strings.Join(strings.Fields(value), " ")
	if _, bad := emptyPlaceholders[strings.ToLower(trimmed)]; bad {
		return ""
	}
	return trimmed
}

// Sanitize returns a copy of the request with the email lowercased and all
// optional fields normalized.
func (r LookupRequest) Sanitize() LookupRequest {
	return LookupRequest{
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		FirstName: SanitizeParam(r.FirstName),
		LastName:  SanitizeParam(r.LastName),
		City:      SanitizeParam(r.City),
		State:     SanitizeParam(r.State),
		Country:   SanitizeParam(r.Country),
	}
}
