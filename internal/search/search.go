// Package search finds LinkedIn profile candidates by walking an ordered
// list of search engine domains until one yields usable results.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/serp"
)

// DefaultDomains is the engine rotation order. Regional Google mirrors
// rate-limit independently, so a block on one rarely means a block on all.
var DefaultDomains = []string{
	"google.com", "google.de", "google.com.eg", "google.com.au",
	"bing.com", "duckduckgo.com",
}

// linkedinPaths are URL fragments that identify LinkedIn pages.
var linkedinPaths = []string{
	"linkedin.com/in/",
	"linkedin.com/company/",
	"linkedin.com/posts/",
	"linkedin.com/pulse/",
	"linkedin.com/groups/",
	"linkedin.com/feed/",
	"linkedin.com/mwlite/",
}

// IsLinkedInURL reports whether the URL points at a LinkedIn page,
// including country-prefixed hosts like eg.linkedin.com.
func IsLinkedInURL(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range linkedinPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Provider runs queries through the SERP service across multiple engine
// domains.
type Provider struct {
	client     serp.Client
	domains    []string
	maxResults int
}

// NewProvider creates a Provider. Empty domains fall back to
// DefaultDomains; maxResults <= 0 means 10.
func NewProvider(client serp.Client, domains []string, maxResults int) *Provider {
	if len(domains) == 0 {
		domains = DefaultDomains
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Provider{client: client, domains: domains, maxResults: maxResults}
}

// Search runs the query against a single engine domain. Results are
// deduplicated by URL, LinkedIn URLs sorted first, and capped at the
// provider's max. Blocked pages count as zero results.
func (p *Provider) Search(ctx context.Context, query, domain string) ([]model.SearchCandidate, error) {
	resp, err := p.client.Search(ctx, query, domain, serp.WithMaxResults(p.maxResults))
	if err != nil {
		return nil, err
	}
	if resp.Blocked {
		zap.L().Warn("search engine served a block page",
			zap.String("domain", domain), zap.String("query", query))
		return nil, nil
	}

	seen := make(map[string]struct{}, len(resp.Results))
	var linkedin, other []model.SearchCandidate
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}

		c := model.SearchCandidate{Title: r.Title, URL: r.URL, Snippet: r.Snippet}
		if IsLinkedInURL(r.URL) {
			linkedin = append(linkedin, c)
		} else {
			other = append(other, c)
		}
	}

	out := append(linkedin, other...)
	if len(out) > p.maxResults {
		out = out[:p.maxResults]
	}
	return out, nil
}

// MultiDomainSearch walks the domain list in order and returns the first
// domain's results that include a LinkedIn URL, together with the domain
// used. When no domain yields a LinkedIn URL it falls back to the first
// domain that returned anything at all. Per-domain failures are logged
// and treated as empty.
func (p *Provider) MultiDomainSearch(ctx context.Context, query string) ([]model.SearchCandidate, string) {
	var (
		fallback       []model.SearchCandidate
		fallbackDomain string
	)

	for _, domain := range p.domains {
		results, err := p.Search(ctx, query, domain)
		if err != nil {
			zap.L().Warn("search failed, trying next domain",
				zap.String("domain", domain), zap.Error(err))
			continue
		}
		if len(results) == 0 {
			continue
		}

		for _, r := range results {
			if IsLinkedInURL(r.URL) {
				zap.L().Debug("linkedin results found",
					zap.String("domain", domain), zap.Int("count", len(results)))
				return results, domain
			}
		}

		if fallback == nil {
			fallback = results
			fallbackDomain = domain
		}
	}

	return fallback, fallbackDomain
}
