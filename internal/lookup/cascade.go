// Package lookup resolves an email address to a LinkedIn profile URL. The
// Cascade drives the search-engine path; the Orchestrator routes between
// the cache, the cascade, and the RocketReach pool based on the email's
// domain type.
package lookup

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/search"
)

// Searcher runs one query across the configured search domains.
type Searcher interface {
	MultiDomainSearch(ctx context.Context, query string) ([]model.SearchCandidate, string)
}

// Matcher picks the best profile URL from a candidate list, or "" when none
// of the candidates convincingly belong to the person.
type Matcher interface {
	BestMatch(ctx context.Context, person model.LookupRequest, candidates []model.SearchCandidate) string
}

// NameResolver derives a display name from an email address.
type NameResolver interface {
	Resolve(ctx context.Context, email, givenName string) (string, string)
}

// Cascade finds a profile through the search engines: an email-only query
// first, then name-based query variations.
type Cascade struct {
	search   Searcher
	matcher  Matcher
	resolver NameResolver
}

// NewCascade creates a Cascade. resolver may be nil, in which case query
// variations fall back to the email username.
func NewCascade(searcher Searcher, matcher Matcher, resolver NameResolver) *Cascade {
	return &Cascade{search: searcher, matcher: matcher, resolver: resolver}
}

// Find returns the matched profile URL and the search domain that produced
// it, or ("", "") when every phase comes up empty. Exhaustion is not an
// error.
func (c *Cascade) Find(ctx context.Context, req model.LookupRequest) (string, string) {
	req = c.resolveNames(ctx, req)

	// Phase 1: the raw email is often enough to surface the profile.
	emailQuery := req.Email + " + LinkedIn"
	if url, domain := c.tryQuery(ctx, req, emailQuery); url != "" {
		zap.L().Info("profile found with email-only query",
			zap.String("email", req.Email),
			zap.String("domain", domain))
		return url, domain
	}

	// Phase 2: name-based query variations.
	for _, query := range search.BuildQueryVariations(req) {
		if query == emailQuery {
			continue
		}
		if url, domain := c.tryQuery(ctx, req, query); url != "" {
			zap.L().Info("profile found with query variation",
				zap.String("email", req.Email),
				zap.String("query", query),
				zap.String("domain", domain))
			return url, domain
		}
	}

	zap.L().Info("no profile found across all queries", zap.String("email", req.Email))
	return "", ""
}

func (c *Cascade) tryQuery(ctx context.Context, req model.LookupRequest, query string) (string, string) {
	candidates, domain := c.search.MultiDomainSearch(ctx, query)

	var profiles []model.SearchCandidate
	for _, cand := range candidates {
		if search.IsLinkedInURL(cand.URL) {
			profiles = append(profiles, cand)
		}
	}
	if len(profiles) == 0 {
		return "", ""
	}

	url := c.matcher.BestMatch(ctx, req, profiles)
	if url == "" {
		return "", ""
	}
	return url, domain
}

// resolveNames fills in missing name fields. Provided first and last names
// win; otherwise the resolver derives a name from the email, and as a last
// resort the email username stands in for a first name.
func (c *Cascade) resolveNames(ctx context.Context, req model.LookupRequest) model.LookupRequest {
	if req.FirstName != "" && req.LastName != "" {
		return req
	}

	if c.resolver != nil {
		name, method := c.resolver.Resolve(ctx, req.Email, req.FirstName)
		if name != "" {
			parts := strings.Fields(name)
			if len(parts) >= 2 {
				req.FirstName = parts[0]
				req.LastName = parts[len(parts)-1]
			} else if req.FirstName == "" && len(parts) == 1 {
				req.FirstName = parts[0]
			}
			zap.L().Debug("name resolved for search",
				zap.String("email", req.Email),
				zap.String("name", name),
				zap.String("method", method))
		}
	}

	if req.FirstName == "" && req.LastName == "" {
		if at := strings.Index(req.Email, "@"); at > 0 {
			req.FirstName = req.Email[:at]
		}
	}
	return req
}
