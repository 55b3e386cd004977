package lookup

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/classify"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

type stubRocket struct {
	url   string
	err   error
	calls []string
}

func (r *stubRocket) Lookup(_ context.Context, email string) (string, error) {
	r.calls = append(r.calls, email)
	return r.url, r.err
}

type stubCache struct {
	urls   map[string]string
	getErr error
	setErr error
	sets   map[string]string
}

func newStubCache() *stubCache {
	return &stubCache{urls: map[string]string{}, sets: map[string]string{}}
}

func (c *stubCache) GetLinkedInURL(_ context.Context, email string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.urls[email], nil
}

func (c *stubCache) SetLinkedInURL(_ context.Context, email, url string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.sets[email] = url
	return nil
}

// steppingClock returns a now func that advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		t := base.Add(time.Duration(calls) * step)
		calls++
		return t
	}
}

func newTestOrchestrator(searcher Searcher, rocket EmailLookup, cache Cache) *Orchestrator {
	var matcher Matcher = &stubMatcher{}
	if searcher == nil {
		searcher = &stubSearcher{}
	}
	o := NewOrchestrator(classify.New("", ""), NewCascade(searcher, matcher, nil), rocket, cache)
	o.now = steppingClock(25 * time.Millisecond)
	return o
}

func TestLookupInvalidEmail(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "not-an-email"})

	assert.False(t, res.Success)
	assert.Equal(t, model.MethodNone, res.MethodUsed)
	assert.Contains(t, res.Error, "invalid email format")
	assert.Positive(t, res.ElapsedMs)
}

func TestLookupCacheHit(t *testing.T) {
	cache := newStubCache()
	cache.urls["jane@acme.com"] = "https://www.linkedin.com/in/jane-smith"
	searcher := &stubSearcher{}
	rocket := &stubRocket{}
	o := newTestOrchestrator(searcher, rocket, cache)

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "Jane@Acme.com"})

	assert.True(t, res.Success)
	assert.Equal(t, "https://www.linkedin.com/in/jane-smith", res.LinkedInURL)
	assert.Equal(t, model.MethodDatabaseCache, res.MethodUsed)
	assert.True(t, res.CacheHit)
	assert.False(t, res.CacheUpdated)
	// The hit returns before classification, so the domain stays unknown.
	assert.Equal(t, model.DomainUnknown, res.DomainType)
	assert.Empty(t, searcher.queries)
	assert.Empty(t, rocket.calls)
}

func TestLookupWorkEmailViaSearch(t *testing.T) {
	searcher := &stubSearcher{
		results: map[string][]model.SearchCandidate{
			"jane@acme.com + LinkedIn": {candidate("https://www.linkedin.com/in/jane-smith")},
		},
		domain: "google.com",
	}
	cache := newStubCache()
	rocket := &stubRocket{}
	matcher := &stubMatcher{url: "https://www.linkedin.com/in/jane-smith"}
	o := NewOrchestrator(classify.New("", ""), NewCascade(searcher, matcher, nil), rocket, cache)
	o.now = steppingClock(time.Millisecond)

	res := o.Lookup(context.Background(), model.LookupRequest{
		Email: "jane@acme.com", FirstName: "Jane", LastName: "Smith",
	})

	assert.True(t, res.Success)
	assert.Equal(t, model.MethodGoogleSearch, res.MethodUsed)
	assert.Equal(t, model.DomainWork, res.DomainType)
	assert.Equal(t, "google.com", res.SearchDomainUsed)
	assert.True(t, res.CacheUpdated)
	assert.Equal(t, "https://www.linkedin.com/in/jane-smith", cache.sets["jane@acme.com"])
	assert.Empty(t, rocket.calls)
}

func TestLookupWorkEmailFallsBackToRocketReach(t *testing.T) {
	rocket := &stubRocket{url: "https://www.linkedin.com/in/jane-smith"}
	o := newTestOrchestrator(&stubSearcher{}, rocket, newStubCache())

	res := o.Lookup(context.Background(), model.LookupRequest{
		Email: "jane@acme.com", FirstName: "Jane", LastName: "Smith",
	})

	assert.True(t, res.Success)
	assert.Equal(t, model.MethodRocketReachFallback, res.MethodUsed)
	assert.Equal(t, []string{"jane@acme.com"}, rocket.calls)
}

func TestLookupPersonalEmailUsesRocketReachFirst(t *testing.T) {
	searcher := &stubSearcher{}
	rocket := &stubRocket{url: "https://www.linkedin.com/in/jane-smith"}
	o := newTestOrchestrator(searcher, rocket, newStubCache())

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "jane@gmail.com"})

	assert.True(t, res.Success)
	assert.Equal(t, model.MethodRocketReachPrimary, res.MethodUsed)
	assert.Equal(t, model.DomainPersonal, res.DomainType)
	assert.Empty(t, searcher.queries)
}

func TestLookupRocketReachErrorIsReported(t *testing.T) {
	rocket := &stubRocket{err: eris.New("all accounts exhausted")}
	o := newTestOrchestrator(nil, rocket, newStubCache())

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "jane@gmail.com"})

	assert.False(t, res.Success)
	assert.Equal(t, model.MethodNone, res.MethodUsed)
	assert.Contains(t, res.Error, "rocketreach lookup failed")
}

func TestLookupExhaustionIsNotAnError(t *testing.T) {
	o := newTestOrchestrator(&stubSearcher{}, &stubRocket{}, newStubCache())

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "jane@acme.com"})

	assert.False(t, res.Success)
	assert.Equal(t, model.MethodNone, res.MethodUsed)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.LinkedInURL)
}

func TestLookupNilProvidersDegradesGracefully(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "jane@gmail.com"})

	assert.False(t, res.Success)
	assert.Equal(t, model.MethodNone, res.MethodUsed)
	assert.Empty(t, res.Error)
}

func TestLookupCacheWriteFailureDoesNotFailLookup(t *testing.T) {
	cache := newStubCache()
	cache.setErr = eris.New("subscriber not found: jane@gmail.com")
	rocket := &stubRocket{url: "https://www.linkedin.com/in/jane-smith"}
	o := newTestOrchestrator(nil, rocket, cache)

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "jane@gmail.com"})

	assert.True(t, res.Success)
	assert.False(t, res.CacheUpdated)
}

func TestLookupCacheReadFailureFallsThrough(t *testing.T) {
	cache := newStubCache()
	cache.getErr = eris.New("connection refused")
	rocket := &stubRocket{url: "https://www.linkedin.com/in/jane-smith"}
	o := newTestOrchestrator(nil, rocket, cache)

	res := o.Lookup(context.Background(), model.LookupRequest{Email: "jane@gmail.com"})

	require.True(t, res.Success)
	assert.False(t, res.CacheHit)
	assert.Equal(t, model.MethodRocketReachPrimary, res.MethodUsed)
}
