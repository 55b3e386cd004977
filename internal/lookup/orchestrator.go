package lookup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/classify"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

// EmailLookup is the alternate provider path (the RocketReach account pool).
type EmailLookup interface {
	Lookup(ctx context.Context, email string) (string, error)
}

// Cache is the subscriber-backed URL cache consulted before any external
// call and updated after a successful lookup.
type Cache interface {
	GetLinkedInURL(ctx context.Context, email string) (string, error)
	SetLinkedInURL(ctx context.Context, email, linkedinURL string) error
}

// Orchestrator routes a lookup through the cheapest path that can answer
// it: cache, then search cascade or RocketReach depending on whether the
// email domain looks like an employer's.
type Orchestrator struct {
	classifier *classify.Classifier
	cascade    *Cascade
	rocket     EmailLookup
	cache      Cache

	now func() time.Time
}

// NewOrchestrator creates an Orchestrator. rocket and cache may be nil when
// the deployment has no RocketReach accounts or no database.
func NewOrchestrator(classifier *classify.Classifier, cascade *Cascade, rocket EmailLookup, cache Cache) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		cascade:    cascade,
		rocket:     rocket,
		cache:      cache,
		now:        time.Now,
	}
}

// Lookup resolves one email to a profile URL. Failures are reported inside
// the result; Lookup never returns an error.
func (o *Orchestrator) Lookup(ctx context.Context, req model.LookupRequest) model.LookupResult {
	start := o.now()
	req = req.Sanitize()
	res := model.LookupResult{
		Email:      req.Email,
		MethodUsed: model.MethodNone,
		DomainType: model.DomainUnknown,
	}
	defer func() {
		zap.L().Info("lookup completed",
			zap.String("email", res.Email),
			zap.Bool("success", res.Success),
			zap.String("method", string(res.MethodUsed)),
			zap.Int64("elapsed_ms", res.ElapsedMs))
	}()

	if !model.ValidEmail(req.Email) {
		res.Error = fmt.Sprintf("invalid email format: %s", req.Email)
		res.ElapsedMs = o.now().Sub(start).Milliseconds()
		return res
	}

	// A cache hit short-circuits everything, classification included.
	if url := o.cachedURL(ctx, req.Email); url != "" {
		res.LinkedInURL = url
		res.Success = true
		res.MethodUsed = model.MethodDatabaseCache
		res.CacheHit = true
		res.ElapsedMs = o.now().Sub(start).Milliseconds()
		return res
	}

	domainType, _ := o.classifier.Classify(req.Email)
	res.DomainType = domainType
	zap.L().Info("email classified",
		zap.String("email", req.Email),
		zap.String("domain_type", string(domainType)))

	switch domainType {
	case model.DomainWork:
		url, domain := o.cascade.Find(ctx, req)
		if url != "" {
			res.LinkedInURL = url
			res.MethodUsed = model.MethodGoogleSearch
			res.SearchDomainUsed = domain
			break
		}
		url, err := o.rocketLookup(ctx, req.Email)
		if err != nil {
			res.Error = fmt.Sprintf("rocketreach fallback failed: %v", err)
			break
		}
		if url != "" {
			res.LinkedInURL = url
			res.MethodUsed = model.MethodRocketReachFallback
		}

	default:
		url, err := o.rocketLookup(ctx, req.Email)
		if err != nil {
			res.Error = fmt.Sprintf("rocketreach lookup failed: %v", err)
			break
		}
		if url != "" {
			res.LinkedInURL = url
			res.MethodUsed = model.MethodRocketReachPrimary
		}
	}

	res.Success = res.LinkedInURL != ""
	if res.Success {
		res.CacheUpdated = o.updateCache(ctx, req.Email, res.LinkedInURL)
	}
	res.ElapsedMs = o.now().Sub(start).Milliseconds()
	return res
}

func (o *Orchestrator) cachedURL(ctx context.Context, email string) string {
	if o.cache == nil {
		return ""
	}
	url, err := o.cache.GetLinkedInURL(ctx, email)
	if err != nil {
		zap.L().Warn("cache lookup failed", zap.String("email", email), zap.Error(err))
		return ""
	}
	return url
}

func (o *Orchestrator) updateCache(ctx context.Context, email, url string) bool {
	if o.cache == nil {
		return false
	}
	if err := o.cache.SetLinkedInURL(ctx, email, url); err != nil {
		// Not every looked-up email belongs to a subscriber row.
		zap.L().Info("cache update skipped",
			zap.String("email", email),
			zap.Error(err))
		return false
	}
	return true
}

func (o *Orchestrator) rocketLookup(ctx context.Context, email string) (string, error) {
	if o.rocket == nil {
		return "", nil
	}
	return o.rocket.Lookup(ctx, email)
}
