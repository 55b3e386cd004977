// Package scraper coordinates LinkedIn profile scraping: rate-limit checks
// against the cookie pools, dispatching the Apify actor, and mapping dataset
// records back to the requested URLs.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/ratelimit"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/apify"
)

// ProfileSaver persists scraped profile records. Persistence is best effort;
// a failed save never fails the scrape.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, linkedinURL string, data json.RawMessage) error
	SaveProfiles(ctx context.Context, profiles map[string]json.RawMessage) error
}

// Config holds the actor and timing settings for the coordinator.
type Config struct {
	ActorID  string
	Wait     time.Duration
	BulkWait time.Duration
	UseProxy bool
}

// Coordinator runs profile scrapes through the Apify actor while charging
// the cookie pool budget only for profiles actually scraped.
type Coordinator struct {
	runner   apify.Client
	limiter  *ratelimit.Tracker
	cookies  *CookieStore
	profiles ProfileSaver
	cfg      Config

	now func() time.Time
}

// New creates a Coordinator. profiles may be nil when no persistence is
// configured.
func New(runner apify.Client, limiter *ratelimit.Tracker, cookies *CookieStore, profiles ProfileSaver, cfg Config) *Coordinator {
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Minute
	}
	if cfg.BulkWait <= 0 {
		cfg.BulkWait = 15 * time.Minute
	}
	return &Coordinator{
		runner:   runner,
		limiter:  limiter,
		cookies:  cookies,
		profiles: profiles,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Scrape fetches a single LinkedIn profile using the named cookie pool.
// Errors are reported inside the result; the pool is charged only when the
// actor run succeeds and returns data.
func (c *Coordinator) Scrape(ctx context.Context, linkedinURL, pool string) model.ScrapeResult {
	start := c.now()
	res := model.ScrapeResult{
		LinkedInURL: linkedinURL,
		RateLimit:   model.RateLimitInfo{PoolUsed: pool},
	}
	defer func() { res.ElapsedMs = c.now().Sub(start).Milliseconds() }()

	if !model.ValidLinkedInProfileURL(linkedinURL) {
		res.Error = fmt.Sprintf("invalid LinkedIn profile URL: %s", linkedinURL)
		return res
	}

	allowed, remaining, err := c.limiter.Check(ctx, pool, 1)
	if err != nil {
		res.Error = fmt.Sprintf("rate limit check failed: %v", err)
		return res
	}
	res.RateLimit.Remaining = remaining
	if !allowed {
		return c.denyScrape(ctx, &res, pool, remaining, 1)
	}
	res.RateLimit.IsAllowed = true

	cookie, err := c.cookies.Load(pool)
	if err != nil {
		zap.L().Error("cookie bundle load failed", zap.String("pool", pool), zap.Error(err))
		res.Error = fmt.Sprintf("failed to load %q cookies", pool)
		return res
	}

	run, items, err := c.runActor(ctx, []string{linkedinURL}, cookie, c.cfg.Wait)
	if err != nil {
		if apify.IsRateLimited(err) {
			c.exhaustPool(ctx, pool)
		}
		res.Error = fmt.Sprintf("scraping error: %v", err)
		return res
	}
	if run.Status != apify.StatusSucceeded {
		res.Error = runFailure(run)
		return res
	}
	if len(items) == 0 {
		res.Error = "no profile data found"
		return res
	}

	res.RateLimit.Remaining = c.charge(ctx, pool, 1, remaining)
	res.ProfileData = items[0]
	res.Success = true
	c.saveProfile(ctx, linkedinURL, items[0])
	return res
}

// ScrapeBulk fetches multiple profiles in a single actor run. Syntactically
// invalid URLs are separated up front and never count against the pool.
func (c *Coordinator) ScrapeBulk(ctx context.Context, urls []string, pool string) model.BulkScrapeResult {
	start := c.now()
	res := model.BulkScrapeResult{
		InvalidURLs: []string{},
		Results:     []model.BulkScrapeItem{},
		RateLimit:   model.RateLimitInfo{PoolUsed: pool},
	}
	defer func() { res.ElapsedMs = c.now().Sub(start).Milliseconds() }()

	var valid []string
	for _, u := range urls {
		if model.ValidLinkedInProfileURL(u) {
			valid = append(valid, u)
		} else {
			res.InvalidURLs = append(res.InvalidURLs, u)
		}
	}
	res.ValidCount = len(valid)
	res.InvalidCount = len(res.InvalidURLs)
	if len(valid) == 0 {
		res.Error = "no valid LinkedIn profile URLs provided"
		return res
	}

	allowed, remaining, err := c.limiter.Check(ctx, pool, len(valid))
	if err != nil {
		res.Error = fmt.Sprintf("rate limit check failed: %v", err)
		return res
	}
	res.RateLimit.Remaining = remaining
	if !allowed {
		others, oerr := c.limiter.OtherPoolsRemaining(ctx, pool)
		if oerr != nil {
			zap.L().Warn("other pools lookup failed", zap.Error(oerr))
		}
		res.Error = fmt.Sprintf(
			"daily rate limit would be exceeded for %q pool: requested %d, remaining %d",
			pool, len(valid), remaining)
		res.OtherPoolsRemaining = others
		res.ResetTime = ratelimit.ResetTime
		return res
	}
	res.RateLimit.IsAllowed = true

	cookie, err := c.cookies.Load(pool)
	if err != nil {
		zap.L().Error("cookie bundle load failed", zap.String("pool", pool), zap.Error(err))
		res.Error = fmt.Sprintf("failed to load %q cookies", pool)
		return res
	}

	run, items, err := c.runActor(ctx, valid, cookie, c.cfg.BulkWait)
	if err != nil {
		if apify.IsRateLimited(err) {
			c.exhaustPool(ctx, pool)
		}
		res.Error = fmt.Sprintf("bulk scraping error: %v", err)
		return res
	}
	if run.Status != apify.StatusSucceeded {
		res.Error = runFailure(run)
		return res
	}
	if len(items) == 0 {
		res.Error = "no profile data found"
		return res
	}

	byURL := indexByURL(items)
	scraped := make(map[string]json.RawMessage, len(valid))
	for _, u := range valid {
		item, ok := byURL[u]
		if !ok {
			res.Results = append(res.Results, model.BulkScrapeItem{
				LinkedInURL: u,
				Error:       "profile not found in results",
			})
			continue
		}
		scraped[u] = item
		res.Results = append(res.Results, model.BulkScrapeItem{
			LinkedInURL: u,
			Success:     true,
			ProfileData: item,
		})
	}
	c.saveProfiles(ctx, scraped)

	res.RateLimit.Remaining = c.charge(ctx, pool, len(scraped), remaining)
	res.Success = true
	return res
}

func (c *Coordinator) denyScrape(ctx context.Context, res *model.ScrapeResult, pool string, remaining, requested int) model.ScrapeResult {
	others, err := c.limiter.OtherPoolsRemaining(ctx, pool)
	if err != nil {
		zap.L().Warn("other pools lookup failed", zap.Error(err))
	}
	res.Error = fmt.Sprintf("daily rate limit exceeded for %q pool: %d remaining", pool, remaining)
	res.OtherPoolsRemaining = others
	res.ResetTime = ratelimit.ResetTime
	zap.L().Warn("scrape denied by rate limit",
		zap.String("pool", pool),
		zap.Int("requested", requested),
		zap.Int("remaining", remaining))
	return *res
}

// runActor starts a run, polls it to a terminal status, and fetches the
// dataset when the run succeeded.
func (c *Coordinator) runActor(ctx context.Context, urls []string, cookie json.RawMessage, wait time.Duration) (*apify.Run, []json.RawMessage, error) {
	input := apify.RunInput{URLs: urls, Cookie: cookie}
	if c.cfg.UseProxy {
		input.Proxy = map[string]any{"useApifyProxy": true}
	}

	run, err := c.runner.StartRun(ctx, c.cfg.ActorID, input)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("actor run started",
		zap.String("run_id", run.ID),
		zap.Int("urls", len(urls)))

	run, err = apify.PollRun(ctx, c.runner, run.ID, apify.WithPollTimeout(wait))
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("actor run finished",
		zap.String("run_id", run.ID),
		zap.String("status", run.Status))

	if run.Status != apify.StatusSucceeded {
		return run, nil, nil
	}
	items, err := c.runner.DatasetItems(ctx, run.DefaultDatasetID)
	if err != nil {
		return nil, nil, err
	}
	return run, items, nil
}

// charge increments the pool after a confirmed scrape. An increment failure
// is logged and the remaining budget estimated locally so the caller still
// gets a usable number.
func (c *Coordinator) charge(ctx context.Context, pool string, n, before int) int {
	remaining, err := c.limiter.Increment(ctx, pool, n)
	if err != nil {
		zap.L().Warn("usage increment failed",
			zap.String("pool", pool),
			zap.Int("count", n),
			zap.Error(err))
		remaining = before - n
		if remaining < 0 {
			remaining = 0
		}
	}
	return remaining
}

func (c *Coordinator) exhaustPool(ctx context.Context, pool string) {
	zap.L().Warn("runner rate limited, exhausting pool for the day", zap.String("pool", pool))
	if err := c.limiter.ForceExhaust(ctx, pool); err != nil {
		zap.L().Error("force exhaust failed", zap.String("pool", pool), zap.Error(err))
	}
}

func (c *Coordinator) saveProfile(ctx context.Context, linkedinURL string, data json.RawMessage) {
	if c.profiles == nil {
		return
	}
	if err := c.profiles.SaveProfile(ctx, linkedinURL, data); err != nil {
		zap.L().Warn("profile save failed",
			zap.String("linkedin_url", linkedinURL),
			zap.Error(err))
		return
	}
	zap.L().Info("profile stored", zap.String("linkedin_url", linkedinURL))
}

func (c *Coordinator) saveProfiles(ctx context.Context, profiles map[string]json.RawMessage) {
	if c.profiles == nil || len(profiles) == 0 {
		return
	}
	if err := c.profiles.SaveProfiles(ctx, profiles); err != nil {
		zap.L().Warn("bulk profile save failed",
			zap.Int("count", len(profiles)),
			zap.Error(err))
		return
	}
	zap.L().Info("profiles stored", zap.Int("count", len(profiles)))
}

func runFailure(run *apify.Run) string {
	msg := fmt.Sprintf("actor run failed with status: %s", run.Status)
	if run.ErrorMessage != "" {
		msg += ": " + run.ErrorMessage
	}
	return msg
}

// indexByURL keys dataset records by their "url" field so results can be
// mapped back to the requested URLs.
func indexByURL(items []json.RawMessage) map[string]json.RawMessage {
	byURL := make(map[string]json.RawMessage, len(items))
	for _, item := range items {
		var key struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(item, &key); err != nil || key.URL == "" {
			continue
		}
		byURL[key.URL] = item
	}
	return byURL
}
