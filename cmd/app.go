package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/batch"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/classify"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/lookup"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/match"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/nameresolve"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/ratelimit"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/scraper"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/search"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/store"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/anthropic"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/apify"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/rocketreach"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/serp"
)

// appEnv holds the wired application services. Fields are populated on
// demand by the init helpers; unneeded services stay nil.
type appEnv struct {
	store        store.Store
	orchestrator *lookup.Orchestrator
	scraper      *scraper.Coordinator
	tracker      *ratelimit.Tracker
}

func (e *appEnv) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("failed to close store", zap.Error(err))
		}
	}
}

// initStore opens the configured database backend and applies migrations.
func (e *appEnv) initStore(ctx context.Context) error {
	s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return err
	}
	e.store = s
	return nil
}

// initLookup wires the classifier, search cascade, RocketReach pool, and
// orchestrator.
func (e *appEnv) initLookup(ctx context.Context) error {
	if err := cfg.Validate("lookup"); err != nil {
		return err
	}
	if e.store == nil {
		if err := e.initStore(ctx); err != nil {
			return err
		}
	}

	claude := anthropic.NewClient(cfg.Anthropic.Key)
	serpClient := serp.NewClient(cfg.Serp.Key,
		serp.WithBaseURL(cfg.Serp.BaseURL),
		serp.WithTimeout(time.Duration(cfg.Serp.TimeoutSecs)*time.Second),
	)

	provider := search.NewProvider(serpClient, cfg.Search.Domains, cfg.Search.MaxResults)
	matcher := match.New(claude, cfg.Anthropic.HaikuModel)
	resolver := nameresolve.New(claude, cfg.Anthropic.HaikuModel)
	classifier := classify.New(cfg.Classifier.DomainsFile, cfg.Classifier.ProvidersFile)
	cascade := lookup.NewCascade(provider, matcher, resolver)

	var rocket lookup.EmailLookup
	accounts, err := rocketreach.LoadAccounts(cfg.RocketReach.AccountsFile)
	if err != nil {
		zap.L().Warn("rocketreach accounts unavailable, continuing without fallback",
			zap.String("file", cfg.RocketReach.AccountsFile),
			zap.Error(err))
	} else {
		pool, err := rocketreach.NewPool(rocketreach.NewClient(), accounts, rocketreach.PoolConfig{
			Cooldown:        time.Duration(cfg.RocketReach.CooldownSecs) * time.Second,
			MaxCallsPerHour: cfg.RocketReach.MaxCallsPerHour,
			Strategy:        rocketreach.Strategy(cfg.RocketReach.Strategy),
			HistoryFile:     cfg.RocketReach.HistoryFile,
		})
		if err != nil {
			zap.L().Warn("rocketreach pool unavailable, continuing without fallback", zap.Error(err))
		} else {
			rocket = pool
		}
	}

	e.orchestrator = lookup.NewOrchestrator(classifier, cascade, rocket, e.store)
	return nil
}

// initScraper wires the Apify runner, cookie store, and rate-limit tracker.
func (e *appEnv) initScraper(ctx context.Context) error {
	if err := cfg.Validate("scrape"); err != nil {
		return err
	}
	if e.store == nil {
		if err := e.initStore(ctx); err != nil {
			return err
		}
	}

	var usage ratelimit.UsageStore
	if pg, ok := e.store.(*store.PostgresStore); ok {
		usage = store.NewPostgresUsageStore(pg.Pool())
	} else {
		usage = ratelimit.NewFileStore(cfg.Scraper.UsageFile)
	}
	e.tracker = ratelimit.NewTracker(usage, ratelimit.DefaultPools, cfg.Scraper.DailyLimit)

	runner := apify.NewClient(cfg.Apify.Key, apify.WithBaseURL(cfg.Apify.BaseURL))
	cookies := scraper.NewCookieStore(cfg.Scraper.CookieDir)

	e.scraper = scraper.New(runner, e.tracker, cookies, e.store, scraper.Config{
		ActorID:  cfg.Apify.ActorID,
		Wait:     time.Duration(cfg.Apify.WaitSecs) * time.Second,
		BulkWait: time.Duration(cfg.Apify.BulkWaitSecs) * time.Second,
		UseProxy: cfg.Apify.UseProxy,
	})
	return nil
}

// newBatchProcessor builds the backlog processor over the wired store and
// orchestrator.
func (e *appEnv) newBatchProcessor(maxSubscribers int) *batch.Processor {
	return batch.New(e.store, e.orchestrator, batch.Config{
		BatchSize:      cfg.Batch.PollSize,
		Concurrency:    cfg.Batch.MaxConcurrent,
		RatePerSecond:  cfg.Batch.RatePerSecond,
		MaxSubscribers: maxSubscribers,
	})
}
