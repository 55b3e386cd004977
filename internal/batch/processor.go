// Package batch drains the pending-subscriber queue, resolving each
// subscriber's LinkedIn profile through the lookup orchestrator at a
// bounded concurrency and request rate.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

const (
	defaultBatchSize   = 50
	defaultConcurrency = 5
	defaultRate        = 1.0
)

// Resolver resolves one lookup request. Failures are reported inside the
// result, never as an error.
type Resolver interface {
	Lookup(ctx context.Context, req model.LookupRequest) model.LookupResult
}

// SubscriberQueue is the slice of the store the processor needs.
type SubscriberQueue interface {
	ListPendingSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error)
	MarkLookedUp(ctx context.Context, subscriberID int64, lookedUp bool) error
}

// Config tunes a batch run. Zero values pick conservative defaults.
type Config struct {
	// BatchSize is how many subscribers are fetched per queue page.
	BatchSize int
	// Concurrency bounds in-flight lookups.
	Concurrency int
	// RatePerSecond paces lookups across all workers.
	RatePerSecond float64
	// MaxSubscribers stops the run after this many attempts. Zero means
	// run until the queue drains.
	MaxSubscribers int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = defaultRate
	}
	return c
}

// Summary reports what a batch run did.
type Summary struct {
	Processed int                  `json:"processed"`
	Resolved  int                  `json:"resolved"`
	Failed    int                  `json:"failed"`
	ByMethod  map[model.Method]int `json:"by_method"`
	Elapsed   time.Duration        `json:"elapsed"`
}

// Processor runs lookups for every pending subscriber in the queue.
type Processor struct {
	queue    SubscriberQueue
	resolver Resolver
	cfg      Config
	limiter  *rate.Limiter
}

// New creates a Processor.
func New(queue SubscriberQueue, resolver Resolver, cfg Config) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		queue:    queue,
		resolver: resolver,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Concurrency),
	}
}

// Run processes the queue page by page until it drains, the configured
// subscriber budget runs out, or the context is cancelled. Every attempted
// subscriber is marked looked-up so repeated runs never retry the same row.
// A page where every mark fails aborts the run, since those rows would be
// refetched on the next pass.
func (p *Processor) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{ByMethod: map[model.Method]int{}}
	var mu sync.Mutex

	for {
		limit := p.cfg.BatchSize
		if p.cfg.MaxSubscribers > 0 {
			if remaining := p.cfg.MaxSubscribers - summary.Processed; remaining < limit {
				limit = remaining
			}
		}
		if limit <= 0 {
			break
		}

		subscribers, err := p.queue.ListPendingSubscribers(ctx, limit, 0)
		if err != nil {
			summary.Elapsed = time.Since(start)
			return summary, eris.Wrap(err, "batch: list pending subscribers")
		}
		if len(subscribers) == 0 {
			break
		}

		zap.L().Info("processing subscriber batch",
			zap.Int("size", len(subscribers)),
			zap.Int("processed_so_far", summary.Processed))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Concurrency)

		var marked int
		for _, sub := range subscribers {
			g.Go(func() error {
				if err := p.limiter.Wait(gctx); err != nil {
					return err
				}

				res := p.resolver.Lookup(gctx, sub.LookupRequest())

				if err := p.queue.MarkLookedUp(ctx, sub.ID, true); err != nil {
					zap.L().Warn("failed to mark subscriber looked up",
						zap.Int64("subscriber_id", sub.ID),
						zap.Error(err))
				} else {
					mu.Lock()
					marked++
					mu.Unlock()
				}

				mu.Lock()
				summary.Processed++
				summary.ByMethod[res.MethodUsed]++
				if res.Success {
					summary.Resolved++
				} else {
					summary.Failed++
				}
				mu.Unlock()

				zap.L().Info("subscriber processed",
					zap.Int64("subscriber_id", sub.ID),
					zap.String("email", res.Email),
					zap.Bool("success", res.Success),
					zap.String("method", string(res.MethodUsed)))
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, eris.Wrap(err, "batch: run")
		}

		// If no row in the page could be marked, the next fetch would
		// return the same rows and the run would never drain. Stop.
		if marked == 0 {
			summary.Elapsed = time.Since(start)
			return summary, eris.New("batch: no subscriber in page could be marked looked up")
		}
	}

	summary.Elapsed = time.Since(start)
	zap.L().Info("batch run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("resolved", summary.Resolved),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}
