// Package ratelimit enforces per-cookie-pool daily scrape budgets. Usage
// is persisted through a UsageStore so limits survive restarts and can be
// shared across processes.
package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ResetTime is when budgets reset, reported to callers in rate-limit
// denials.
const ResetTime = "00:00:00 UTC"

// DefaultPools is the standard cookie pool rotation.
var DefaultPools = []string{"main", "backup", "personal"}

// PoolUsage is one pool's consumption for a given day.
type PoolUsage struct {
	Used        int       `json:"used"`
	LastUpdated time.Time `json:"last_updated"`
}

// PoolStats is the reporting view of one pool.
type PoolStats struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	UsedPercent float64   `json:"used_percent"`
	LastUpdated time.Time `json:"last_updated"`
}

// UsageStore persists per-day, per-pool usage counters. Implementations
// must treat an unseen (date, pool) pair as zero usage, which is what
// makes day rollover implicit: a new date reads as a fresh budget.
type UsageStore interface {
	// Usage returns the recorded usage for every pool on the given date.
	Usage(ctx context.Context, date string) (map[string]PoolUsage, error)
	// Increment atomically adds n to the pool's counter if the result
	// stays within limit. It returns the counter after the attempt and
	// whether the increment was applied.
	Increment(ctx context.Context, date, pool string, n, limit int) (int, bool, error)
	// SetUsed overwrites the pool's counter.
	SetUsed(ctx context.Context, date, pool string, used int) error
}

// Tracker answers budget questions for a fixed set of pools sharing one
// daily limit.
type Tracker struct {
	store UsageStore
	pools map[string]struct{}
	order []string
	limit int

	now func() time.Time
}

// NewTracker creates a Tracker. Empty pools falls back to DefaultPools.
func NewTracker(store UsageStore, pools []string, limit int) *Tracker {
	if len(pools) == 0 {
		pools = DefaultPools
	}
	set := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		set[p] = struct{}{}
	}
	return &Tracker{
		store: store,
		pools: set,
		order: pools,
		limit: limit,
		now:   time.Now,
	}
}

// today is snapshotted once per public operation, so a call that starts
// before midnight is accounted against the day it started in.
func (t *Tracker) today() string {
	return t.now().UTC().Format("2006-01-02")
}

// Check reports whether the pool can absorb n more scrapes. It never
// mutates state. Unknown pools are always denied.
func (t *Tracker) Check(ctx context.Context, pool string, n int) (bool, int, error) {
	if _, ok := t.pools[pool]; !ok {
		return false, 0, nil
	}

	usage, err := t.store.Usage(ctx, t.today())
	if err != nil {
		return false, 0, eris.Wrap(err, "ratelimit: read usage")
	}

	remaining := t.limit - usage[pool].Used
	if remaining < 0 {
		remaining = 0
	}
	return n <= remaining, remaining, nil
}

// Increment charges n scrapes to the pool and returns the remaining
// budget. Callers invoke it only after confirmed success. When a
// concurrent writer has consumed the budget first, the counter is clamped
// to the limit.
func (t *Tracker) Increment(ctx context.Context, pool string, n int) (int, error) {
	if _, ok := t.pools[pool]; !ok {
		return 0, eris.Errorf("ratelimit: unknown pool %q", pool)
	}

	date := t.today()
	used, applied, err := t.store.Increment(ctx, date, pool, n, t.limit)
	if err != nil {
		return 0, eris.Wrap(err, "ratelimit: increment usage")
	}
	if !applied {
		zap.L().Warn("pool budget raced past the limit, clamping",
			zap.String("pool", pool), zap.Int("used", used))
		if err := t.store.SetUsed(ctx, date, pool, t.limit); err != nil {
			return 0, eris.Wrap(err, "ratelimit: clamp usage")
		}
		return 0, nil
	}

	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ForceExhaust marks the pool as spent for the rest of the day. Used when
// the upstream runner answers 429 regardless of our own bookkeeping.
func (t *Tracker) ForceExhaust(ctx context.Context, pool string) error {
	if _, ok := t.pools[pool]; !ok {
		return eris.Errorf("ratelimit: unknown pool %q", pool)
	}
	if err := t.store.SetUsed(ctx, t.today(), pool, t.limit); err != nil {
		return eris.Wrap(err, "ratelimit: force exhaust")
	}
	zap.L().Warn("pool forcibly exhausted for the day", zap.String("pool", pool))
	return nil
}

// Stats returns per-pool usage summaries for all pools.
func (t *Tracker) Stats(ctx context.Context) (map[string]PoolStats, error) {
	usage, err := t.store.Usage(ctx, t.today())
	if err != nil {
		return nil, eris.Wrap(err, "ratelimit: read usage")
	}

	out := make(map[string]PoolStats, len(t.order))
	for _, pool := range t.order {
		u := usage[pool]
		remaining := t.limit - u.Used
		if remaining < 0 {
			remaining = 0
		}
		var pct float64
		if t.limit > 0 {
			pct = float64(u.Used) / float64(t.limit) * 100
		}
		out[pool] = PoolStats{
			Used:        u.Used,
			Limit:       t.limit,
			Remaining:   remaining,
			UsedPercent: pct,
			LastUpdated: u.LastUpdated,
		}
	}
	return out, nil
}

// OtherPoolsRemaining reports the remaining budget of every pool except
// the excluded one.
func (t *Tracker) OtherPoolsRemaining(ctx context.Context, exclude string) (map[string]int, error) {
	stats, err := t.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for pool, s := range stats {
		if pool == exclude {
			continue
		}
		out[pool] = s.Remaining
	}
	return out, nil
}

// Pools returns the configured pool names in order.
func (t *Tracker) Pools() []string {
	return append([]string(nil), t.order...)
}

// Limit returns the shared daily limit.
func (t *Tracker) Limit() int {
	return t.limit
}
