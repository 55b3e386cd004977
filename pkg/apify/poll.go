package apify

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial = 2 * time.Second
	defaultPollCap     = 15 * time.Second
	defaultPollTimeout = 5 * time.Minute
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	timeout time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		timeout: defaultPollTimeout,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout overrides the default timeout (applied only if the parent
// context has no deadline).
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// PollRun polls GetRun until the actor run reaches a terminal status or the
// context expires. Uses exponential backoff: 2s -> 4s -> 8s -> 15s (capped).
// The terminal run is returned whatever its status; callers decide how to
// treat FAILED or TIMED-OUT runs.
func PollRun(ctx context.Context, client Client, runID string, opts ...PollOption) (*Run, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.initial
	for {
		run, err := client.GetRun(ctx, runID)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("apify: poll run %s", runID))
		}
		if run.Terminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("apify: poll run %s timed out", runID))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}
