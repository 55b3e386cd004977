package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/store"
)

type stubQueue struct {
	mu      sync.Mutex
	pending []model.Subscriber
	marked  []int64
	listErr error
	markErr error
	lists   int
}

func (q *stubQueue) ListPendingSubscribers(_ context.Context, limit, _ int) ([]model.Subscriber, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lists++
	if q.listErr != nil {
		return nil, q.listErr
	}
	if limit > len(q.pending) {
		limit = len(q.pending)
	}
	out := make([]model.Subscriber, limit)
	copy(out, q.pending[:limit])
	return out, nil
}

func (q *stubQueue) MarkLookedUp(_ context.Context, id int64, _ bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.markErr != nil {
		return q.markErr
	}
	q.marked = append(q.marked, id)
	for i, sub := range q.pending {
		if sub.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return nil
}

type stubResolver struct {
	calls  atomic.Int32
	result func(req model.LookupRequest) model.LookupResult
}

func (r *stubResolver) Lookup(_ context.Context, req model.LookupRequest) model.LookupResult {
	r.calls.Add(1)
	if r.result != nil {
		return r.result(req)
	}
	return model.LookupResult{Email: req.Email, Success: true, MethodUsed: model.MethodGoogleSearch}
}

func subscribers(n int) []model.Subscriber {
	out := make([]model.Subscriber, n)
	for i := range out {
		out[i] = model.Subscriber{
			ID:    int64(i + 1),
			Email: fmt.Sprintf("user%d@acme.com", i+1),
		}
	}
	return out
}

func testConfig() Config {
	return Config{BatchSize: 3, Concurrency: 2, RatePerSecond: 1000}
}

func TestRunDrainsQueue(t *testing.T) {
	queue := &stubQueue{pending: subscribers(7)}
	resolver := &stubResolver{}
	p := New(queue, resolver, testConfig())

	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7, summary.Processed)
	assert.Equal(t, 7, summary.Resolved)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 7, summary.ByMethod[model.MethodGoogleSearch])
	assert.Equal(t, int32(7), resolver.calls.Load())
	assert.Len(t, queue.marked, 7)
	assert.Empty(t, queue.pending)
}

func TestRunCountsFailures(t *testing.T) {
	queue := &stubQueue{pending: subscribers(4)}
	resolver := &stubResolver{
		result: func(req model.LookupRequest) model.LookupResult {
			if req.Email == "user2@acme.com" {
				return model.LookupResult{Email: req.Email, MethodUsed: model.MethodNone}
			}
			return model.LookupResult{Email: req.Email, Success: true, MethodUsed: model.MethodRocketReachPrimary}
		},
	}
	p := New(queue, resolver, testConfig())

	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 3, summary.Resolved)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.ByMethod[model.MethodNone])
	// Failed subscribers are still marked so the next run skips them.
	assert.Len(t, queue.marked, 4)
}

func TestRunRespectsMaxSubscribers(t *testing.T) {
	queue := &stubQueue{pending: subscribers(10)}
	resolver := &stubResolver{}
	cfg := testConfig()
	cfg.MaxSubscribers = 5
	p := New(queue, resolver, cfg)

	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, summary.Processed)
	assert.Len(t, queue.pending, 5)
}

func TestRunEmptyQueue(t *testing.T) {
	queue := &stubQueue{}
	p := New(queue, &stubResolver{}, testConfig())

	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
}

func TestRunListError(t *testing.T) {
	queue := &stubQueue{listErr: eris.New("connection refused")}
	p := New(queue, &stubResolver{}, testConfig())

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list pending subscribers")
}

func TestRunStopsWhenMarksKeepFailing(t *testing.T) {
	queue := &stubQueue{
		pending: subscribers(3),
		markErr: eris.New("disk full"),
	}
	resolver := &stubResolver{}
	p := New(queue, resolver, testConfig())

	summary, err := p.Run(context.Background())

	// Unmarked rows would be refetched forever, so the run must stop
	// after the first page instead of looping.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be marked")
	assert.Equal(t, 1, queue.lists)
	assert.Equal(t, int32(3), resolver.calls.Load())
	assert.Equal(t, 3, summary.Processed)
}

func TestRunCancelledContext(t *testing.T) {
	queue := &stubQueue{pending: subscribers(3)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testConfig()
	cfg.RatePerSecond = 0.0001
	p := New(queue, &stubResolver{}, cfg)

	_, err := p.Run(ctx)

	require.Error(t, err)
}

func TestRunAgainstSQLiteStore(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	for _, sub := range subscribers(5) {
		require.NoError(t, s.UpsertSubscriber(ctx, sub))
	}

	resolver := &stubResolver{
		result: func(req model.LookupRequest) model.LookupResult {
			url := "https://www.linkedin.com/in/" + req.Email
			if err := s.SetLinkedInURL(ctx, req.Email, url); err != nil {
				return model.LookupResult{Email: req.Email, MethodUsed: model.MethodNone}
			}
			return model.LookupResult{Email: req.Email, LinkedInURL: url, Success: true, MethodUsed: model.MethodGoogleSearch}
		},
	}
	p := New(s, resolver, testConfig())

	summary, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 5, summary.Resolved)

	remaining, err := s.ListPendingSubscribers(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	stats, err := s.SubscriberStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.WithLinkedIn)
}
