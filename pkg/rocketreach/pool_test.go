package rocketreach

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	url   string
	err   error
	calls []string // account keys used
}

func (s *stubLookup) LookupProfile(_ context.Context, apiKey, _ string) (string, error) {
	s.calls = append(s.calls, apiKey)
	return s.url, s.err
}

func testAccounts() []Account {
	return []Account{
		{Name: "alpha", APIKey: "key-alpha"},
		{Name: "beta", APIKey: "key-beta"},
		{Name: "gamma", APIKey: "key-gamma"},
	}
}

func newTestPool(t *testing.T, client Client, cfg PoolConfig) (*Pool, *time.Time) {
	t.Helper()
	p, err := NewPool(client, testAccounts(), cfg)
	require.NoError(t, err)

	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return current }
	return p, &current
}

func TestPoolLookupSuccess(t *testing.T) {
	stub := &stubLookup{url: "https://linkedin.com/in/found"}
	p, _ := newTestPool(t, stub, PoolConfig{})

	url, err := p.Lookup(context.Background(), "a@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "https://linkedin.com/in/found", url)
	assert.Len(t, stub.calls, 1)
}

func TestPoolCooldownSkipsAccount(t *testing.T) {
	stub := &stubLookup{}
	p, now := newTestPool(t, stub, PoolConfig{Cooldown: 10 * time.Second, Strategy: StrategyRoundRobin})

	// Three immediate calls rotate through all three accounts.
	for range 3 {
		_, err := p.Lookup(context.Background(), "a@gmail.com")
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{"key-alpha", "key-beta", "key-gamma"}, stub.calls)

	// All on cooldown now.
	_, err := p.Lookup(context.Background(), "a@gmail.com")
	assert.ErrorIs(t, err, ErrExhausted)

	// After the cooldown they are usable again.
	*now = now.Add(11 * time.Second)
	_, err = p.Lookup(context.Background(), "a@gmail.com")
	assert.NoError(t, err)
}

func TestPoolHourlyCap(t *testing.T) {
	stub := &stubLookup{}
	p, now := newTestPool(t, stub, PoolConfig{
		Cooldown:        time.Second,
		MaxCallsPerHour: 2,
		Strategy:        StrategyRoundRobin,
	})

	// 3 accounts x 2 calls each.
	for range 6 {
		*now = now.Add(2 * time.Second)
		_, err := p.Lookup(context.Background(), "a@gmail.com")
		require.NoError(t, err)
	}

	*now = now.Add(2 * time.Second)
	_, err := p.Lookup(context.Background(), "a@gmail.com")
	assert.ErrorIs(t, err, ErrExhausted)

	// Budget frees up once the window slides past the old calls.
	*now = now.Add(time.Hour)
	_, err = p.Lookup(context.Background(), "a@gmail.com")
	assert.NoError(t, err)
}

func TestPoolLRUPrefersColdAccount(t *testing.T) {
	stub := &stubLookup{}
	p, now := newTestPool(t, stub, PoolConfig{Cooldown: time.Second, Strategy: StrategyLRU})

	_, err := p.Lookup(context.Background(), "a@gmail.com")
	require.NoError(t, err)
	first := stub.calls[0]

	*now = now.Add(2 * time.Second)
	_, err = p.Lookup(context.Background(), "a@gmail.com")
	require.NoError(t, err)
	assert.NotEqual(t, first, stub.calls[1])
}

// lastSelect always takes the eligible account with the highest index.
type lastSelect struct {
	seen [][]Candidate
}

func (s *lastSelect) Select(eligible []Candidate) int {
	s.seen = append(s.seen, eligible)
	return len(eligible) - 1
}

func TestPoolCustomSelector(t *testing.T) {
	stub := &stubLookup{}
	sel := &lastSelect{}
	p, now := newTestPool(t, stub, PoolConfig{
		Cooldown: time.Second,
		Selector: sel,
	})

	for range 3 {
		*now = now.Add(2 * time.Second)
		_, err := p.Lookup(context.Background(), "a@gmail.com")
		require.NoError(t, err)
	}

	// The injected selector decides, not the default random pick.
	assert.Equal(t, []string{"key-gamma", "key-gamma", "key-gamma"}, stub.calls)

	// The selector sees every eligible account in account order.
	require.Len(t, sel.seen, 3)
	first := sel.seen[0]
	require.Len(t, first, 3)
	assert.Equal(t, []string{"alpha", "beta", "gamma"},
		[]string{first[0].Name, first[1].Name, first[2].Name})
	assert.True(t, first[2].LastCall.IsZero())

	// Later rounds report gamma's previous call time.
	assert.False(t, sel.seen[1][2].LastCall.IsZero())
}

func TestPoolProviderRateLimitBurnsAccount(t *testing.T) {
	stub := &stubLookup{err: ErrRateLimited}
	p, now := newTestPool(t, stub, PoolConfig{
		Cooldown:        time.Second,
		MaxCallsPerHour: 5,
		Strategy:        StrategyRoundRobin,
	})

	_, err := p.Lookup(context.Background(), "a@gmail.com")
	assert.ErrorIs(t, err, ErrRateLimited)

	// The burned account sits out the hour even after its cooldown.
	*now = now.Add(time.Minute)
	stats := p.Stats()
	burned := 0
	for _, s := range stats {
		if s.Remaining == 0 {
			burned++
		}
	}
	assert.Equal(t, 1, burned)
}

func TestPoolHistoryPersistence(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.json")
	stub := &stubLookup{}

	cfg := PoolConfig{
		Cooldown:        time.Second,
		MaxCallsPerHour: 1,
		Strategy:        StrategyRoundRobin,
		HistoryFile:     historyFile,
	}
	p1, _ := newTestPool(t, stub, cfg)
	for range 3 {
		_, err := p1.Lookup(context.Background(), "a@gmail.com")
		require.NoError(t, err)
	}

	// A fresh pool picks up the exhausted budgets from disk.
	p2, err := NewPool(stub, testAccounts(), cfg)
	require.NoError(t, err)
	p2.now = p1.now

	_, err = p2.Lookup(context.Background(), "a@gmail.com")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestPoolStats(t *testing.T) {
	stub := &stubLookup{}
	p, _ := newTestPool(t, stub, PoolConfig{Cooldown: 10 * time.Second, MaxCallsPerHour: 70})

	_, err := p.Lookup(context.Background(), "a@gmail.com")
	require.NoError(t, err)

	stats := p.Stats()
	require.Len(t, stats, 3)

	var used, idle int
	for _, s := range stats {
		if s.CallsLastHour == 1 {
			used++
			assert.True(t, s.OnCooldown)
			assert.Equal(t, 69, s.Remaining)
		} else {
			idle++
			assert.Equal(t, 70, s.Remaining)
		}
	}
	assert.Equal(t, 1, used)
	assert.Equal(t, 2, idle)
}

func TestNewPoolNoAccounts(t *testing.T) {
	_, err := NewPool(&stubLookup{}, nil, PoolConfig{})
	assert.Error(t, err)
}
