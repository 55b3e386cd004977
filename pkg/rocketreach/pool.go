package rocketreach

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Strategy names a built-in selection strategy in config.
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "round_robin"
	StrategyLRU        Strategy = "lru"
)

// Candidate is one eligible account offered to a SelectionStrategy.
type Candidate struct {
	// Index is the account's position in the pool's account list.
	Index int
	Name  string
	// LastCall is zero when the account has never been used.
	LastCall time.Time
}

// SelectionStrategy picks which eligible account handles the next call.
// Select receives candidates in account order and returns the chosen
// position within the slice. The pool serializes calls under its own
// lock, so implementations may keep unguarded state.
type SelectionStrategy interface {
	Select(eligible []Candidate) int
}

type randomSelect struct{}

func (randomSelect) Select(eligible []Candidate) int {
	return rand.Intn(len(eligible))
}

type roundRobinSelect struct {
	size int
	next int
}

func (s *roundRobinSelect) Select(eligible []Candidate) int {
	pick := 0
	for i, c := range eligible {
		if c.Index >= s.next {
			pick = i
			break
		}
	}
	s.next = eligible[pick].Index + 1
	if s.next >= s.size {
		s.next = 0
	}
	return pick
}

type lruSelect struct{}

func (lruSelect) Select(eligible []Candidate) int {
	pick := 0
	for i, c := range eligible[1:] {
		if c.LastCall.Before(eligible[pick].LastCall) {
			pick = i + 1
		}
	}
	return pick
}

// ErrExhausted is returned when every account is on cooldown or over its
// hourly budget.
var ErrExhausted = eris.New("rocketreach: all accounts rate limited")

// PoolConfig tunes the account rotation.
type PoolConfig struct {
	Cooldown        time.Duration
	MaxCallsPerHour int
	Strategy        Strategy
	// Selector overrides the named Strategy with a custom
	// SelectionStrategy. Nil uses the built-in for Strategy.
	Selector SelectionStrategy
	// HistoryFile persists call timestamps across restarts so limits
	// survive process churn. Empty disables persistence.
	HistoryFile string
}

// AccountStats is a point-in-time view of one account's budget.
type AccountStats struct {
	CallsLastHour int  `json:"calls_last_hour"`
	OnCooldown    bool `json:"on_cooldown"`
	Remaining     int  `json:"remaining"`
}

// Pool rotates lookup calls across accounts, enforcing a per-account
// cooldown and hourly cap. The call is recorded before dispatch so a
// hung request still counts against the budget.
type Pool struct {
	client   Client
	accounts []Account
	cfg      PoolConfig
	selector SelectionStrategy

	mu      sync.Mutex
	history map[string][]time.Time

	now func() time.Time
}

// NewPool creates a Pool and loads persisted call history if present.
func NewPool(client Client, accounts []Account, cfg PoolConfig) (*Pool, error) {
	if len(accounts) == 0 {
		return nil, eris.New("rocketreach: pool needs at least one account")
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	if cfg.MaxCallsPerHour <= 0 {
		cfg.MaxCallsPerHour = 70
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyRandom
	}
	selector := cfg.Selector
	if selector == nil {
		switch cfg.Strategy {
		case StrategyRoundRobin:
			selector = &roundRobinSelect{size: len(accounts)}
		case StrategyLRU:
			selector = lruSelect{}
		default:
			selector = randomSelect{}
		}
	}

	p := &Pool{
		client:   client,
		accounts: accounts,
		cfg:      cfg,
		selector: selector,
		history:  make(map[string][]time.Time),
		now:      time.Now,
	}
	p.loadHistory()
	return p, nil
}

// Lookup resolves an email through the next eligible account.
func (p *Pool) Lookup(ctx context.Context, email string) (string, error) {
	account, err := p.reserve()
	if err != nil {
		return "", err
	}

	zap.L().Debug("rocketreach lookup",
		zap.String("account", account.Name))

	url, err := p.client.LookupProfile(ctx, account.APIKey, email)
	if err != nil {
		if eris.Is(err, ErrRateLimited) {
			// The provider disagrees with our bookkeeping. Burn the
			// account's remaining budget for this hour.
			p.forceExhaust(account.Name)
		}
		return "", err
	}
	return url, nil
}

// Stats reports the current budget per account.
func (p *Pool) Stats() map[string]AccountStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make(map[string]AccountStats, len(p.accounts))
	for _, a := range p.accounts {
		recent := callsSince(p.history[a.Name], now.Add(-time.Hour))
		var onCooldown bool
		if h := p.history[a.Name]; len(h) > 0 {
			onCooldown = now.Sub(h[len(h)-1]) < p.cfg.Cooldown
		}
		out[a.Name] = AccountStats{
			CallsLastHour: recent,
			OnCooldown:    onCooldown,
			Remaining:     max(0, p.cfg.MaxCallsPerHour-recent),
		}
	}
	return out
}

// reserve picks an eligible account and records the call.
func (p *Pool) reserve() (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var eligible []Candidate
	for i, a := range p.accounts {
		if p.eligibleLocked(a.Name, now) {
			eligible = append(eligible, Candidate{
				Index:    i,
				Name:     a.Name,
				LastCall: p.lastCall(a.Name),
			})
		}
	}
	if len(eligible) == 0 {
		return Account{}, ErrExhausted
	}

	pick := p.selector.Select(eligible)
	if pick < 0 || pick >= len(eligible) {
		pick = 0
	}

	account := p.accounts[eligible[pick].Index]
	p.history[account.Name] = append(
		pruneBefore(p.history[account.Name], now.Add(-time.Hour)), now)
	p.saveHistoryLocked()
	return account, nil
}

func (p *Pool) eligibleLocked(name string, now time.Time) bool {
	h := p.history[name]
	if len(h) > 0 && now.Sub(h[len(h)-1]) < p.cfg.Cooldown {
		return false
	}
	return callsSince(h, now.Add(-time.Hour)) < p.cfg.MaxCallsPerHour
}

func (p *Pool) lastCall(name string) time.Time {
	if h := p.history[name]; len(h) > 0 {
		return h[len(h)-1]
	}
	return time.Time{}
}

// forceExhaust fills the account's hourly window so it is skipped until
// entries age out.
func (p *Pool) forceExhaust(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	h := pruneBefore(p.history[name], now.Add(-time.Hour))
	for len(h) < p.cfg.MaxCallsPerHour {
		h = append(h, now)
	}
	p.history[name] = h
	p.saveHistoryLocked()
}

func callsSince(h []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range h {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func pruneBefore(h []time.Time, cutoff time.Time) []time.Time {
	out := h[:0]
	for _, t := range h {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (p *Pool) loadHistory() {
	if p.cfg.HistoryFile == "" {
		return
	}
	data, err := os.ReadFile(p.cfg.HistoryFile)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("rocketreach history unreadable", zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, &p.history); err != nil {
		zap.L().Warn("rocketreach history corrupt, starting fresh", zap.Error(err))
		p.history = make(map[string][]time.Time)
	}
}

func (p *Pool) saveHistoryLocked() {
	if p.cfg.HistoryFile == "" {
		return
	}
	data, err := json.Marshal(p.history)
	if err != nil {
		return
	}
	if err := os.WriteFile(p.cfg.HistoryFile, data, 0o644); err != nil {
		zap.L().Warn("rocketreach history write failed", zap.Error(err))
	}
}
