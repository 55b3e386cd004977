package ratelimit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// fileSnapshot is the on-disk shape of a day's usage.
type fileSnapshot struct {
	Date  string               `json:"date"`
	Pools map[string]PoolUsage `json:"pools"`
}

// FileStore is a UsageStore backed by a single JSON file. Atomicity is
// process-local (mutex); use the Postgres store when multiple processes
// share a budget.
type FileStore struct {
	path string

	mu   sync.Mutex
	snap fileSnapshot
}

// NewFileStore creates a FileStore and loads any existing snapshot.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path}
	s.load()
	return s
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("usage file unreadable, starting fresh",
				zap.String("path", s.path), zap.Error(err))
		}
		s.snap = fileSnapshot{Pools: make(map[string]PoolUsage)}
		return
	}
	if err := json.Unmarshal(data, &s.snap); err != nil {
		zap.L().Warn("usage file corrupt, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		s.snap = fileSnapshot{Pools: make(map[string]PoolUsage)}
	}
	if s.snap.Pools == nil {
		s.snap.Pools = make(map[string]PoolUsage)
	}
}

// rollLocked resets counters when the stored date is not the given date.
func (s *FileStore) rollLocked(date string) {
	if s.snap.Date != date {
		s.snap = fileSnapshot{Date: date, Pools: make(map[string]PoolUsage)}
	}
}

func (s *FileStore) saveLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "ratelimit: create usage dir")
		}
	}
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ratelimit: marshal usage")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return eris.Wrap(err, "ratelimit: write usage file")
	}
	return nil
}

func (s *FileStore) Usage(_ context.Context, date string) (map[string]PoolUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollLocked(date)
	out := make(map[string]PoolUsage, len(s.snap.Pools))
	for k, v := range s.snap.Pools {
		out[k] = v
	}
	return out, nil
}

func (s *FileStore) Increment(_ context.Context, date, pool string, n, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollLocked(date)
	u := s.snap.Pools[pool]
	if u.Used+n > limit {
		return u.Used, false, nil
	}
	u.Used += n
	u.LastUpdated = time.Now().UTC()
	s.snap.Pools[pool] = u
	return u.Used, true, s.saveLocked()
}

func (s *FileStore) SetUsed(_ context.Context, date, pool string, used int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollLocked(date)
	s.snap.Pools[pool] = PoolUsage{Used: used, LastUpdated: time.Now().UTC()}
	return s.saveLocked()
}
