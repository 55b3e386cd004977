package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/db"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/ratelimit"
)

// PostgresUsageStore implements ratelimit.UsageStore on the pool_usage
// table. Unlike the file-backed store, the increment is a single
// conditional UPDATE, so concurrent scrapers cannot oversubscribe a pool.
type PostgresUsageStore struct {
	pool db.Pool
}

// NewPostgresUsageStore creates a usage store over an existing pool.
func NewPostgresUsageStore(pool db.Pool) *PostgresUsageStore {
	return &PostgresUsageStore{pool: pool}
}

func (s *PostgresUsageStore) Usage(ctx context.Context, date string) (map[string]ratelimit.PoolUsage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pool, used, last_updated FROM pool_usage WHERE day = $1`,
		date,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pool usage")
	}
	defer rows.Close()

	usage := make(map[string]ratelimit.PoolUsage)
	for rows.Next() {
		var pool string
		var u ratelimit.PoolUsage
		if err := rows.Scan(&pool, &u.Used, &u.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pool usage")
		}
		usage[pool] = u
	}
	return usage, eris.Wrap(rows.Err(), "postgres: pool usage iterate")
}

func (s *PostgresUsageStore) Increment(ctx context.Context, date, pool string, n, limit int) (int, bool, error) {
	now := time.Now().UTC()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO pool_usage (day, pool, used, last_updated) VALUES ($1, $2, 0, $3)
		 ON CONFLICT (day, pool) DO NOTHING`,
		date, pool, now,
	); err != nil {
		return 0, false, eris.Wrap(err, "postgres: ensure pool usage row")
	}

	var used int
	err := s.pool.QueryRow(ctx,
		`UPDATE pool_usage SET used = used + $3, last_updated = $4
		 WHERE day = $1 AND pool = $2 AND used + $3 <= $5
		 RETURNING used`,
		date, pool, n, now, limit,
	).Scan(&used)
	if err == nil {
		return used, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, eris.Wrap(err, "postgres: increment pool usage")
	}

	// Over the limit: report the counter as it stands.
	err = s.pool.QueryRow(ctx,
		`SELECT used FROM pool_usage WHERE day = $1 AND pool = $2`,
		date, pool,
	).Scan(&used)
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: read pool usage")
	}
	return used, false, nil
}

func (s *PostgresUsageStore) SetUsed(ctx context.Context, date, pool string, used int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pool_usage (day, pool, used, last_updated) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (day, pool) DO UPDATE SET used = $3, last_updated = $4`,
		date, pool, used, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set pool usage")
}
