package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/db"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_subscriber":   `SELECT id, email_address, linkedin_profile_url FROM subscribers WHERE email_address = $1`,
	"set_linkedin_url": `UPDATE subscribers SET linkedin_profile_url = $1, updated_at = $2 WHERE email_address = $3`,
	"save_profile":     `INSERT INTO linkedin_profiles (linkedin_url, data, scraped_at, updated_at) VALUES ($1, $2, $3, $3) ON CONFLICT (linkedin_url) DO UPDATE SET data = $2, updated_at = $3`,
	"get_profile":      `SELECT data FROM linkedin_profiles WHERE linkedin_url = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., the pool-usage store).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS subscribers (
	id                   BIGSERIAL PRIMARY KEY,
	email_address        TEXT NOT NULL UNIQUE,
	first_name           TEXT,
	last_name            TEXT,
	full_name            TEXT,
	linkedin_profile_url TEXT,
	status               TEXT NOT NULL DEFAULT 'active',
	looked_up            BOOLEAN,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_subscribers_email ON subscribers(email_address);
CREATE INDEX IF NOT EXISTS idx_subscribers_pending ON subscribers(status) WHERE linkedin_profile_url IS NULL;

CREATE TABLE IF NOT EXISTS linkedin_profiles (
	linkedin_url TEXT PRIMARY KEY,
	data         JSONB NOT NULL,
	scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pool_usage (
	day          TEXT NOT NULL,
	pool         TEXT NOT NULL,
	used         INTEGER NOT NULL DEFAULT 0,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (day, pool)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SubscriberExists(ctx context.Context, email string) (bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM subscribers WHERE email_address = $1`,
		normalizeEmail(email),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrap(err, "postgres: subscriber exists")
	}
	return true, nil
}

func (s *PostgresStore) GetLinkedInURL(ctx context.Context, email string) (string, error) {
	var url *string
	err := s.pool.QueryRow(ctx,
		`SELECT linkedin_profile_url FROM subscribers WHERE email_address = $1`,
		normalizeEmail(email),
	).Scan(&url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "postgres: get linkedin url")
	}
	if url == nil {
		return "", nil
	}
	return *url, nil
}

func (s *PostgresStore) SetLinkedInURL(ctx context.Context, email, linkedinURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscribers SET linkedin_profile_url = $1, updated_at = $2 WHERE email_address = $3`,
		linkedinURL, time.Now().UTC(), normalizeEmail(email),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set linkedin url for %s", email)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("subscriber not found: %s", email)
	}
	return nil
}

func (s *PostgresStore) ListPendingSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, email_address, first_name, last_name, full_name
		 FROM subscribers
		 WHERE status = 'active'
		   AND linkedin_profile_url IS NULL
		   AND (looked_up IS NULL OR looked_up = FALSE)
		 ORDER BY id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending subscribers")
	}
	defer rows.Close()

	var subs []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		var first, last, full *string
		if err := rows.Scan(&sub.ID, &sub.Email, &first, &last, &full); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subscriber")
		}
		sub.FirstName = deref(first)
		sub.LastName = deref(last)
		sub.FullName = deref(full)
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "postgres: list pending iterate")
}

// UpsertSubscriber inserts or refreshes a subscriber row. Subscriber data
// is owned by the newsletter platform; this exists for backfills and tests.
func (s *PostgresStore) UpsertSubscriber(ctx context.Context, sub model.Subscriber) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscribers (email_address, first_name, last_name, full_name, linkedin_profile_url)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		 ON CONFLICT (email_address) DO UPDATE SET
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   full_name = EXCLUDED.full_name,
		   linkedin_profile_url = EXCLUDED.linkedin_profile_url,
		   updated_at = now()`,
		normalizeEmail(sub.Email), sub.FirstName, sub.LastName, sub.FullName, sub.LinkedInURL,
	)
	return eris.Wrapf(err, "postgres: upsert subscriber %s", sub.Email)
}

func (s *PostgresStore) MarkLookedUp(ctx context.Context, subscriberID int64, lookedUp bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE subscribers SET looked_up = $1, updated_at = $2 WHERE id = $3`,
		lookedUp, time.Now().UTC(), subscriberID,
	)
	return eris.Wrapf(err, "postgres: mark looked up %d", subscriberID)
}

func (s *PostgresStore) SubscriberStats(ctx context.Context) (*SubscriberStats, error) {
	var stats SubscriberStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(linkedin_profile_url) FROM subscribers`,
	).Scan(&stats.Total, &stats.WithLinkedIn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: subscriber stats")
	}
	stats.WithoutLinkedIn = stats.Total - stats.WithLinkedIn
	return &stats, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, linkedinURL string, data json.RawMessage) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO linkedin_profiles (linkedin_url, data, scraped_at, updated_at) VALUES ($1, $2, $3, $3)
		 ON CONFLICT (linkedin_url) DO UPDATE SET data = $2, updated_at = $3`,
		linkedinURL, data, now,
	)
	return eris.Wrap(err, "postgres: save profile")
}

func (s *PostgresStore) SaveProfiles(ctx context.Context, profiles map[string]json.RawMessage) error {
	if len(profiles) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(profiles))
	for url, data := range profiles {
		rows = append(rows, []any{url, data})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "linkedin_profiles",
		Columns:      []string{"linkedin_url", "data"},
		ConflictKeys: []string{"linkedin_url"},
	}, rows)
	return eris.Wrap(err, "postgres: save profiles")
}

func (s *PostgresStore) GetProfile(ctx context.Context, linkedinURL string) (json.RawMessage, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM linkedin_profiles WHERE linkedin_url = $1`,
		linkedinURL,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get profile")
	}
	return data, nil
}

// helpers shared by both stores

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
