package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS subscribers (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	email_address        TEXT NOT NULL UNIQUE,
	first_name           TEXT,
	last_name            TEXT,
	full_name            TEXT,
	linkedin_profile_url TEXT,
	status               TEXT NOT NULL DEFAULT 'active',
	looked_up            INTEGER,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_subscribers_email ON subscribers(email_address);

CREATE TABLE IF NOT EXISTS linkedin_profiles (
	linkedin_url TEXT PRIMARY KEY,
	data         TEXT NOT NULL,
	scraped_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SubscriberExists(ctx context.Context, email string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM subscribers WHERE email_address = ?`,
		normalizeEmail(email),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: subscriber exists")
	}
	return true, nil
}

func (s *SQLiteStore) GetLinkedInURL(ctx context.Context, email string) (string, error) {
	var url sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT linkedin_profile_url FROM subscribers WHERE email_address = ?`,
		normalizeEmail(email),
	).Scan(&url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get linkedin url")
	}
	return url.String, nil
}

func (s *SQLiteStore) SetLinkedInURL(ctx context.Context, email, linkedinURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET linkedin_profile_url = ?, updated_at = ? WHERE email_address = ?`,
		linkedinURL, time.Now().UTC(), normalizeEmail(email),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set linkedin url for %s", email)
	}
	return checkRowsAffected(res, "subscriber", email)
}

func (s *SQLiteStore) ListPendingSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email_address, first_name, last_name, full_name
		 FROM subscribers
		 WHERE status = 'active'
		   AND linkedin_profile_url IS NULL
		   AND (looked_up IS NULL OR looked_up = 0)
		 ORDER BY id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending subscribers")
	}
	defer rows.Close()

	var subs []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		var first, last, full sql.NullString
		if err := rows.Scan(&sub.ID, &sub.Email, &first, &last, &full); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subscriber")
		}
		sub.FirstName = first.String
		sub.LastName = last.String
		sub.FullName = full.String
		subs = append(subs, sub)
	}
	return subs, eris.Wrap(rows.Err(), "sqlite: list pending iterate")
}

// UpsertSubscriber inserts or refreshes a subscriber row. Subscriber data
// is owned by the newsletter platform; this exists for backfills and tests.
func (s *SQLiteStore) UpsertSubscriber(ctx context.Context, sub model.Subscriber) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (email_address, first_name, last_name, full_name, linkedin_profile_url)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''))
		 ON CONFLICT (email_address) DO UPDATE SET
		   first_name = excluded.first_name,
		   last_name = excluded.last_name,
		   full_name = excluded.full_name,
		   linkedin_profile_url = excluded.linkedin_profile_url,
		   updated_at = datetime('now')`,
		normalizeEmail(sub.Email), sub.FirstName, sub.LastName, sub.FullName, sub.LinkedInURL,
	)
	return eris.Wrapf(err, "sqlite: upsert subscriber %s", sub.Email)
}

func (s *SQLiteStore) MarkLookedUp(ctx context.Context, subscriberID int64, lookedUp bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET looked_up = ?, updated_at = ? WHERE id = ?`,
		lookedUp, time.Now().UTC(), subscriberID,
	)
	return eris.Wrapf(err, "sqlite: mark looked up %d", subscriberID)
}

func (s *SQLiteStore) SubscriberStats(ctx context.Context) (*SubscriberStats, error) {
	var stats SubscriberStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(linkedin_profile_url) FROM subscribers`,
	).Scan(&stats.Total, &stats.WithLinkedIn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: subscriber stats")
	}
	stats.WithoutLinkedIn = stats.Total - stats.WithLinkedIn
	return &stats, nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, linkedinURL string, data json.RawMessage) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO linkedin_profiles (linkedin_url, data, scraped_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (linkedin_url) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		linkedinURL, string(data), now, now,
	)
	return eris.Wrap(err, "sqlite: save profile")
}

func (s *SQLiteStore) SaveProfiles(ctx context.Context, profiles map[string]json.RawMessage) error {
	if len(profiles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save profiles")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for url, data := range profiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO linkedin_profiles (linkedin_url, data, scraped_at, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (linkedin_url) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			url, string(data), now, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: save profile %s", url)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save profiles")
}

func (s *SQLiteStore) GetProfile(ctx context.Context, linkedinURL string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM linkedin_profiles WHERE linkedin_url = ?`,
		linkedinURL,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get profile")
	}
	return json.RawMessage(data), nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
