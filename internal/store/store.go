package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

// Store defines the persistence interface for the lookup and scraping
// pipeline: the subscriber LinkedIn-URL cache, the pending-lookup queue,
// and scraped profile records.
type Store interface {
	// Subscribers
	SubscriberExists(ctx context.Context, email string) (bool, error)
	GetLinkedInURL(ctx context.Context, email string) (string, error)
	SetLinkedInURL(ctx context.Context, email, linkedinURL string) error
	ListPendingSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error)
	MarkLookedUp(ctx context.Context, subscriberID int64, lookedUp bool) error
	SubscriberStats(ctx context.Context) (*SubscriberStats, error)

	// Profiles
	SaveProfile(ctx context.Context, linkedinURL string, data json.RawMessage) error
	SaveProfiles(ctx context.Context, profiles map[string]json.RawMessage) error
	GetProfile(ctx context.Context, linkedinURL string) (json.RawMessage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	case "sqlite", "":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// SubscriberStats summarizes LinkedIn-URL coverage across the subscriber
// base.
type SubscriberStats struct {
	Total           int `json:"total_subscribers"`
	WithLinkedIn    int `json:"with_linkedin_url"`
	WithoutLinkedIn int `json:"without_linkedin_url"`
}
