package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"booking-platform/pkg/utils"
)

// Listing is the slice of catalog data booking creation needs. The catalog
// itself (search, browse, management) lives outside this engine.
type Listing struct {
	ID               string `json:"id" db:"id"`
	HostID           string `json:"host_id" db:"host_id"`
	NightlyRateMinor int64  `json:"nightly_rate_minor" db:"nightly_rate_minor"`
	Currency         string `json:"currency" db:"currency"`
	Active           bool   `json:"active" db:"active"`
}

var ErrListingNotFound = errors.New("workflow: listing not found")

// ListingDirectory resolves listing ids to pricing and ownership.
type ListingDirectory interface {
	GetListing(ctx context.Context, id string) (Listing, error)
}

// MemoryListings is a static ListingDirectory for tests.
type MemoryListings struct {
	mu       sync.Mutex
	listings map[string]Listing
}

func NewMemoryListings() *MemoryListings {
	return &MemoryListings{listings: make(map[string]Listing)}
}

func (d *MemoryListings) Put(l Listing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listings[l.ID] = l
}

func (d *MemoryListings) GetListing(_ context.Context, id string) (Listing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.listings[id]
	if !ok {
		return Listing{}, ErrListingNotFound
	}
	return l, nil
}

// PostgresListings reads the minimal listing row the engine needs.
type PostgresListings struct {
	pool *sql.DB
}

func NewPostgresListings(pool *sql.DB) *PostgresListings {
	return &PostgresListings{pool: pool}
}

func (d *PostgresListings) GetListing(ctx context.Context, id string) (Listing, error) {
	const q = `
		SELECT id, host_id, nightly_rate_minor, currency, active
		FROM listings
		WHERE id = $1`

	var l Listing
	err := utils.DB(ctx, d.pool).QueryRowContext(ctx, q, id).Scan(
		&l.ID, &l.HostID, &l.NightlyRateMinor, &l.Currency, &l.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Listing{}, ErrListingNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}
