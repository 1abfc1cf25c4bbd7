package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"booking-platform/pkg/utils"
)

const transferColumns = `id, booking_id, host_id, amount_minor, currency,
	external_method, account_ref, status,
	provider_ref, failure_reason, created_at, updated_at`

// PostgresStore implements Store on Postgres.
type PostgresStore struct {
	pool *sql.DB
}

func NewPostgresStore(pool *sql.DB) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, t PendingTransfer) error {
	const q = `
		INSERT INTO pending_transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := utils.DB(ctx, s.pool).ExecContext(ctx, q,
		t.ID, t.BookingID, t.HostID, t.AmountMinor, t.Currency,
		t.ExternalMethod, t.AccountRef, t.Status,
		t.ProviderRef, t.FailureReason, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (PendingTransfer, error) {
	const q = `SELECT ` + transferColumns + ` FROM pending_transfers WHERE id = $1`

	t, err := scanTransfer(utils.DB(ctx, s.pool).QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return PendingTransfer{}, ErrNotFound
	}
	if err != nil {
		return PendingTransfer{}, fmt.Errorf("get transfer: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) FindByBooking(ctx context.Context, bookingID string) (PendingTransfer, bool, error) {
	const q = `SELECT ` + transferColumns + ` FROM pending_transfers WHERE booking_id = $1`

	t, err := scanTransfer(utils.DB(ctx, s.pool).QueryRowContext(ctx, q, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return PendingTransfer{}, false, nil
	}
	if err != nil {
		return PendingTransfer{}, false, fmt.Errorf("find transfer: %w", err)
	}
	return t, true, nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]PendingTransfer, error) {
	const q = `SELECT ` + transferColumns + ` FROM pending_transfers
		WHERE status = 'pending' ORDER BY created_at`

	rows, err := utils.DB(ctx, s.pool).QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pending transfers: %w", err)
	}
	defer rows.Close()

	var out []PendingTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, t PendingTransfer) error {
	const q = `
		UPDATE pending_transfers
		SET status = $2, provider_ref = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1`

	res, err := utils.DB(ctx, s.pool).ExecContext(ctx, q,
		t.ID, t.Status, t.ProviderRef, t.FailureReason, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (PendingTransfer, error) {
	var t PendingTransfer
	err := row.Scan(
		&t.ID, &t.BookingID, &t.HostID, &t.AmountMinor, &t.Currency,
		&t.ExternalMethod, &t.AccountRef, &t.Status,
		&t.ProviderRef, &t.FailureReason, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

// PostgresDirectory implements Directory on Postgres.
type PostgresDirectory struct {
	pool *sql.DB
}

func NewPostgresDirectory(pool *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) GetProfile(ctx context.Context, hostID string) (Profile, bool, error) {
	const q = `SELECT host_id, method, external_method, account_ref
		FROM payout_profiles WHERE host_id = $1`

	var p Profile
	err := utils.DB(ctx, d.pool).QueryRowContext(ctx, q, hostID).Scan(
		&p.HostID, &p.Method, &p.ExternalMethod, &p.AccountRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("get payout profile: %w", err)
	}
	return p, true, nil
}
