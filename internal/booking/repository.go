package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"booking-platform/pkg/utils"
)

// PostgresStore persists bookings in a bookings table.
//
// Assumed schema highlights:
// - version BIGINT NOT NULL: compare-and-swap target for all updates
// - intent_ref has a partial unique index (WHERE intent_ref <> '')
// - status/payment_status stored as TEXT with CHECK constraints
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const bookingColumns = `
id, guest_id, host_id, listing_id, status, previous_status,
payment_status, payment_method, payment_timing,
currency, subtotal_minor, discount_minor, service_fee_minor, total_minor,
discount_provider, discount_code, intent_ref, capture_id,
reject_reason, review_reason, version,
created_at, updated_at, approved_at, rejected_at, cancelled_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.GuestID, &b.HostID, &b.ListingID, &b.Status, &b.PreviousStatus,
		&b.PaymentStatus, &b.PaymentMethod, &b.PaymentTiming,
		&b.Currency, &b.SubtotalMinor, &b.DiscountMinor, &b.ServiceFeeMinor, &b.TotalMinor,
		&b.DiscountProvider, &b.DiscountCode, &b.IntentRef, &b.CaptureID,
		&b.RejectReason, &b.ReviewReason, &b.Version,
		&b.CreatedAt, &b.UpdatedAt, &b.ApprovedAt, &b.RejectedAt, &b.CancelledAt, &b.CompletedAt,
	)
	return b, err
}

func (s *PostgresStore) Create(ctx context.Context, b Booking) error {
	if b.ID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO bookings (
  id, guest_id, host_id, listing_id, status, previous_status,
  payment_status, payment_method, payment_timing,
  currency, subtotal_minor, discount_minor, service_fee_minor, total_minor,
  discount_provider, discount_code, intent_ref, capture_id,
  reject_reason, review_reason, version, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1,$21,$21
)
`
	_, err := utils.DB(ctx, s.db).ExecContext(ctx, q,
		b.ID, b.GuestID, b.HostID, b.ListingID, b.Status, b.PreviousStatus,
		b.PaymentStatus, b.PaymentMethod, b.PaymentTiming,
		b.Currency, b.SubtotalMinor, b.DiscountMinor, b.ServiceFeeMinor, b.TotalMinor,
		b.DiscountProvider, b.DiscountCode, b.IntentRef, b.CaptureID,
		b.RejectReason, b.ReviewReason, b.CreatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(utils.DB(ctx, s.db).QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	return b, nil
}

func (s *PostgresStore) FindByIntentRef(ctx context.Context, intentRef string) (Booking, bool, error) {
	if intentRef == "" {
		return Booking{}, false, ErrInvalidArgument
	}
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE intent_ref = $1 LIMIT 1`
	b, err := scanBooking(utils.DB(ctx, s.db).QueryRowContext(ctx, q, intentRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, false, nil
		}
		return Booking{}, false, err
	}
	return b, true, nil
}

// Update performs the guard-then-write atomically: the WHERE clause carries
// both the version read by the caller and the legality of the status edge, so
// a concurrent writer causes zero rows to match rather than a lost update.
func (s *PostgresStore) Update(ctx context.Context, b Booking) (Booking, error) {
	cur, err := s.Get(ctx, b.ID)
	if err != nil {
		return Booking{}, err
	}
	if cur.Version != b.Version {
		return Booking{}, ErrStaleState
	}
	if cur.Status != b.Status {
		if !CanTransition(cur.Status, b.Status) {
			return Booking{}, ErrInvalidTransition
		}
	} else if cur.Status.Terminal() {
		// Closed bookings are immutable, even for same-status field writes.
		return Booking{}, ErrInvalidTransition
	}

	const q = `
UPDATE bookings SET
  status = $1, previous_status = $2,
  payment_status = $3,
  discount_provider = $4, discount_code = $5,
  discount_minor = $6, service_fee_minor = $7, total_minor = $8,
  intent_ref = $9, capture_id = $10,
  reject_reason = $11, review_reason = $12,
  approved_at = $13, rejected_at = $14, cancelled_at = $15, completed_at = $16,
  updated_at = $17,
  version = version + 1
WHERE id = $18 AND version = $19
`
	res, err := utils.DB(ctx, s.db).ExecContext(ctx, q,
		b.Status, b.PreviousStatus,
		b.PaymentStatus,
		b.DiscountProvider, b.DiscountCode,
		b.DiscountMinor, b.ServiceFeeMinor, b.TotalMinor,
		b.IntentRef, b.CaptureID,
		b.RejectReason, b.ReviewReason,
		b.ApprovedAt, b.RejectedAt, b.CancelledAt, b.CompletedAt,
		time.Now().UTC(),
		b.ID, b.Version,
	)
	if err != nil {
		return Booking{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Booking{}, err
	}
	if n == 0 {
		return Booking{}, ErrStaleState
	}
	b.Version++
	return b, nil
}

func (s *PostgresStore) ListByGuest(ctx context.Context, guestID string) ([]Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE guest_id = $1 ORDER BY created_at DESC`
	return s.list(ctx, q, guestID)
}

func (s *PostgresStore) ListByHost(ctx context.Context, hostID string) ([]Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE host_id = $1 ORDER BY created_at DESC`
	return s.list(ctx, q, hostID)
}

func (s *PostgresStore) ListNeedingReview(ctx context.Context) ([]Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE review_reason <> '' ORDER BY updated_at DESC`
	return s.list(ctx, q)
}

func (s *PostgresStore) list(ctx context.Context, q string, args ...any) ([]Booking, error) {
	rows, err := utils.DB(ctx, s.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
