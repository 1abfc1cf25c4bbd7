package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"booking-platform/pkg/utils"
)

// PostgresRepo persists wallets and the transaction log.
//
// Assumed schema:
// - wallets (owner_id PK, balance_minor BIGINT CHECK (balance_minor >= 0), currency, timestamps)
// - wallet_transactions (append-only; UNIQUE (owner_id, idempotency_key))
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetOrCreateWallet(ctx context.Context, ownerID, currency string) (Wallet, error) {
	const q = `
INSERT INTO wallets (owner_id, balance_minor, currency, created_at, updated_at)
VALUES ($1, 0, $2, $3, $3)
ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
RETURNING owner_id, balance_minor, currency, created_at, updated_at
`
	var w Wallet
	err := utils.DB(ctx, r.db).QueryRowContext(ctx, q, ownerID, currency, time.Now().UTC()).Scan(
		&w.OwnerID,
		&w.BalanceMinor,
		&w.Currency,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (r *PostgresRepo) FindEntryByKey(ctx context.Context, ownerID, key string) (Transaction, bool, error) {
	const q = `
SELECT id, owner_id, type, amount_minor, currency, status, booking_id, method, idempotency_key, description, created_at
FROM wallet_transactions
WHERE owner_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var e Transaction
	err := utils.DB(ctx, r.db).QueryRowContext(ctx, q, ownerID, key).Scan(
		&e.ID,
		&e.OwnerID,
		&e.Type,
		&e.AmountMinor,
		&e.Currency,
		&e.Status,
		&e.BookingID,
		&e.Method,
		&e.IdempotencyKey,
		&e.Description,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return e, true, nil
}

func (r *PostgresRepo) AppendEntry(ctx context.Context, e Transaction) error {
	const q = `
INSERT INTO wallet_transactions (
  id, owner_id, type, amount_minor, currency, status, booking_id, method, idempotency_key, description, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := utils.DB(ctx, r.db).ExecContext(ctx, q,
		e.ID,
		e.OwnerID,
		e.Type,
		e.AmountMinor,
		e.Currency,
		e.Status,
		e.BookingID,
		e.Method,
		e.IdempotencyKey,
		e.Description,
		e.CreatedAt,
	)
	return err
}

// ApplyDelta is conditional on the balance staying non-negative, so a
// concurrent overdraft attempt matches zero rows instead of going negative.
func (r *PostgresRepo) ApplyDelta(ctx context.Context, ownerID string, deltaMinor int64) (int64, error) {
	const q = `
UPDATE wallets
SET balance_minor = balance_minor + $1, updated_at = $2
WHERE owner_id = $3 AND balance_minor + $1 >= 0
RETURNING balance_minor
`
	var bal int64
	err := utils.DB(ctx, r.db).QueryRowContext(ctx, q, deltaMinor, time.Now().UTC(), ownerID).Scan(&bal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either no wallet or the delta would overdraw; disambiguate.
			var exists bool
			if lookupErr := utils.DB(ctx, r.db).QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM wallets WHERE owner_id = $1)`, ownerID,
			).Scan(&exists); lookupErr != nil {
				return 0, lookupErr
			}
			if !exists {
				return 0, ErrNotFound
			}
			return 0, ErrInsufficientFunds
		}
		return 0, err
	}
	return bal, nil
}

func (r *PostgresRepo) Balance(ctx context.Context, ownerID string) (int64, bool, error) {
	const q = `SELECT balance_minor FROM wallets WHERE owner_id = $1`
	var bal int64
	err := utils.DB(ctx, r.db).QueryRowContext(ctx, q, ownerID).Scan(&bal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return bal, true, nil
}

func (r *PostgresRepo) Entries(ctx context.Context, ownerID string) ([]Transaction, error) {
	const q = `
SELECT id, owner_id, type, amount_minor, currency, status, booking_id, method, idempotency_key, description, created_at
FROM wallet_transactions
WHERE owner_id = $1
ORDER BY created_at DESC
`
	rows, err := utils.DB(ctx, r.db).QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var e Transaction
		if err := rows.Scan(
			&e.ID,
			&e.OwnerID,
			&e.Type,
			&e.AmountMinor,
			&e.Currency,
			&e.Status,
			&e.BookingID,
			&e.Method,
			&e.IdempotencyKey,
			&e.Description,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
