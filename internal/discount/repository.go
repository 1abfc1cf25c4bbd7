package discount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"booking-platform/pkg/utils"
)

// PostgresRepo implements CouponRepository and VoucherRepository on Postgres.
// Usage commits insert into a redemptions table keyed by idempotency key, so a
// retried commit inside the same payment unit is a no-op.
type PostgresRepo struct {
	pool *sql.DB
}

func NewPostgresRepo(pool *sql.DB) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) FindCouponByCode(ctx context.Context, hostID, code string) (Coupon, error) {
	const q = `
		SELECT id, host_id, code, listing_id, type, percent, amount_minor,
		       min_purchase_minor, max_uses, usage_count, valid_from, valid_until,
		       active, created_at
		FROM coupons
		WHERE host_id = $1 AND code = $2`

	var c Coupon
	err := utils.DB(ctx, r.pool).QueryRowContext(ctx, q, hostID, code).Scan(
		&c.ID, &c.HostID, &c.Code, &c.ListingID, &c.Type, &c.Percent, &c.AmountMinor,
		&c.MinPurchaseMinor, &c.MaxUses, &c.UsageCount, &c.ValidFrom, &c.ValidUntil,
		&c.Active, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	if err != nil {
		return Coupon{}, fmt.Errorf("find coupon: %w", err)
	}
	return c, nil
}

func (r *PostgresRepo) CommitCouponUse(ctx context.Context, couponID, idempotencyKey string) error {
	return r.commitUse(ctx, "coupon", couponID, idempotencyKey, `
		UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (max_uses = 0 OR usage_count < max_uses)`)
}

func (r *PostgresRepo) FindVoucherByCode(ctx context.Context, code string) (Voucher, error) {
	const q = `
		SELECT id, host_id, code, percent, start_date, end_date,
		       usage_limit, usage_count, claimed_by, created_at
		FROM vouchers
		WHERE code = $1`

	var v Voucher
	err := utils.DB(ctx, r.pool).QueryRowContext(ctx, q, code).Scan(
		&v.ID, &v.HostID, &v.Code, &v.Percent, &v.StartDate, &v.EndDate,
		&v.UsageLimit, &v.UsageCount, &v.ClaimedBy, &v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	if err != nil {
		return Voucher{}, fmt.Errorf("find voucher: %w", err)
	}
	return v, nil
}

func (r *PostgresRepo) ClaimVoucher(ctx context.Context, code, guestID string) (Voucher, error) {
	// Conditional claim; re-claiming by the same guest passes through.
	const q = `
		UPDATE vouchers
		SET claimed_by = $2
		WHERE code = $1 AND (claimed_by = '' OR claimed_by = $2)
		RETURNING id, host_id, code, percent, start_date, end_date,
		          usage_limit, usage_count, claimed_by, created_at`

	var v Voucher
	err := utils.DB(ctx, r.pool).QueryRowContext(ctx, q, code, guestID).Scan(
		&v.ID, &v.HostID, &v.Code, &v.Percent, &v.StartDate, &v.EndDate,
		&v.UsageLimit, &v.UsageCount, &v.ClaimedBy, &v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the code is unknown or another guest holds it.
		if _, lookupErr := r.FindVoucherByCode(ctx, code); lookupErr != nil {
			return Voucher{}, lookupErr
		}
		return Voucher{}, ErrAlreadyClaimed
	}
	if err != nil {
		return Voucher{}, fmt.Errorf("claim voucher: %w", err)
	}
	return v, nil
}

func (r *PostgresRepo) CommitVoucherUse(ctx context.Context, voucherID, idempotencyKey string) error {
	return r.commitUse(ctx, "voucher", voucherID, idempotencyKey, `
		UPDATE vouchers
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`)
}

func (r *PostgresRepo) commitUse(ctx context.Context, kind, id, idempotencyKey, incrementQ string) error {
	db := utils.DB(ctx, r.pool)

	const ins = `
		INSERT INTO discount_redemptions (id, kind, discount_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING`

	res, err := db.ExecContext(ctx, ins, uuid.NewString(), kind, id, idempotencyKey)
	if err != nil {
		return fmt.Errorf("record %s redemption: %w", kind, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record %s redemption: %w", kind, err)
	}
	if inserted == 0 {
		// Key already committed; the counter moved on the first attempt.
		return nil
	}

	res, err = db.ExecContext(ctx, incrementQ, id)
	if err != nil {
		return fmt.Errorf("increment %s usage: %w", kind, err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment %s usage: %w", kind, err)
	}
	if moved == 0 {
		return ErrUsageExceeded
	}
	return nil
}
