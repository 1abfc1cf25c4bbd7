package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("discount: code not found")
	ErrNotApplicable    = errors.New("discount: not applicable")
	ErrUsageExceeded    = errors.New("discount: usage limit reached")
	ErrNotClaimed       = errors.New("discount: voucher not claimed by guest")
	ErrAlreadyClaimed   = errors.New("discount: voucher already claimed")
	ErrConflictingCodes = errors.New("discount: coupon and voucher cannot be combined")
	ErrInvalidArgument  = errors.New("discount: invalid argument")
)

// CouponRepository is the persistence surface the engine needs for coupons.
type CouponRepository interface {
	FindCouponByCode(ctx context.Context, hostID, code string) (Coupon, error)
	// CommitCouponUse increments the usage counter, guarded by the usage cap
	// and deduplicated by idempotencyKey. Returns ErrUsageExceeded when the
	// cap would be breached.
	CommitCouponUse(ctx context.Context, couponID, idempotencyKey string) error
}

// VoucherRepository is the persistence surface for vouchers.
type VoucherRepository interface {
	FindVoucherByCode(ctx context.Context, code string) (Voucher, error)
	// ClaimVoucher binds an unclaimed voucher to guestID. Returns
	// ErrAlreadyClaimed when another guest holds it; claiming a voucher the
	// same guest already holds is a no-op.
	ClaimVoucher(ctx context.Context, code, guestID string) (Voucher, error)
	CommitVoucherUse(ctx context.Context, voucherID, idempotencyKey string) error
}

// Request carries everything needed to price a discount against a booking.
type Request struct {
	GuestID       string
	HostID        string
	ListingID     string
	SubtotalMinor int64
	CouponCode    string
	VoucherCode   string
}

// Engine validates and commits discounts. Validation is a pure read; usage
// counters move only through ApplyAndCommit so a discount priced at booking
// creation is not consumed until the payment completes.
type Engine struct {
	coupons  CouponRepository
	vouchers VoucherRepository
	clock    func() time.Time
}

func NewEngine(coupons CouponRepository, vouchers VoucherRepository) *Engine {
	return &Engine{coupons: coupons, vouchers: vouchers, clock: time.Now}
}

// WithClock overrides the time source. Test hook.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Validate resolves at most one discount for the request. Presenting a coupon
// and a voucher together is rejected outright rather than tie-broken.
func (e *Engine) Validate(ctx context.Context, req Request) (Applied, error) {
	coupon := strings.TrimSpace(req.CouponCode)
	voucher := strings.TrimSpace(req.VoucherCode)

	switch {
	case coupon != "" && voucher != "":
		return Applied{}, ErrConflictingCodes
	case coupon != "":
		return e.ValidateCoupon(ctx, req, coupon)
	case voucher != "":
		return e.ValidateVoucher(ctx, req, voucher)
	default:
		return Applied{Provider: KindNone}, nil
	}
}

// ValidateCoupon prices a coupon against the request without consuming it.
func (e *Engine) ValidateCoupon(ctx context.Context, req Request, code string) (Applied, error) {
	if req.SubtotalMinor <= 0 {
		return Applied{}, fmt.Errorf("%w: subtotal must be positive", ErrInvalidArgument)
	}

	c, err := e.coupons.FindCouponByCode(ctx, req.HostID, code)
	if err != nil {
		return Applied{}, err
	}

	now := e.clock()
	switch {
	case !c.Active:
		return Applied{}, fmt.Errorf("%w: coupon inactive", ErrNotApplicable)
	case now.Before(c.ValidFrom) || now.After(c.ValidUntil):
		return Applied{}, fmt.Errorf("%w: coupon outside validity window", ErrNotApplicable)
	case c.ListingID != "" && c.ListingID != req.ListingID:
		return Applied{}, fmt.Errorf("%w: coupon restricted to another listing", ErrNotApplicable)
	case c.MinPurchaseMinor > 0 && req.SubtotalMinor < c.MinPurchaseMinor:
		return Applied{}, fmt.Errorf("%w: subtotal below coupon minimum", ErrNotApplicable)
	case c.MaxUses > 0 && c.UsageCount >= c.MaxUses:
		return Applied{}, ErrUsageExceeded
	}

	amount, err := couponAmount(c, req.SubtotalMinor)
	if err != nil {
		return Applied{}, err
	}
	return Applied{Provider: KindCoupon, ID: c.ID, Code: c.Code, AmountMinor: amount}, nil
}

// ValidateVoucher prices a claimed voucher against the request.
func (e *Engine) ValidateVoucher(ctx context.Context, req Request, code string) (Applied, error) {
	if req.SubtotalMinor <= 0 {
		return Applied{}, fmt.Errorf("%w: subtotal must be positive", ErrInvalidArgument)
	}

	v, err := e.vouchers.FindVoucherByCode(ctx, code)
	if err != nil {
		return Applied{}, err
	}

	now := e.clock()
	switch {
	case v.ClaimedBy == "":
		return Applied{}, ErrNotClaimed
	case v.ClaimedBy != req.GuestID:
		return Applied{}, fmt.Errorf("%w: voucher held by another guest", ErrNotClaimed)
	case v.HostID != req.HostID:
		return Applied{}, fmt.Errorf("%w: voucher issued by another host", ErrNotApplicable)
	case now.Before(v.StartDate) || now.After(v.EndDate):
		return Applied{}, fmt.Errorf("%w: voucher outside availability window", ErrNotApplicable)
	case v.UsageLimit > 0 && v.UsageCount >= v.UsageLimit:
		return Applied{}, ErrUsageExceeded
	}

	amount := percentOf(req.SubtotalMinor, v.Percent)
	if amount <= 0 {
		return Applied{}, fmt.Errorf("%w: voucher yields no discount", ErrNotApplicable)
	}
	return Applied{Provider: KindVoucher, ID: v.ID, Code: v.Code, AmountMinor: amount}, nil
}

// Claim binds a voucher to the guest.
func (e *Engine) Claim(ctx context.Context, code, guestID string) (Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" || guestID == "" {
		return Voucher{}, fmt.Errorf("%w: code and guest id are required", ErrInvalidArgument)
	}
	return e.vouchers.ClaimVoucher(ctx, code, guestID)
}

// ApplyAndCommit consumes a previously validated discount. Safe to retry with
// the same idempotency key; the usage counter moves at most once per key.
// Called inside the payment-completion atomic unit so a failed payment never
// burns a use.
func (e *Engine) ApplyAndCommit(ctx context.Context, applied Applied, idempotencyKey string) error {
	if applied.Provider == KindNone {
		return nil
	}
	if idempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key is required", ErrInvalidArgument)
	}
	switch applied.Provider {
	case KindCoupon:
		return e.coupons.CommitCouponUse(ctx, applied.ID, idempotencyKey)
	case KindVoucher:
		return e.vouchers.CommitVoucherUse(ctx, applied.ID, idempotencyKey)
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidArgument, applied.Provider)
	}
}

// CommitUsage commits by provider and code instead of discount id, for
// callers that only carry the code a booking was priced with.
func (e *Engine) CommitUsage(ctx context.Context, kind Kind, hostID, code, idempotencyKey string) error {
	switch kind {
	case KindNone:
		return nil
	case KindCoupon:
		c, err := e.coupons.FindCouponByCode(ctx, hostID, code)
		if err != nil {
			return err
		}
		return e.coupons.CommitCouponUse(ctx, c.ID, idempotencyKey)
	case KindVoucher:
		v, err := e.vouchers.FindVoucherByCode(ctx, code)
		if err != nil {
			return err
		}
		return e.vouchers.CommitVoucherUse(ctx, v.ID, idempotencyKey)
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidArgument, kind)
	}
}

// couponAmount prices the coupon, clamped so the discount never exceeds the
// subtotal.
func couponAmount(c Coupon, subtotal int64) (int64, error) {
	var amount int64
	switch c.Type {
	case CouponPercentage:
		amount = percentOf(subtotal, c.Percent)
	case CouponFixed:
		amount = c.AmountMinor
	default:
		return 0, fmt.Errorf("%w: unknown coupon type %q", ErrInvalidArgument, c.Type)
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: coupon yields no discount", ErrNotApplicable)
	}
	return amount, nil
}

// percentOf rounds half up in minor units.
func percentOf(subtotal, percent int64) int64 {
	return (subtotal*percent + 50) / 100
}
