package discount

import "time"

// Two discount instruments exist side by side: host-defined coupons
// (code-redeemable, optionally listing-scoped) and host-issued vouchers
// (claim-then-apply). Both are served through one engine so the tie-break and
// single-application invariants hold on every path.

type Kind string

const (
	KindNone    Kind = ""
	KindCoupon  Kind = "coupon"
	KindVoucher Kind = "voucher"
)

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

// Coupon is a host-defined discount. Code is unique per host scope.
type Coupon struct {
	ID     string `json:"id" db:"id"`
	HostID string `json:"host_id" db:"host_id"`
	Code   string `json:"code" db:"code"`

	// ListingID restricts the coupon to one listing when non-empty.
	ListingID string `json:"listing_id,omitempty" db:"listing_id"`

	Type CouponType `json:"type" db:"type"`

	// Percent applies when Type == percentage; AmountMinor when fixed.
	Percent     int64 `json:"percent,omitempty" db:"percent"`
	AmountMinor int64 `json:"amount_minor,omitempty" db:"amount_minor"`

	MinPurchaseMinor int64 `json:"min_purchase_minor,omitempty" db:"min_purchase_minor"`

	// MaxUses == 0 means unlimited.
	MaxUses    int `json:"max_uses,omitempty" db:"max_uses"`
	UsageCount int `json:"usage_count" db:"usage_count"`

	ValidFrom  time.Time `json:"valid_from" db:"valid_from"`
	ValidUntil time.Time `json:"valid_until" db:"valid_until"`

	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Voucher is a host-issued, claim-then-apply instrument. Code is globally
// unique. A guest must claim the voucher before applying it.
type Voucher struct {
	ID     string `json:"id" db:"id"`
	HostID string `json:"host_id" db:"host_id"`
	Code   string `json:"code" db:"code"`

	// Percent is bounded 1-50.
	Percent int64 `json:"percent" db:"percent"`

	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`

	UsageLimit int `json:"usage_limit" db:"usage_limit"`
	UsageCount int `json:"usage_count" db:"usage_count"`

	// ClaimedBy is the claiming guest id; empty means unclaimed.
	ClaimedBy string `json:"claimed_by,omitempty" db:"claimed_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Applied is a priced discount ready to be attached to a booking.
type Applied struct {
	Provider    Kind   `json:"provider"`
	ID          string `json:"id"`
	Code        string `json:"code"`
	AmountMinor int64  `json:"amount_minor"`
}

// VoucherMaxPercent bounds issued voucher discounts.
const VoucherMaxPercent = 50
