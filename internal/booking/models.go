package booking

import (
	"errors"
	"time"
)

// Amounts are expressed in minor units (e.g., cents) using int64.
//
// Money invariant: TotalMinor == SubtotalMinor - DiscountMinor + ServiceFeeMinor,
// always >= 0. Totals are computed server-side only (ComputeTotals); clients
// may propose amounts but never assert them.

type Status string

const (
	StatusPendingApproval     Status = "pending_approval"
	StatusConfirmed           Status = "confirmed"
	StatusRejected            Status = "rejected"
	StatusPendingCancellation Status = "pending_cancellation"
	StatusCancelled           Status = "cancelled"

	// StatusCompleted is a post-stay terminal state reachable only from
	// confirmed, recorded for milestone accounting. Not a guest/host action.
	StatusCompleted Status = "completed"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentScheduled PaymentStatus = "scheduled"
	PaymentCompleted PaymentStatus = "completed"
)

type PaymentMethod string

const (
	MethodWallet   PaymentMethod = "wallet"
	MethodExternal PaymentMethod = "external"
)

type PaymentTiming string

const (
	TimingNow   PaymentTiming = "now"
	TimingLater PaymentTiming = "later"
)

type DiscountProvider string

const (
	ProviderNone    DiscountProvider = ""
	ProviderCoupon  DiscountProvider = "coupon"
	ProviderVoucher DiscountProvider = "voucher"
)

// Booking is a single reservation request linking a guest, host and listing,
// with its own payment and approval lifecycle. Bookings are never hard-deleted;
// rejected/cancelled bookings are terminal but retained for audit.
type Booking struct {
	ID        string `json:"id" db:"id"`
	GuestID   string `json:"guest_id" db:"guest_id"`
	HostID    string `json:"host_id" db:"host_id"`
	ListingID string `json:"listing_id" db:"listing_id"`

	Status Status `json:"status" db:"status"`

	// PreviousStatus is captured only while a cancellation request is pending,
	// to support revert-on-reject.
	PreviousStatus Status `json:"previous_status,omitempty" db:"previous_status"`

	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentTiming PaymentTiming `json:"payment_timing" db:"payment_timing"`

	Currency        string `json:"currency" db:"currency"`
	SubtotalMinor   int64  `json:"subtotal_minor" db:"subtotal_minor"`
	DiscountMinor   int64  `json:"discount_minor" db:"discount_minor"`
	ServiceFeeMinor int64  `json:"service_fee_minor" db:"service_fee_minor"`
	TotalMinor      int64  `json:"total_minor" db:"total_minor"`

	DiscountProvider DiscountProvider `json:"discount_provider,omitempty" db:"discount_provider"`
	DiscountCode     string           `json:"discount_code,omitempty" db:"discount_code"`

	// External payment references. IntentRef is set once an intent is opened;
	// CaptureID once the gateway confirms funds.
	IntentRef string `json:"intent_ref,omitempty" db:"intent_ref"`
	CaptureID string `json:"capture_id,omitempty" db:"capture_id"`

	RejectReason string `json:"reject_reason,omitempty" db:"reject_reason"`

	// ReviewReason flags the booking for manual reconciliation, e.g. when a
	// captured amount disagrees with the booking total beyond tolerance.
	ReviewReason string `json:"review_reason,omitempty" db:"review_reason"`

	// Version backs the conditional-write discipline. Every Update must carry
	// the version read alongside the fields it mutates.
	Version int64 `json:"-" db:"version"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ServiceFeePercent is the platform fee applied to the post-discount subtotal.
const ServiceFeePercent = 5

var ErrInvalidAmount = errors.New("booking: invalid amount")

// ComputeTotals derives the authoritative fee and total for a booking.
// fee = round-half-up(5% of (subtotal - discount)); total = discounted + fee.
func ComputeTotals(subtotalMinor, discountMinor int64) (feeMinor, totalMinor int64, err error) {
	if subtotalMinor <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	if discountMinor < 0 || discountMinor > subtotalMinor {
		return 0, 0, ErrInvalidAmount
	}
	discounted := subtotalMinor - discountMinor
	feeMinor = (discounted*ServiceFeePercent + 50) / 100
	totalMinor = discounted + feeMinor
	return feeMinor, totalMinor, nil
}

// Terminal reports whether no further transitions may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}
