package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"booking-platform/internal/booking"
	"booking-platform/internal/discount"
	"booking-platform/internal/payment"
	"booking-platform/internal/payout"
	"booking-platform/pkg/logger"
	"booking-platform/pkg/utils"
)

var (
	ErrForbidden       = errors.New("workflow: actor not allowed")
	ErrPaymentRequired = errors.New("workflow: approval requires completed payment")
	ErrInvalidArgument = errors.New("workflow: invalid argument")
)

// Service owns every booking status transition. Nothing else writes a
// booking's status.
type Service struct {
	bookings   booking.Store
	listings   ListingDirectory
	discounts  *discount.Engine
	reconciler *payment.Reconciler
	payouts    *payout.Dispatcher
	notifier   Notifier
	runner     utils.AtomicRunner
	clock      func() time.Time
}

func NewService(
	bookings booking.Store,
	listings ListingDirectory,
	discounts *discount.Engine,
	reconciler *payment.Reconciler,
	payouts *payout.Dispatcher,
	notifier Notifier,
	runner utils.AtomicRunner,
) *Service {
	return &Service{
		bookings:   bookings,
		listings:   listings,
		discounts:  discounts,
		reconciler: reconciler,
		payouts:    payouts,
		notifier:   notifier,
		runner:     runner,
		clock:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// CreateRequest is the guest's booking proposal. Amounts are never taken
// from the client; the listing's rate prices the stay server-side.
type CreateRequest struct {
	ListingID     string                `json:"listing_id"`
	Nights        int                   `json:"nights"`
	PaymentMethod booking.PaymentMethod `json:"payment_method"`
	PaymentTiming booking.PaymentTiming `json:"payment_timing"`
	CouponCode    string                `json:"coupon_code,omitempty"`
	VoucherCode   string                `json:"voucher_code,omitempty"`
}

// CreateResult carries the created booking plus, for immediate external
// payments, the open intent the guest must approve.
type CreateResult struct {
	Booking booking.Booking `json:"booking"`
	Intent  *payment.Intent `json:"intent,omitempty"`
}

// Create prices and persists a new booking in pending_approval. Wallet
// pay-now settles immediately; external pay-now opens a gateway intent.
func (s *Service) Create(ctx context.Context, guestID string, req CreateRequest) (CreateResult, error) {
	if guestID == "" || req.ListingID == "" {
		return CreateResult{}, fmt.Errorf("%w: guest and listing ids are required", ErrInvalidArgument)
	}
	if req.Nights <= 0 {
		return CreateResult{}, fmt.Errorf("%w: nights must be positive", ErrInvalidArgument)
	}
	switch req.PaymentMethod {
	case booking.MethodWallet, booking.MethodExternal:
	default:
		return CreateResult{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidArgument, req.PaymentMethod)
	}
	switch req.PaymentTiming {
	case booking.TimingNow, booking.TimingLater:
	default:
		return CreateResult{}, fmt.Errorf("%w: unknown payment timing %q", ErrInvalidArgument, req.PaymentTiming)
	}

	l, err := s.listings.GetListing(ctx, req.ListingID)
	if err != nil {
		return CreateResult{}, err
	}
	if !l.Active {
		return CreateResult{}, fmt.Errorf("%w: listing is not bookable", ErrInvalidArgument)
	}
	if l.HostID == guestID {
		return CreateResult{}, fmt.Errorf("%w: hosts cannot book their own listing", ErrForbidden)
	}

	subtotal := l.NightlyRateMinor * int64(req.Nights)

	applied, err := s.discounts.Validate(ctx, discount.Request{
		GuestID:       guestID,
		HostID:        l.HostID,
		ListingID:     l.ID,
		SubtotalMinor: subtotal,
		CouponCode:    req.CouponCode,
		VoucherCode:   req.VoucherCode,
	})
	if err != nil {
		return CreateResult{}, err
	}

	fee, total, err := booking.ComputeTotals(subtotal, applied.AmountMinor)
	if err != nil {
		return CreateResult{}, err
	}
	if total <= 0 {
		return CreateResult{}, fmt.Errorf("%w: total must be positive", ErrInvalidArgument)
	}

	paymentStatus := booking.PaymentPending
	if req.PaymentTiming == booking.TimingLater {
		paymentStatus = booking.PaymentScheduled
	}

	now := s.clock().UTC()
	b := booking.Booking{
		ID:               uuid.NewString(),
		GuestID:          guestID,
		HostID:           l.HostID,
		ListingID:        l.ID,
		Status:           booking.StatusPendingApproval,
		PaymentStatus:    paymentStatus,
		PaymentMethod:    req.PaymentMethod,
		PaymentTiming:    req.PaymentTiming,
		Currency:         l.Currency,
		SubtotalMinor:    subtotal,
		DiscountMinor:    applied.AmountMinor,
		ServiceFeeMinor:  fee,
		TotalMinor:       total,
		DiscountProvider: booking.DiscountProvider(applied.Provider),
		DiscountCode:     applied.Code,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return CreateResult{}, err
	}
	created, err := s.bookings.Get(ctx, b.ID)
	if err != nil {
		return CreateResult{}, err
	}

	if req.PaymentTiming == booking.TimingLater {
		return CreateResult{Booking: created}, nil
	}
	return s.pay(ctx, created)
}

// Pay settles (wallet) or opens (external) the payment for an existing
// booking. This is the guest's deferred-payment lever for pay-later bookings
// and the retry lever for abandoned external checkouts.
func (s *Service) Pay(ctx context.Context, guestID, bookingID string) (CreateResult, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return CreateResult{}, err
	}
	if b.GuestID != guestID {
		return CreateResult{}, ErrForbidden
	}
	if b.Status.Terminal() {
		return CreateResult{}, fmt.Errorf("%w: booking is %s", ErrInvalidArgument, b.Status)
	}
	if b.PaymentStatus == booking.PaymentCompleted {
		return CreateResult{Booking: b}, nil
	}
	return s.pay(ctx, b)
}

func (s *Service) pay(ctx context.Context, b booking.Booking) (CreateResult, error) {
	switch b.PaymentMethod {
	case booking.MethodWallet:
		var settled booking.Booking
		err := s.runner.InTx(ctx, func(ctx context.Context) error {
			var err error
			if settled, err = s.reconciler.SettleWallet(ctx, b.ID); err != nil {
				return err
			}
			return s.commitDiscount(ctx, settled)
		})
		if err != nil {
			return CreateResult{}, err
		}
		return CreateResult{Booking: settled}, nil

	case booking.MethodExternal:
		in, err := s.reconciler.OpenIntent(ctx, b.ID)
		if err != nil {
			return CreateResult{}, err
		}
		// OpenIntent may have stamped the intent ref onto the booking.
		cur, err := s.bookings.Get(ctx, b.ID)
		if err != nil {
			return CreateResult{}, err
		}
		return CreateResult{Booking: cur, Intent: &in}, nil

	default:
		return CreateResult{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidArgument, b.PaymentMethod)
	}
}

// HandleCapture reconciles a gateway capture and, on success, commits the
// booking's discount usage in the same atomic unit. A capture landing on an
// already approved pay-later booking also releases the host payout.
func (s *Service) HandleCapture(ctx context.Context, cap payment.Capture) (booking.Booking, error) {
	return s.reconciler.ConfirmCaptureWith(ctx, cap, func(ctx context.Context, b booking.Booking) error {
		if err := s.commitDiscount(ctx, b); err != nil {
			return err
		}
		if b.Status == booking.StatusConfirmed {
			return s.payouts.Dispatch(ctx, b)
		}
		return nil
	})
}

func (s *Service) commitDiscount(ctx context.Context, b booking.Booking) error {
	return s.discounts.CommitUsage(ctx,
		discount.Kind(b.DiscountProvider), b.HostID, b.DiscountCode,
		"booking:"+b.ID+":discount")
}

// Approve confirms a pending booking. Only the listing's host may approve.
// With payment outstanding, approval is legal only for pay-later bookings.
// A completed payment releases the host payout in the same atomic unit as
// the transition.
func (s *Service) Approve(ctx context.Context, hostID, bookingID string) (booking.Booking, error) {
	var out booking.Booking
	err := s.runner.InTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.HostID != hostID {
			return ErrForbidden
		}
		if b.Status != booking.StatusPendingApproval {
			return booking.ErrInvalidTransition
		}
		if b.PaymentStatus != booking.PaymentCompleted && b.PaymentTiming != booking.TimingLater {
			return ErrPaymentRequired
		}

		now := s.clock().UTC()
		b.Status = booking.StatusConfirmed
		b.ApprovedAt = &now
		if out, err = s.bookings.Update(ctx, b); err != nil {
			return err
		}

		if out.PaymentStatus == booking.PaymentCompleted {
			return s.payouts.Dispatch(ctx, out)
		}
		return nil
	})
	if err != nil {
		return booking.Booking{}, err
	}

	if err := s.notifier.BookingConfirmed(ctx, confirmedEvent(out)); err != nil {
		logger.From(ctx).Warn("booking confirmed notification failed",
			slog.String("booking_id", out.ID), slog.String("error", err.Error()))
	}
	return out, nil
}

// Reject declines a pending booking. Terminal; no transfer happens.
func (s *Service) Reject(ctx context.Context, hostID, bookingID, reason string) (booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.HostID != hostID {
		return booking.Booking{}, ErrForbidden
	}
	if b.Status != booking.StatusPendingApproval {
		return booking.Booking{}, booking.ErrInvalidTransition
	}

	now := s.clock().UTC()
	b.Status = booking.StatusRejected
	b.RejectReason = reason
	b.RejectedAt = &now
	return s.bookings.Update(ctx, b)
}

// RequestCancellation moves a confirmed booking into pending_cancellation,
// remembering where it came from for a possible revert.
func (s *Service) RequestCancellation(ctx context.Context, guestID, bookingID string) (booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.GuestID != guestID {
		return booking.Booking{}, ErrForbidden
	}
	// Only a confirmed booking can enter cancellation; a repeated request
	// would otherwise clobber PreviousStatus and break the revert.
	if b.Status != booking.StatusConfirmed {
		return booking.Booking{}, booking.ErrInvalidTransition
	}

	b.PreviousStatus = b.Status
	b.Status = booking.StatusPendingCancellation
	return s.bookings.Update(ctx, b)
}

// ApproveCancellation finalizes a requested cancellation. Money already
// collected stays in the ledger; reimbursement is an operator decision, not
// an automatic reversal.
func (s *Service) ApproveCancellation(ctx context.Context, hostID, bookingID string) (booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.HostID != hostID {
		return booking.Booking{}, ErrForbidden
	}
	if b.Status != booking.StatusPendingCancellation {
		return booking.Booking{}, booking.ErrInvalidTransition
	}

	now := s.clock().UTC()
	b.Status = booking.StatusCancelled
	b.PreviousStatus = ""
	b.CancelledAt = &now
	out, err := s.bookings.Update(ctx, b)
	if err != nil {
		return booking.Booking{}, err
	}

	if err := s.notifier.BookingCancelled(ctx, cancelledEvent(out)); err != nil {
		logger.From(ctx).Warn("booking cancelled notification failed",
			slog.String("booking_id", out.ID), slog.String("error", err.Error()))
	}
	return out, nil
}

// RejectCancellation reverts the booking to the status it held before the
// cancellation request.
func (s *Service) RejectCancellation(ctx context.Context, hostID, bookingID string) (booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.HostID != hostID {
		return booking.Booking{}, ErrForbidden
	}
	if b.Status != booking.StatusPendingCancellation {
		return booking.Booking{}, booking.ErrInvalidTransition
	}

	prev := b.PreviousStatus
	if prev == "" {
		prev = booking.StatusConfirmed
	}
	b.Status = prev
	b.PreviousStatus = ""
	return s.bookings.Update(ctx, b)
}

// CompleteStay records the post-stay milestone. Triggered by ops, not by
// guest or host action.
func (s *Service) CompleteStay(ctx context.Context, bookingID string) (booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status != booking.StatusConfirmed {
		return booking.Booking{}, booking.ErrInvalidTransition
	}

	now := s.clock().UTC()
	b.Status = booking.StatusCompleted
	b.CompletedAt = &now
	return s.bookings.Update(ctx, b)
}

// ListForGuest returns the guest's bookings.
func (s *Service) ListForGuest(ctx context.Context, guestID string) ([]booking.Booking, error) {
	return s.bookings.ListByGuest(ctx, guestID)
}

// ListForHost returns bookings on the host's listings.
func (s *Service) ListForHost(ctx context.Context, hostID string) ([]booking.Booking, error) {
	return s.bookings.ListByHost(ctx, hostID)
}

// ListNeedingReview returns bookings parked for manual reconciliation.
func (s *Service) ListNeedingReview(ctx context.Context) ([]booking.Booking, error) {
	return s.bookings.ListNeedingReview(ctx)
}

// Get returns one booking, visible only to its guest, its host, or an admin.
func (s *Service) Get(ctx context.Context, actorID string, isAdmin bool, bookingID string) (booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if !isAdmin && b.GuestID != actorID && b.HostID != actorID {
		return booking.Booking{}, ErrForbidden
	}
	return b, nil
}

func confirmedEvent(b booking.Booking) BookingConfirmedEvent {
	e := BookingConfirmedEvent{
		BookingID:   b.ID,
		GuestID:     b.GuestID,
		HostID:      b.HostID,
		TotalMinor:  b.TotalMinor,
		PayoutMinor: payout.Amount(b),
		Currency:    b.Currency,
		CreatedAt:   b.CreatedAt,
	}
	if b.ApprovedAt != nil {
		e.ApprovedAt = *b.ApprovedAt
	}
	return e
}

func cancelledEvent(b booking.Booking) BookingCancelledEvent {
	e := BookingCancelledEvent{
		BookingID:  b.ID,
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		TotalMinor: b.TotalMinor,
		Currency:   b.Currency,
		CreatedAt:  b.CreatedAt,
	}
	if b.CancelledAt != nil {
		e.CancelledAt = *b.CancelledAt
	}
	return e
}
