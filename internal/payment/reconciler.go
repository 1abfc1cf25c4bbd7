package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"booking-platform/internal/audit"
	"booking-platform/internal/booking"
	"booking-platform/internal/wallet"
	"booking-platform/pkg/logger"
	"booking-platform/pkg/utils"
)

// CaptureToleranceMinor is the largest absolute difference between a captured
// amount and the booking total that still reconciles cleanly. Anything above
// it parks the booking for manual review.
const CaptureToleranceMinor = 10

const (
	createOrderAttempts = 3
	createOrderBackoff  = 200 * time.Millisecond
)

// Reconciler owns the money side of a booking: opening external intents,
// reconciling captures against booking totals, and settling wallet payments.
type Reconciler struct {
	bookings booking.Store
	wallets  *wallet.Service
	audits   *audit.Service
	intents  IntentStore
	gateway  Gateway
	runner   utils.AtomicRunner

	intentTTL time.Duration
	// sleep is injectable so retry tests do not wait out real backoff.
	sleep func(time.Duration)
	clock func() time.Time
}

func NewReconciler(
	bookings booking.Store,
	wallets *wallet.Service,
	audits *audit.Service,
	intents IntentStore,
	gateway Gateway,
	runner utils.AtomicRunner,
	intentTTL time.Duration,
) *Reconciler {
	return &Reconciler{
		bookings:  bookings,
		wallets:   wallets,
		audits:    audits,
		intents:   intents,
		gateway:   gateway,
		runner:    runner,
		intentTTL: intentTTL,
		sleep:     time.Sleep,
		clock:     time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// WithSleep overrides the retry backoff sleeper. Test hook.
func (r *Reconciler) WithSleep(sleep func(time.Duration)) *Reconciler {
	r.sleep = sleep
	return r
}

// OpenIntent opens (or returns the already open) external payment intent for
// the booking. Idempotent per booking: a second open while the first intent is
// live reuses the existing provider order.
func (r *Reconciler) OpenIntent(ctx context.Context, bookingID string) (Intent, error) {
	b, err := r.bookings.Get(ctx, bookingID)
	if err != nil {
		return Intent{}, err
	}
	if b.PaymentMethod != booking.MethodExternal {
		return Intent{}, fmt.Errorf("%w: booking pays by wallet", ErrInvalidArgument)
	}
	if b.PaymentStatus == booking.PaymentCompleted {
		return Intent{}, fmt.Errorf("%w: payment already completed", ErrInvalidArgument)
	}

	if existing, err := r.intents.Get(ctx, b.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Intent{}, err
	}

	order, err := r.createOrderWithRetry(ctx, OrderRequest{
		BookingID:   b.ID,
		GuestID:     b.GuestID,
		AmountMinor: b.TotalMinor,
		Currency:    b.Currency,
		Description: "booking " + b.ID,
	})
	if err != nil {
		return Intent{}, err
	}

	in := Intent{
		BookingID:   b.ID,
		IntentRef:   order.IntentRef,
		ApproveURL:  order.ApproveURL,
		AmountMinor: b.TotalMinor,
		Currency:    b.Currency,
		CreatedAt:   r.clock().UTC(),
	}
	// A concurrent open may have won the race; the stored intent is the one
	// the guest must approve.
	stored, err := r.intents.PutIfAbsent(ctx, in, r.intentTTL)
	if err != nil {
		return Intent{}, err
	}

	if b.IntentRef != stored.IntentRef {
		b.IntentRef = stored.IntentRef
		if _, err := r.bookings.Update(ctx, b); err != nil {
			return Intent{}, err
		}
	}
	return stored, nil
}

func (r *Reconciler) createOrderWithRetry(ctx context.Context, req OrderRequest) (Order, error) {
	var lastErr error
	for attempt := 1; attempt <= createOrderAttempts; attempt++ {
		order, err := r.gateway.CreateOrder(ctx, req)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, ErrExternalService) {
			return Order{}, err
		}
		lastErr = err
		logger.From(ctx).Warn("payment order creation failed",
			slog.String("booking_id", req.BookingID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < createOrderAttempts {
			r.sleep(createOrderBackoff << (attempt - 1))
		}
	}
	return Order{}, lastErr
}

// ConfirmCapture reconciles a provider capture against its booking. On a
// clean match the booking payment completes and the capture is recorded in
// the guest's transaction history, atomically. A capture outside tolerance
// flags the booking for manual review and leaves paymentStatus untouched.
// Idempotent by capture id.
func (r *Reconciler) ConfirmCapture(ctx context.Context, cap Capture) (booking.Booking, error) {
	return r.ConfirmCaptureWith(ctx, cap, nil)
}

// ConfirmCaptureWith additionally runs onSettled inside the success
// transaction, after the payment completes but before it commits. The hook
// never runs on mismatch or replay.
func (r *Reconciler) ConfirmCaptureWith(ctx context.Context, cap Capture, onSettled func(ctx context.Context, b booking.Booking) error) (booking.Booking, error) {
	if cap.CaptureID == "" || cap.IntentRef == "" {
		return booking.Booking{}, fmt.Errorf("%w: capture and intent refs are required", ErrInvalidArgument)
	}

	b, err := r.lookupBooking(ctx, cap)
	if err != nil {
		return booking.Booking{}, err
	}

	// Replayed webhook for a capture already reconciled: nothing to do. A
	// booking maps to exactly one capture, so a different capture id against
	// a settled booking is refused, in tolerance or not.
	if b.PaymentStatus == booking.PaymentCompleted {
		if b.CaptureID == cap.CaptureID {
			return b, nil
		}
		return b, fmt.Errorf("%w: %s already settled by capture %s", ErrDuplicateCapture, b.ID, b.CaptureID)
	}

	if !amountsReconcile(b, cap) {
		reason := fmt.Sprintf("capture %s: got %d %s, booking total %d %s",
			cap.CaptureID, cap.AmountMinor, cap.Currency, b.TotalMinor, b.Currency)

		b.ReviewReason = reason
		flagged, err := r.bookings.Update(ctx, b)
		if err != nil {
			return booking.Booking{}, err
		}
		if err := r.audits.LogPaymentMismatch(ctx, b.ID, cap.CaptureID, reason, ""); err != nil {
			logger.From(ctx).Error("audit append failed", slog.String("error", err.Error()))
		}
		return flagged, ErrMismatch
	}

	var out booking.Booking
	err = r.runner.InTx(ctx, func(ctx context.Context) error {
		cur, err := r.bookings.Get(ctx, b.ID)
		if err != nil {
			return err
		}
		if cur.PaymentStatus == booking.PaymentCompleted {
			if cur.CaptureID == cap.CaptureID {
				out = cur
				return nil
			}
			return fmt.Errorf("%w: %s already settled by capture %s", ErrDuplicateCapture, cur.ID, cur.CaptureID)
		}

		cur.PaymentStatus = booking.PaymentCompleted
		cur.CaptureID = cap.CaptureID
		updated, err := r.bookings.Update(ctx, cur)
		if err != nil {
			return err
		}

		// History-only entry; external money never touches the wallet balance.
		if _, err := r.wallets.RecordExternalPayment(ctx, cur.GuestID, cap.AmountMinor, cap.Currency, cur.ID, cap.CaptureID); err != nil {
			return err
		}
		if onSettled != nil {
			if err := onSettled(ctx, updated); err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	if err != nil {
		return booking.Booking{}, err
	}

	if err := r.intents.Delete(ctx, out.ID); err != nil {
		logger.From(ctx).Warn("intent cleanup failed",
			slog.String("booking_id", out.ID), slog.String("error", err.Error()))
	}
	return out, nil
}

// SettleWallet pays the booking from the guest's wallet. Debit and payment
// status move in one atomic unit; an overdraft aborts both.
func (r *Reconciler) SettleWallet(ctx context.Context, bookingID string) (booking.Booking, error) {
	var out booking.Booking
	err := r.runner.InTx(ctx, func(ctx context.Context) error {
		b, err := r.bookings.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.PaymentMethod != booking.MethodWallet {
			return fmt.Errorf("%w: booking pays externally", ErrInvalidArgument)
		}
		if b.PaymentStatus == booking.PaymentCompleted {
			out = b
			return nil
		}

		if _, _, err := r.wallets.Debit(ctx, b.GuestID, wallet.DebitRequest{
			AmountMinor:    b.TotalMinor,
			Currency:       b.Currency,
			BookingID:      b.ID,
			IdempotencyKey: "booking:" + b.ID + ":payment",
			Description:    "booking payment",
		}); err != nil {
			return err
		}

		b.PaymentStatus = booking.PaymentCompleted
		out, err = r.bookings.Update(ctx, b)
		return err
	})
	if err != nil {
		return booking.Booking{}, err
	}
	return out, nil
}

func (r *Reconciler) lookupBooking(ctx context.Context, cap Capture) (booking.Booking, error) {
	if b, ok, err := r.bookings.FindByIntentRef(ctx, cap.IntentRef); err != nil {
		return booking.Booking{}, err
	} else if ok {
		return b, nil
	}
	if cap.BookingID != "" {
		return r.bookings.Get(ctx, cap.BookingID)
	}
	return booking.Booking{}, booking.ErrNotFound
}

func amountsReconcile(b booking.Booking, cap Capture) bool {
	if cap.Currency != b.Currency {
		return false
	}
	diff := cap.AmountMinor - b.TotalMinor
	if diff < 0 {
		diff = -diff
	}
	return diff <= CaptureToleranceMinor
}
