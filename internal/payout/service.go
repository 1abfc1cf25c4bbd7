package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"booking-platform/internal/audit"
	"booking-platform/internal/booking"
	"booking-platform/internal/wallet"
	"booking-platform/pkg/logger"
	"booking-platform/pkg/utils"
)

var (
	ErrNotFound        = errors.New("payout: not found")
	ErrInvalidArgument = errors.New("payout: invalid argument")
	ErrAlreadySettled  = errors.New("payout: transfer already settled")
)

// Store is the persistence surface for pending transfers.
type Store interface {
	Create(ctx context.Context, t PendingTransfer) error
	Get(ctx context.Context, id string) (PendingTransfer, error)
	FindByBooking(ctx context.Context, bookingID string) (PendingTransfer, bool, error)
	ListPending(ctx context.Context) ([]PendingTransfer, error)
	Update(ctx context.Context, t PendingTransfer) error
}

// Submission is the provider's answer to a payout request.
type Submission struct {
	Status      TransferStatus
	ProviderRef string
	Reason      string
}

// Provider moves money out to the host's external account.
type Provider interface {
	SubmitPayout(ctx context.Context, t PendingTransfer) (Submission, error)
}

// Directory resolves a host's payout profile. A host with no profile on file
// pays out to the internal wallet only.
type Directory interface {
	GetProfile(ctx context.Context, hostID string) (Profile, bool, error)
}

// Dispatcher credits hosts when bookings are approved. The payout amount is
// fee-exclusive: subtotal minus discount, never the service fee.
type Dispatcher struct {
	wallets   *wallet.Service
	transfers Store
	profiles  Directory
	audits    *audit.Service
	runner    utils.AtomicRunner
	clock     func() time.Time
}

func NewDispatcher(wallets *wallet.Service, transfers Store, profiles Directory, audits *audit.Service, runner utils.AtomicRunner) *Dispatcher {
	return &Dispatcher{
		wallets:   wallets,
		transfers: transfers,
		profiles:  profiles,
		audits:    audits,
		runner:    runner,
		clock:     time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// Amount returns the host's share of a booking.
func Amount(b booking.Booking) int64 {
	return b.SubtotalMinor - b.DiscountMinor
}

// Dispatch credits the host for an approved booking. Idempotent per booking.
// When the host's payout method is external, a pending transfer is created in
// the same atomic unit, so the host credit and the outbound transfer record
// cannot diverge. The internal credit happens either way: the wallet ledger
// stays authoritative while the external transfer is pending.
func (d *Dispatcher) Dispatch(ctx context.Context, b booking.Booking) error {
	amount := Amount(b)
	if amount <= 0 {
		return fmt.Errorf("%w: payout amount must be positive", ErrInvalidArgument)
	}
	if b.PaymentStatus != booking.PaymentCompleted {
		return fmt.Errorf("%w: booking payment not completed", ErrInvalidArgument)
	}

	profile, hasProfile, err := d.profiles.GetProfile(ctx, b.HostID)
	if err != nil {
		return err
	}

	return d.runner.InTx(ctx, func(ctx context.Context) error {
		if _, _, err := d.wallets.Credit(ctx, b.HostID, wallet.CreditRequest{
			AmountMinor:    amount,
			Currency:       b.Currency,
			Type:           wallet.TypePaymentReceived,
			BookingID:      b.ID,
			IdempotencyKey: "booking:" + b.ID + ":payout",
			Description:    "booking payout",
		}); err != nil {
			return err
		}

		if !hasProfile || profile.Method != MethodExternal {
			return nil
		}
		if _, ok, err := d.transfers.FindByBooking(ctx, b.ID); err != nil {
			return err
		} else if ok {
			return nil
		}

		now := d.clock().UTC()
		return d.transfers.Create(ctx, PendingTransfer{
			ID:             uuid.NewString(),
			BookingID:      b.ID,
			HostID:         b.HostID,
			AmountMinor:    amount,
			Currency:       b.Currency,
			ExternalMethod: profile.ExternalMethod,
			AccountRef:     profile.AccountRef,
			Status:         TransferPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	})
}

// Settle submits one pending transfer to the provider and records the
// outcome. A provider-side PENDING answer leaves the transfer queued for the
// next sweep.
func (d *Dispatcher) Settle(ctx context.Context, transferID string, provider Provider) (PendingTransfer, error) {
	t, err := d.transfers.Get(ctx, transferID)
	if err != nil {
		return PendingTransfer{}, err
	}
	if t.Status != TransferPending {
		return t, ErrAlreadySettled
	}

	sub, err := provider.SubmitPayout(ctx, t)
	if err != nil {
		return PendingTransfer{}, err
	}

	switch sub.Status {
	case TransferSuccess:
		t.Status = TransferSuccess
		t.ProviderRef = sub.ProviderRef
	case TransferFailed:
		t.Status = TransferFailed
		t.FailureReason = sub.Reason
	case TransferPending:
		// Provider accepted but has not moved the money yet.
		t.ProviderRef = sub.ProviderRef
	default:
		return PendingTransfer{}, fmt.Errorf("%w: provider status %q", ErrInvalidArgument, sub.Status)
	}
	t.UpdatedAt = d.clock().UTC()

	if err := d.transfers.Update(ctx, t); err != nil {
		return PendingTransfer{}, err
	}

	if t.Status == TransferFailed {
		if err := d.audits.LogPayoutFailed(ctx, t.BookingID, sub.Reason, ""); err != nil {
			logger.From(ctx).Error("audit append failed", slog.String("error", err.Error()))
		}
	}
	return t, nil
}

// SettlePending sweeps the pending queue through the provider. Errors on one
// transfer do not stop the sweep.
func (d *Dispatcher) SettlePending(ctx context.Context, provider Provider) (int, error) {
	pending, err := d.transfers.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, t := range pending {
		out, err := d.Settle(ctx, t.ID, provider)
		if err != nil {
			logger.From(ctx).Warn("payout settle failed",
				slog.String("transfer_id", t.ID), slog.String("error", err.Error()))
			continue
		}
		if out.Status == TransferSuccess {
			settled++
		}
	}
	return settled, nil
}
