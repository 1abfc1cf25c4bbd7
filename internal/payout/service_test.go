package payout

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-platform/internal/audit"
	"booking-platform/internal/booking"
	"booking-platform/internal/wallet"
	"booking-platform/pkg/utils"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	submission Submission
	err        error
	calls      int
}

func (p *fakeProvider) SubmitPayout(_ context.Context, _ PendingTransfer) (Submission, error) {
	p.calls++
	return p.submission, p.err
}

func paidBooking(method booking.PaymentMethod) booking.Booking {
	return booking.Booking{
		ID: "bkg-1", GuestID: "guest-1", HostID: "host-1", ListingID: "lst-1",
		Status:        booking.StatusConfirmed,
		PaymentStatus: booking.PaymentCompleted,
		PaymentMethod: method,
		Currency:      "USD",
		SubtotalMinor: 200000, DiscountMinor: 20000,
		ServiceFeeMinor: 9000, TotalMinor: 189000,
	}
}

func newDispatcher(t *testing.T) (*Dispatcher, *wallet.Service, *MemoryStore, *MemoryDirectory, *audit.MemoryRepo) {
	t.Helper()
	runner := &utils.SerialRunner{}
	wallets := wallet.NewService(wallet.NewMemoryRepo(), runner)
	transfers := NewMemoryStore()
	profiles := NewMemoryDirectory()
	audits := audit.NewMemoryRepo()
	d := NewDispatcher(wallets, transfers, profiles, audit.NewService(audits), runner).
		WithClock(func() time.Time { return testNow })
	return d, wallets, transfers, profiles, audits
}

func externalHost(profiles *MemoryDirectory) {
	profiles.Put(Profile{
		HostID: "host-1", Method: MethodExternal,
		ExternalMethod: "bank_transfer", AccountRef: "acct-42",
	})
}

func TestDispatchCreditsFeeExclusiveAmount(t *testing.T) {
	d, wallets, transfers, _, _ := newDispatcher(t)

	if err := d.Dispatch(context.Background(), paidBooking(booking.MethodWallet)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// Host receives subtotal minus discount; the service fee stays with the
	// platform.
	balance, err := wallets.Balance(context.Background(), "host-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 180000 {
		t.Fatalf("host balance = %d, want 180000", balance)
	}

	// No payout profile on file means wallet payout: no outbound transfer.
	if _, ok, _ := transfers.FindByBooking(context.Background(), "bkg-1"); ok {
		t.Fatal("unexpected pending transfer for wallet-payout host")
	}
}

func TestDispatchIdempotentPerBooking(t *testing.T) {
	d, wallets, _, _, _ := newDispatcher(t)

	b := paidBooking(booking.MethodWallet)
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), b); err != nil {
			t.Fatalf("Dispatch attempt %d: %v", i+1, err)
		}
	}

	balance, _ := wallets.Balance(context.Background(), "host-1")
	if balance != 180000 {
		t.Fatalf("host balance = %d, want one credit of 180000", balance)
	}
}

// The transfer trigger is the host's payout method, not how the guest paid: a
// wallet-paid booking for an external-payout host still queues a settlement
// obligation carrying the host's channel and account.
func TestDispatchExternalHostCreatesPendingTransfer(t *testing.T) {
	d, wallets, transfers, profiles, _ := newDispatcher(t)
	externalHost(profiles)

	if err := d.Dispatch(context.Background(), paidBooking(booking.MethodWallet)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	tr, ok, err := transfers.FindByBooking(context.Background(), "bkg-1")
	if err != nil || !ok {
		t.Fatalf("FindByBooking: ok=%v err=%v", ok, err)
	}
	if tr.AmountMinor != 180000 || tr.Status != TransferPending {
		t.Fatalf("transfer = %+v", tr)
	}
	if tr.ExternalMethod != "bank_transfer" || tr.AccountRef != "acct-42" {
		t.Fatalf("transfer channel = %q/%q, want bank_transfer/acct-42", tr.ExternalMethod, tr.AccountRef)
	}

	// The internal ledger stays authoritative: the credit lands either way.
	balance, _ := wallets.Balance(context.Background(), "host-1")
	if balance != 180000 {
		t.Fatalf("host balance = %d, want 180000", balance)
	}

	// Retried dispatch must not queue a second transfer.
	if err := d.Dispatch(context.Background(), paidBooking(booking.MethodWallet)); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	pending, _ := transfers.ListPending(context.Background())
	if len(pending) != 1 {
		t.Fatalf("pending transfers = %d, want 1", len(pending))
	}
}

// The converse: an externally paid booking for a wallet-payout host settles
// entirely inside the ledger.
func TestDispatchWalletHostNoTransferForExternalPayment(t *testing.T) {
	d, wallets, transfers, profiles, _ := newDispatcher(t)
	profiles.Put(Profile{HostID: "host-1", Method: MethodWallet})

	if err := d.Dispatch(context.Background(), paidBooking(booking.MethodExternal)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if _, ok, _ := transfers.FindByBooking(context.Background(), "bkg-1"); ok {
		t.Fatal("unexpected pending transfer for wallet-payout host")
	}
	balance, _ := wallets.Balance(context.Background(), "host-1")
	if balance != 180000 {
		t.Fatalf("host balance = %d, want 180000", balance)
	}
}

func TestDispatchRejectsUnpaidBooking(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)

	b := paidBooking(booking.MethodWallet)
	b.PaymentStatus = booking.PaymentPending
	if err := d.Dispatch(context.Background(), b); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSettleOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		submission Submission
		wantStatus TransferStatus
		wantAudit  int
	}{
		{"success", Submission{Status: TransferSuccess, ProviderRef: "prov-1"}, TransferSuccess, 0},
		{"failed", Submission{Status: TransferFailed, Reason: "account closed"}, TransferFailed, 1},
		{"still pending", Submission{Status: TransferPending, ProviderRef: "prov-1"}, TransferPending, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, _, transfers, profiles, audits := newDispatcher(t)
			externalHost(profiles)
			if err := d.Dispatch(context.Background(), paidBooking(booking.MethodExternal)); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			tr, _, _ := transfers.FindByBooking(context.Background(), "bkg-1")

			got, err := d.Settle(context.Background(), tr.ID, &fakeProvider{submission: tc.submission})
			if err != nil {
				t.Fatalf("Settle: %v", err)
			}
			if got.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q", got.Status, tc.wantStatus)
			}
			if got.ProviderRef != tc.submission.ProviderRef {
				t.Fatalf("provider_ref = %q, want %q", got.ProviderRef, tc.submission.ProviderRef)
			}
			if events := audits.Events(); len(events) != tc.wantAudit {
				t.Fatalf("audit events = %d, want %d", len(events), tc.wantAudit)
			}
		})
	}
}

func TestSettleRefusesSettledTransfer(t *testing.T) {
	d, _, transfers, profiles, _ := newDispatcher(t)
	externalHost(profiles)
	if err := d.Dispatch(context.Background(), paidBooking(booking.MethodExternal)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	tr, _, _ := transfers.FindByBooking(context.Background(), "bkg-1")

	provider := &fakeProvider{submission: Submission{Status: TransferSuccess, ProviderRef: "prov-1"}}
	if _, err := d.Settle(context.Background(), tr.ID, provider); err != nil {
		t.Fatalf("first Settle: %v", err)
	}
	if _, err := d.Settle(context.Background(), tr.ID, provider); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("err = %v, want ErrAlreadySettled", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}
}

func TestSettlePendingSweep(t *testing.T) {
	d, _, transfers, profiles, _ := newDispatcher(t)
	externalHost(profiles)

	for _, id := range []string{"bkg-1", "bkg-2", "bkg-3"} {
		b := paidBooking(booking.MethodExternal)
		b.ID = id
		if err := d.Dispatch(context.Background(), b); err != nil {
			t.Fatalf("Dispatch %s: %v", id, err)
		}
	}

	settled, err := d.SettlePending(context.Background(), &fakeProvider{
		submission: Submission{Status: TransferSuccess, ProviderRef: "prov-1"},
	})
	if err != nil {
		t.Fatalf("SettlePending: %v", err)
	}
	if settled != 3 {
		t.Fatalf("settled = %d, want 3", settled)
	}
	pending, _ := transfers.ListPending(context.Background())
	if len(pending) != 0 {
		t.Fatalf("pending after sweep = %d, want 0", len(pending))
	}
}
