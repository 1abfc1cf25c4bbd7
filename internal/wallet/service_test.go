package wallet

import (
	"context"
	"sync"
	"testing"

	"booking-platform/pkg/utils"
)

func TestCredit_LazyWalletAndBalance(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})

	entry, bal, err := svc.Credit(context.Background(), "host-1", CreditRequest{
		AmountMinor:    180000,
		Currency:       "USD",
		BookingID:      "b1",
		IdempotencyKey: "k1",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if bal != 180000 {
		t.Fatalf("expected balance 180000, got %d", bal)
	}
	if entry.Type != TypePaymentReceived {
		t.Fatalf("expected default type payment_received, got %s", entry.Type)
	}
	if entry.AmountMinor != 180000 {
		t.Fatalf("expected signed amount 180000, got %d", entry.AmountMinor)
	}
}

func TestCredit_Idempotent(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})
	req := CreditRequest{AmountMinor: 500, Currency: "USD", IdempotencyKey: "k1"}

	if _, _, err := svc.Credit(context.Background(), "u1", req); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	_, bal, err := svc.Credit(context.Background(), "u1", req)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if bal != 500 {
		t.Fatalf("expected balance 500 after replay, got %d", bal)
	}

	entries, _ := svc.History(context.Background(), "u1")
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
}

func TestDebit_FailsClosedOnInsufficientFunds(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})

	if _, _, err := svc.Credit(context.Background(), "g1", CreditRequest{AmountMinor: 100000, Currency: "USD", IdempotencyKey: "topup"}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, _, err := svc.Debit(context.Background(), "g1", DebitRequest{AmountMinor: 189000, Currency: "USD", IdempotencyKey: "pay"})
	if err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Balance unchanged, no entry appended.
	bal, err := svc.Balance(context.Background(), "g1")
	if err != nil || bal != 100000 {
		t.Fatalf("expected balance 100000, got %d err=%v", bal, err)
	}
	entries, _ := svc.History(context.Background(), "g1")
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
}

func TestDebit_SucceedsWithExactBalance(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, "g1", CreditRequest{AmountMinor: 189000, Currency: "USD", IdempotencyKey: "topup"}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	entry, bal, err := svc.Debit(ctx, "g1", DebitRequest{AmountMinor: 189000, Currency: "USD", BookingID: "b1", IdempotencyKey: "pay"})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal != 0 {
		t.Fatalf("expected balance 0, got %d", bal)
	}
	if entry.AmountMinor != -189000 {
		t.Fatalf("expected signed amount -189000, got %d", entry.AmountMinor)
	}
}

func TestLedgerConservation_UnderConcurrentOps(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			if i%2 == 0 {
				_, _, _ = svc.Credit(ctx, "u1", CreditRequest{AmountMinor: 1000, Currency: "USD", IdempotencyKey: "c" + key})
			} else {
				_, _, _ = svc.Debit(ctx, "u1", DebitRequest{AmountMinor: 700, Currency: "USD", IdempotencyKey: "d" + key})
			}
		}(i)
	}
	wg.Wait()

	bal, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	entries, err := svc.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	var sum int64
	for _, e := range entries {
		if e.Method != MethodWallet {
			continue
		}
		sum += e.AmountMinor
	}
	if sum != bal {
		t.Fatalf("ledger conservation violated: sum=%d balance=%d", sum, bal)
	}
	if bal < 0 {
		t.Fatalf("negative balance: %d", bal)
	}
}

func TestRecordExternalPayment_NoBalanceEffectAndIdempotent(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})
	ctx := context.Background()

	if _, err := svc.RecordExternalPayment(ctx, "g1", 189000, "USD", "b1", "cap_1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.RecordExternalPayment(ctx, "g1", 189000, "USD", "b1", "cap_1"); err != nil {
		t.Fatalf("replay: %v", err)
	}

	bal, err := svc.Balance(ctx, "g1")
	if err != nil || bal != 0 {
		t.Fatalf("expected balance 0, got %d err=%v", bal, err)
	}
	entries, _ := svc.History(ctx, "g1")
	if len(entries) != 1 {
		t.Fatalf("expected one capture entry, got %d", len(entries))
	}
	if entries[0].Method != MethodExternal {
		t.Fatalf("expected external method, got %s", entries[0].Method)
	}
}

func TestService_RejectsInvalidArgs(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, "", CreditRequest{AmountMinor: 100, Currency: "USD", IdempotencyKey: "k"}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.Credit(ctx, "u", CreditRequest{AmountMinor: 0, Currency: "USD", IdempotencyKey: "k"}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.Debit(ctx, "u", DebitRequest{AmountMinor: 100, Currency: "", IdempotencyKey: "k"}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := svc.Debit(ctx, "u", DebitRequest{AmountMinor: 100, Currency: "USD", IdempotencyKey: ""}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

// countingRunner records how many units the service opens.
type countingRunner struct {
	inner utils.SerialRunner
	units int
}

func (r *countingRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.units++
	return r.inner.InTx(ctx, fn)
}

func TestMutations_RunInsideAtomicUnit(t *testing.T) {
	runner := &countingRunner{}
	svc := NewService(NewMemoryRepo(), runner)
	ctx := context.Background()

	if _, _, err := svc.Credit(ctx, "u1", CreditRequest{AmountMinor: 1000, Currency: "USD", IdempotencyKey: "c1"}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, _, err := svc.Debit(ctx, "u1", DebitRequest{AmountMinor: 400, Currency: "USD", IdempotencyKey: "d1"}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := svc.RecordExternalPayment(ctx, "u1", 500, "USD", "b1", "cap_1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if runner.units != 3 {
		t.Fatalf("expected each mutation under its own unit, got %d units", runner.units)
	}
}

func TestCredit_JoinsAmbientUnit(t *testing.T) {
	runner := &utils.SerialRunner{}
	svc := NewService(NewMemoryRepo(), runner)

	// A caller already holding the unit must not deadlock or re-open it.
	err := runner.InTx(context.Background(), func(ctx context.Context) error {
		_, _, err := svc.Credit(ctx, "u1", CreditRequest{AmountMinor: 1000, Currency: "USD", IdempotencyKey: "c1"})
		return err
	})
	if err != nil {
		t.Fatalf("credit inside unit: %v", err)
	}
	bal, err := svc.Balance(context.Background(), "u1")
	if err != nil || bal != 1000 {
		t.Fatalf("expected balance 1000, got %d err=%v", bal, err)
	}
}

func TestBalance_UnknownOwnerReadsZero(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &utils.SerialRunner{})
	bal, err := svc.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 0 {
		t.Fatalf("expected 0, got %d", bal)
	}
}
