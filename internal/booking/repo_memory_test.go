package booking

import (
	"context"
	"sync"
	"testing"
	"time"
)

func seedBooking(t *testing.T, s *MemoryStore) Booking {
	t.Helper()
	b := Booking{
		ID:            "b1",
		GuestID:       "g1",
		HostID:        "h1",
		ListingID:     "l1",
		Status:        StatusPendingApproval,
		PaymentStatus: PaymentPending,
		PaymentMethod: MethodWallet,
		PaymentTiming: TimingNow,
		Currency:      "USD",
		SubtotalMinor: 180000,
		TotalMinor:    189000,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Create(context.Background(), b); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return got
}

func TestMemoryStore_UpdateRejectsStaleVersion(t *testing.T) {
	s := NewMemoryStore()
	b := seedBooking(t, s)

	first := b
	first.Status = StatusConfirmed
	if _, err := s.Update(context.Background(), first); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Same version again: must fail, not overwrite.
	second := b
	second.Status = StatusRejected
	if _, err := s.Update(context.Background(), second); err != ErrStaleState {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}
}

func TestMemoryStore_UpdateRejectsIllegalEdge(t *testing.T) {
	s := NewMemoryStore()
	b := seedBooking(t, s)

	b.Status = StatusCancelled
	if _, err := s.Update(context.Background(), b); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

// Same-status writes are field updates and stay legal until the booking
// reaches a terminal status; after that the record is immutable.
func TestMemoryStore_SameStatusWrites(t *testing.T) {
	s := NewMemoryStore()
	b := seedBooking(t, s)

	b.PaymentStatus = PaymentCompleted
	b.CaptureID = "cap_1"
	upd, err := s.Update(context.Background(), b)
	if err != nil {
		t.Fatalf("field update: %v", err)
	}

	upd.Status = StatusRejected
	upd, err = s.Update(context.Background(), upd)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}

	upd.RejectReason = "changed my mind"
	if _, err := s.Update(context.Background(), upd); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on terminal write, got %v", err)
	}
}

func TestMemoryStore_ConcurrentCAS_OneWinner(t *testing.T) {
	s := NewMemoryStore()
	b := seedBooking(t, s)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			upd := b
			upd.Status = StatusConfirmed
			_, errs[i] = s.Update(context.Background(), upd)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case ErrStaleState:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning update, got %d", wins)
	}
}

func TestMemoryStore_FindByIntentRef(t *testing.T) {
	s := NewMemoryStore()
	b := seedBooking(t, s)

	b.IntentRef = "pi_123"
	if _, err := s.Update(context.Background(), b); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, ok, err := s.FindByIntentRef(context.Background(), "pi_123")
	if err != nil || !ok {
		t.Fatalf("expected to find booking, ok=%v err=%v", ok, err)
	}
	if got.ID != b.ID {
		t.Fatalf("expected booking %s, got %s", b.ID, got.ID)
	}

	if _, ok, _ := s.FindByIntentRef(context.Background(), "pi_unknown"); ok {
		t.Fatalf("did not expect a match")
	}
}
