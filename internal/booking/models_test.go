package booking

import "testing"

func TestComputeTotals(t *testing.T) {
	// subtotal 2000.00, discount 200.00 -> fee 90.00, total 1890.00
	fee, total, err := ComputeTotals(200000, 20000)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if fee != 9000 {
		t.Fatalf("expected fee 9000, got %d", fee)
	}
	if total != 189000 {
		t.Fatalf("expected total 189000, got %d", total)
	}
}

func TestComputeTotals_RoundsHalfUp(t *testing.T) {
	// discounted 1.90 -> 5% is 0.095, rounds to 0.10
	fee, total, err := ComputeTotals(190, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if fee != 10 {
		t.Fatalf("expected fee 10, got %d", fee)
	}
	if total != 200 {
		t.Fatalf("expected total 200, got %d", total)
	}
}

func TestComputeTotals_AmountIdentity(t *testing.T) {
	cases := []struct{ subtotal, discount int64 }{
		{100, 0},
		{999, 333},
		{180000, 0},
		{200000, 200000},
	}
	for _, c := range cases {
		fee, total, err := ComputeTotals(c.subtotal, c.discount)
		if err != nil {
			t.Fatalf("unexpected err for %+v: %v", c, err)
		}
		if total != c.subtotal-c.discount+fee {
			t.Fatalf("identity violated for %+v: fee=%d total=%d", c, fee, total)
		}
		if total < 0 {
			t.Fatalf("negative total for %+v", c)
		}
	}
}

func TestComputeTotals_RejectsInvalid(t *testing.T) {
	if _, _, err := ComputeTotals(0, 0); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount for zero subtotal, got %v", err)
	}
	if _, _, err := ComputeTotals(100, -1); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount for negative discount, got %v", err)
	}
	if _, _, err := ComputeTotals(100, 101); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount for discount > subtotal, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	legal := [][2]Status{
		{StatusPendingApproval, StatusConfirmed},
		{StatusPendingApproval, StatusRejected},
		{StatusConfirmed, StatusPendingCancellation},
		{StatusConfirmed, StatusCompleted},
		{StatusPendingCancellation, StatusCancelled},
		{StatusPendingCancellation, StatusConfirmed},
	}
	for _, e := range legal {
		if !CanTransition(e[0], e[1]) {
			t.Fatalf("expected %s -> %s to be legal", e[0], e[1])
		}
	}

	illegal := [][2]Status{
		{StatusPendingApproval, StatusCancelled},
		{StatusPendingApproval, StatusCompleted},
		{StatusRejected, StatusConfirmed},
		{StatusCancelled, StatusConfirmed},
		{StatusCompleted, StatusConfirmed},
		{StatusConfirmed, StatusRejected},
		// A status is never an edge to itself.
		{StatusConfirmed, StatusConfirmed},
		{StatusPendingCancellation, StatusPendingCancellation},
		{StatusCancelled, StatusCancelled},
	}
	for _, e := range illegal {
		if CanTransition(e[0], e[1]) {
			t.Fatalf("expected %s -> %s to be illegal", e[0], e[1])
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusCancelled, StatusCompleted} {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPendingApproval, StatusConfirmed, StatusPendingCancellation} {
		if s.Terminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}
