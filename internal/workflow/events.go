package workflow

import (
	"context"
	"sync"
	"time"
)

// BookingConfirmedEvent is emitted after a host approval commits. The
// surrounding system owns formatting and delivery.
type BookingConfirmedEvent struct {
	BookingID   string    `json:"booking_id"`
	GuestID     string    `json:"guest_id"`
	HostID      string    `json:"host_id"`
	TotalMinor  int64     `json:"total_minor"`
	PayoutMinor int64     `json:"payout_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	ApprovedAt  time.Time `json:"approved_at"`
}

// BookingCancelledEvent is emitted after a cancellation is approved.
type BookingCancelledEvent struct {
	BookingID   string    `json:"booking_id"`
	GuestID     string    `json:"guest_id"`
	HostID      string    `json:"host_id"`
	TotalMinor  int64     `json:"total_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// Notifier is the outbound event port. Delivery is best-effort; a notifier
// failure never rolls back the state change it announces.
type Notifier interface {
	BookingConfirmed(ctx context.Context, e BookingConfirmedEvent) error
	BookingCancelled(ctx context.Context, e BookingCancelledEvent) error
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) BookingConfirmed(context.Context, BookingConfirmedEvent) error { return nil }
func (NopNotifier) BookingCancelled(context.Context, BookingCancelledEvent) error { return nil }

// MemoryNotifier records events for tests.
type MemoryNotifier struct {
	mu        sync.Mutex
	Confirmed []BookingConfirmedEvent
	Cancelled []BookingCancelledEvent
}

func NewMemoryNotifier() *MemoryNotifier { return &MemoryNotifier{} }

func (n *MemoryNotifier) BookingConfirmed(_ context.Context, e BookingConfirmedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Confirmed = append(n.Confirmed, e)
	return nil
}

func (n *MemoryNotifier) BookingCancelled(_ context.Context, e BookingCancelledEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Cancelled = append(n.Cancelled, e)
	return nil
}

func (n *MemoryNotifier) ConfirmedEvents() []BookingConfirmedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]BookingConfirmedEvent, len(n.Confirmed))
	copy(out, n.Confirmed)
	return out
}

func (n *MemoryNotifier) CancelledEvents() []BookingCancelledEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]BookingCancelledEvent, len(n.Cancelled))
	copy(out, n.Cancelled)
	return out
}
