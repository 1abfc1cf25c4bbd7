package booking

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("booking: not found")

	// ErrStaleState signals that the booking changed between read and write.
	// Callers may re-fetch and re-attempt once.
	ErrStaleState = errors.New("booking: state changed since read")

	// ErrInvalidTransition signals a status edge outside the whitelist.
	ErrInvalidTransition = errors.New("booking: illegal status transition")

	ErrInvalidArgument = errors.New("booking: invalid argument")
)

// Store is the persistence contract for bookings.
//
// Update is a conditional write: it succeeds only if the stored version equals
// b.Version (the version read alongside the mutation), and only along a legal
// status edge. This makes transitions on one booking id linearizable even when
// guest, host and gateway callbacks race.
type Store interface {
	Create(ctx context.Context, b Booking) error
	Get(ctx context.Context, id string) (Booking, error)
	FindByIntentRef(ctx context.Context, intentRef string) (Booking, bool, error)

	// Update persists b if the stored version matches b.Version, bumping the
	// version. Returns ErrStaleState on a version mismatch and
	// ErrInvalidTransition when the status edge is not whitelisted.
	Update(ctx context.Context, b Booking) (Booking, error)

	ListByGuest(ctx context.Context, guestID string) ([]Booking, error)
	ListByHost(ctx context.Context, hostID string) ([]Booking, error)

	// ListNeedingReview returns bookings flagged for manual reconciliation.
	ListNeedingReview(ctx context.Context) ([]Booking, error)
}
