package booking

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store useful for tests and early development.
// It honors the same conditional-write discipline as the Postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	bookings map[string]Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[string]Booking)}
}

func (s *MemoryStore) Create(ctx context.Context, b Booking) error {
	_ = ctx
	if b.ID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return ErrInvalidArgument
	}
	b.Version = 1
	s.bookings[b.ID] = b
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Booking, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) FindByIntentRef(ctx context.Context, intentRef string) (Booking, bool, error) {
	_ = ctx
	if intentRef == "" {
		return Booking{}, false, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.IntentRef == intentRef {
			return b, true, nil
		}
	}
	return Booking{}, false, nil
}

func (s *MemoryStore) Update(ctx context.Context, b Booking) (Booking, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bookings[b.ID]
	if !ok {
		return Booking{}, ErrNotFound
	}
	if cur.Version != b.Version {
		return Booking{}, ErrStaleState
	}
	if cur.Status != b.Status {
		if !CanTransition(cur.Status, b.Status) {
			return Booking{}, ErrInvalidTransition
		}
	} else if cur.Status.Terminal() {
		// Closed bookings are immutable, even for same-status field writes.
		return Booking{}, ErrInvalidTransition
	}

	b.Version = cur.Version + 1
	b.CreatedAt = cur.CreatedAt
	s.bookings[b.ID] = b
	return b, nil
}

func (s *MemoryStore) ListByGuest(ctx context.Context, guestID string) ([]Booking, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.GuestID == guestID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByHost(ctx context.Context, hostID string) ([]Booking, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.HostID == hostID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListNeedingReview(ctx context.Context) ([]Booking, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.ReviewReason != "" {
			out = append(out, b)
		}
	}
	return out, nil
}
