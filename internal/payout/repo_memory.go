package payout

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu        sync.Mutex
	transfers map[string]PendingTransfer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transfers: make(map[string]PendingTransfer)}
}

func (s *MemoryStore) Create(_ context.Context, t PendingTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[t.ID] = t
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (PendingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return PendingTransfer{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) FindByBooking(_ context.Context, bookingID string) (PendingTransfer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transfers {
		if t.BookingID == bookingID {
			return t, true, nil
		}
	}
	return PendingTransfer{}, false, nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]PendingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PendingTransfer
	for _, t := range s.transfers {
		if t.Status == TransferPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, t PendingTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transfers[t.ID]; !ok {
		return ErrNotFound
	}
	s.transfers[t.ID] = t
	return nil
}

// MemoryDirectory is an in-memory Directory for tests.
type MemoryDirectory struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[string]Profile)}
}

func (d *MemoryDirectory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.HostID] = p
}

func (d *MemoryDirectory) GetProfile(_ context.Context, hostID string) (Profile, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[hostID]
	return p, ok, nil
}
