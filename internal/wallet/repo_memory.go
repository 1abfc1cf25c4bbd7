package wallet

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory ledger useful for tests. It honors the same
// non-negative-balance and append-only constraints as the Postgres repo.
type MemoryRepo struct {
	mu      sync.Mutex
	wallets map[string]*Wallet
	entries []Transaction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{wallets: make(map[string]*Wallet)}
}

func (r *MemoryRepo) GetOrCreateWallet(ctx context.Context, ownerID, currency string) (Wallet, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wallets[ownerID]; ok {
		return *w, nil
	}
	now := time.Now().UTC()
	w := &Wallet{OwnerID: ownerID, BalanceMinor: 0, Currency: currency, CreatedAt: now, UpdatedAt: now}
	r.wallets[ownerID] = w
	return *w, nil
}

func (r *MemoryRepo) FindEntryByKey(ctx context.Context, ownerID, key string) (Transaction, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.OwnerID == ownerID && e.IdempotencyKey == key {
			return e, true, nil
		}
	}
	return Transaction{}, false, nil
}

func (r *MemoryRepo) AppendEntry(ctx context.Context, e Transaction) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) ApplyDelta(ctx context.Context, ownerID string, deltaMinor int64) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[ownerID]
	if !ok {
		return 0, ErrNotFound
	}
	next := w.BalanceMinor + deltaMinor
	if next < 0 {
		return 0, ErrInsufficientFunds
	}
	w.BalanceMinor = next
	w.UpdatedAt = time.Now().UTC()
	return next, nil
}

func (r *MemoryRepo) Balance(ctx context.Context, ownerID string) (int64, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[ownerID]
	if !ok {
		return 0, false, nil
	}
	return w.BalanceMinor, true, nil
}

func (r *MemoryRepo) Entries(ctx context.Context, ownerID string) ([]Transaction, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].OwnerID == ownerID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}
