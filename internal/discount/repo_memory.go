package discount

import (
	"context"
	"sync"
)

// MemoryCouponRepo is an in-memory CouponRepository for tests.
type MemoryCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*Coupon // keyed by id
	usedKey map[string]bool    // idempotency keys already committed
}

func NewMemoryCouponRepo() *MemoryCouponRepo {
	return &MemoryCouponRepo{
		coupons: make(map[string]*Coupon),
		usedKey: make(map[string]bool),
	}
}

func (r *MemoryCouponRepo) Put(c Coupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := c
	r.coupons[c.ID] = &cp
}

func (r *MemoryCouponRepo) FindCouponByCode(_ context.Context, hostID, code string) (Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.coupons {
		if c.HostID == hostID && c.Code == code {
			return *c, nil
		}
	}
	return Coupon{}, ErrNotFound
}

func (r *MemoryCouponRepo) CommitCouponUse(_ context.Context, couponID, idempotencyKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usedKey[idempotencyKey] {
		return nil
	}
	c, ok := r.coupons[couponID]
	if !ok {
		return ErrNotFound
	}
	if c.MaxUses > 0 && c.UsageCount >= c.MaxUses {
		return ErrUsageExceeded
	}
	c.UsageCount++
	r.usedKey[idempotencyKey] = true
	return nil
}

// MemoryVoucherRepo is an in-memory VoucherRepository for tests.
type MemoryVoucherRepo struct {
	mu       sync.Mutex
	vouchers map[string]*Voucher // keyed by id
	usedKey  map[string]bool
}

func NewMemoryVoucherRepo() *MemoryVoucherRepo {
	return &MemoryVoucherRepo{
		vouchers: make(map[string]*Voucher),
		usedKey:  make(map[string]bool),
	}
}

func (r *MemoryVoucherRepo) Put(v Voucher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := v
	r.vouchers[v.ID] = &cp
}

func (r *MemoryVoucherRepo) FindVoucherByCode(_ context.Context, code string) (Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vouchers {
		if v.Code == code {
			return *v, nil
		}
	}
	return Voucher{}, ErrNotFound
}

func (r *MemoryVoucherRepo) ClaimVoucher(_ context.Context, code, guestID string) (Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vouchers {
		if v.Code != code {
			continue
		}
		switch v.ClaimedBy {
		case "":
			v.ClaimedBy = guestID
		case guestID:
			// already held, claiming again is harmless
		default:
			return Voucher{}, ErrAlreadyClaimed
		}
		return *v, nil
	}
	return Voucher{}, ErrNotFound
}

func (r *MemoryVoucherRepo) CommitVoucherUse(_ context.Context, voucherID, idempotencyKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usedKey[idempotencyKey] {
		return nil
	}
	v, ok := r.vouchers[voucherID]
	if !ok {
		return ErrNotFound
	}
	if v.UsageLimit > 0 && v.UsageCount >= v.UsageLimit {
		return ErrUsageExceeded
	}
	v.UsageCount++
	r.usedKey[idempotencyKey] = true
	return nil
}
