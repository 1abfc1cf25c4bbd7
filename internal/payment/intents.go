package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Intent is the tracked lifetime of an opened external payment. Intents are
// expiring state, not bookkeeping; the durable record lives on the booking and
// in the ledger.
type Intent struct {
	BookingID   string    `json:"booking_id"`
	IntentRef   string    `json:"intent_ref"`
	ApproveURL  string    `json:"approve_url,omitempty"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// IntentStore tracks open intents with a TTL so abandoned checkouts age out
// instead of accumulating.
type IntentStore interface {
	// PutIfAbsent stores the intent unless one already exists for the booking,
	// in which case the existing intent is returned. Retried opens reuse the
	// original provider order.
	PutIfAbsent(ctx context.Context, in Intent, ttl time.Duration) (Intent, error)
	Get(ctx context.Context, bookingID string) (Intent, error)
	Delete(ctx context.Context, bookingID string) error
}

// putIfAbsentScript returns the stored value, writing ARGV[1] first when the
// key is empty. GET and SET must be one round trip or two concurrent opens
// could both create provider orders.
var putIfAbsentScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing then
  return existing
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return ARGV[1]
`)

// RedisIntentStore keeps open intents in Redis keyed by booking id.
type RedisIntentStore struct {
	rdb *redis.Client
}

func NewRedisIntentStore(rdb *redis.Client) *RedisIntentStore {
	return &RedisIntentStore{rdb: rdb}
}

func intentKey(bookingID string) string {
	return "payment:intent:" + bookingID
}

func (s *RedisIntentStore) PutIfAbsent(ctx context.Context, in Intent, ttl time.Duration) (Intent, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return Intent{}, fmt.Errorf("encode intent: %w", err)
	}

	res, err := putIfAbsentScript.Run(ctx, s.rdb, []string{intentKey(in.BookingID)}, raw, ttl.Milliseconds()).Text()
	if err != nil {
		return Intent{}, fmt.Errorf("store intent: %w", err)
	}

	var out Intent
	if err := json.Unmarshal([]byte(res), &out); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return out, nil
}

func (s *RedisIntentStore) Get(ctx context.Context, bookingID string) (Intent, error) {
	raw, err := s.rdb.Get(ctx, intentKey(bookingID)).Result()
	if errors.Is(err, redis.Nil) {
		return Intent{}, ErrNotFound
	}
	if err != nil {
		return Intent{}, fmt.Errorf("load intent: %w", err)
	}

	var out Intent
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return out, nil
}

func (s *RedisIntentStore) Delete(ctx context.Context, bookingID string) error {
	if err := s.rdb.Del(ctx, intentKey(bookingID)).Err(); err != nil {
		return fmt.Errorf("delete intent: %w", err)
	}
	return nil
}

// MemoryIntentStore is an in-memory IntentStore for tests. TTLs are honored
// lazily on read.
type MemoryIntentStore struct {
	mu      sync.Mutex
	intents map[string]memoryIntent
	clock   func() time.Time
}

type memoryIntent struct {
	intent    Intent
	expiresAt time.Time
}

func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{
		intents: make(map[string]memoryIntent),
		clock:   time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *MemoryIntentStore) WithClock(clock func() time.Time) *MemoryIntentStore {
	s.clock = clock
	return s
}

func (s *MemoryIntentStore) PutIfAbsent(_ context.Context, in Intent, ttl time.Duration) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if cur, ok := s.intents[in.BookingID]; ok && now.Before(cur.expiresAt) {
		return cur.intent, nil
	}
	s.intents[in.BookingID] = memoryIntent{intent: in, expiresAt: now.Add(ttl)}
	return in, nil
}

func (s *MemoryIntentStore) Get(_ context.Context, bookingID string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.intents[bookingID]
	if !ok || !s.clock().Before(cur.expiresAt) {
		return Intent{}, ErrNotFound
	}
	return cur.intent, nil
}

func (s *MemoryIntentStore) Delete(_ context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, bookingID)
	return nil
}
