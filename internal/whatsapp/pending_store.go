package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPendingTTL bounds how long a proposed slot waits for the client's
// "yes" before it silently expires.
const DefaultPendingTTL = time.Hour

// PendingSlot is the slot last proposed to a phone number, held until the
// client confirms or the TTL lapses. Proposing never reserves: the booking
// write path re-checks the conflict when the confirmation lands.
type PendingSlot struct {
	BusinessID      string    `json:"business_id"`
	ServiceID       string    `json:"service_id"`
	ServiceName     string    `json:"service_name"`
	ClientName      string    `json:"client_name,omitempty"`
	StartUTC        time.Time `json:"start_utc"`
	DurationMinutes int       `json:"duration_minutes"`
}

// PendingSlotStore keys proposals by normalized phone number. A later Set for
// the same phone replaces the earlier proposal. TryGetAndRemove must be
// atomic: two racing confirmations for one phone yield the slot exactly once.
type PendingSlotStore interface {
	Set(ctx context.Context, phone string, slot PendingSlot) error
	TryGetAndRemove(ctx context.Context, phone string) (*PendingSlot, error)
}

// RedisPendingSlotStore backs the pending proposals with Redis. GETDEL makes
// the confirm-time read destructive in a single round trip.
type RedisPendingSlotStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisPendingSlotStore wires the store. A non-positive ttl defaults to
// one hour.
func NewRedisPendingSlotStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisPendingSlotStore {
	if client == nil {
		panic("whatsapp: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("agendafacil.internal.whatsapp.pending")
	}
	return &RedisPendingSlotStore{redis: client, ttl: ttl, tracer: tracer}
}

func pendingKey(phone string) string {
	return fmt.Sprintf("pending_slot:%s", phone)
}

// Set stores the proposal under the phone's key, refreshing the TTL.
func (s *RedisPendingSlotStore) Set(ctx context.Context, phone string, slot PendingSlot) error {
	ctx, span := s.tracer.Start(ctx, "whatsapp.pending.set")
	defer span.End()

	phone = NormalizePhone(phone)
	if phone == "" {
		return fmt.Errorf("whatsapp: pending slot needs a phone")
	}
	data, err := json.Marshal(slot)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("whatsapp: marshal pending slot: %w", err)
	}
	if err := s.redis.Set(ctx, pendingKey(phone), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("whatsapp: persist pending slot: %w", err)
	}
	return nil
}

// TryGetAndRemove consumes the proposal for the phone. It returns (nil, nil)
// when nothing is pending or the proposal expired.
func (s *RedisPendingSlotStore) TryGetAndRemove(ctx context.Context, phone string) (*PendingSlot, error) {
	ctx, span := s.tracer.Start(ctx, "whatsapp.pending.consume")
	defer span.End()

	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, nil
	}
	data, err := s.redis.GetDel(ctx, pendingKey(phone)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("whatsapp: consume pending slot: %w", err)
	}

	var slot PendingSlot
	if err := json.Unmarshal(data, &slot); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("whatsapp: decode pending slot: %w", err)
	}
	return &slot, nil
}

// MemoryPendingSlotStore is the in-process twin for tests and local runs.
type MemoryPendingSlotStore struct {
	mu    sync.Mutex
	slots map[string]memoryPending
	ttl   time.Duration
	now   func() time.Time
}

type memoryPending struct {
	slot      PendingSlot
	expiresAt time.Time
}

// NewMemoryPendingSlotStore creates an empty store.
func NewMemoryPendingSlotStore(ttl time.Duration) *MemoryPendingSlotStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &MemoryPendingSlotStore{
		slots: make(map[string]memoryPending),
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock overrides the time source for expiry tests.
func (s *MemoryPendingSlotStore) WithClock(now func() time.Time) *MemoryPendingSlotStore {
	s.now = now
	return s
}

// Set stores or replaces the phone's proposal.
func (s *MemoryPendingSlotStore) Set(ctx context.Context, phone string, slot PendingSlot) error {
	phone = NormalizePhone(phone)
	if phone == "" {
		return fmt.Errorf("whatsapp: pending slot needs a phone")
	}
	s.mu.Lock()
	s.slots[phone] = memoryPending{slot: slot, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// TryGetAndRemove consumes the proposal under the store lock.
func (s *MemoryPendingSlotStore) TryGetAndRemove(ctx context.Context, phone string) (*PendingSlot, error) {
	phone = NormalizePhone(phone)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.slots[phone]
	if !ok {
		return nil, nil
	}
	delete(s.slots, phone)
	if s.now().After(entry.expiresAt) {
		return nil, nil
	}
	slot := entry.slot
	return &slot, nil
}
