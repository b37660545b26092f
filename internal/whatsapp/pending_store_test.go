package whatsapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisPendingSlotStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisPendingSlotStore(client, ttl, nil)
}

func samplePending() PendingSlot {
	return PendingSlot{
		BusinessID:      "biz-1",
		ServiceID:       "svc-30",
		ServiceName:     "Consulta",
		StartUTC:        time.Date(2026, time.March, 9, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	}
}

func TestRedisSetAndConsume(t *testing.T) {
	_, store := newRedisStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "whatsapp:+5511999990000", samplePending()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Keyed by the normalized number regardless of the inbound format.
	slot, err := store.TryGetAndRemove(ctx, "11 99999-0000")
	if err != nil {
		t.Fatalf("TryGetAndRemove: %v", err)
	}
	if slot == nil {
		t.Fatal("expected pending slot")
	}
	if slot.ServiceID != "svc-30" || !slot.StartUTC.Equal(samplePending().StartUTC) {
		t.Errorf("slot = %+v", slot)
	}

	// Consumed: the second read finds nothing.
	again, err := store.TryGetAndRemove(ctx, "5511999990000")
	if err != nil {
		t.Fatalf("second TryGetAndRemove: %v", err)
	}
	if again != nil {
		t.Fatalf("slot consumed twice: %+v", again)
	}
}

func TestRedisConsumeIsExactlyOnce(t *testing.T) {
	_, store := newRedisStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "5511999990000", samplePending()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var wg sync.WaitGroup
	hits := make(chan *PendingSlot, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := store.TryGetAndRemove(ctx, "5511999990000")
			if err != nil {
				t.Errorf("TryGetAndRemove: %v", err)
				return
			}
			hits <- slot
		}()
	}
	wg.Wait()
	close(hits)

	var won int
	for slot := range hits {
		if slot != nil {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("slot delivered %d times, want exactly once", won)
	}
}

func TestRedisProposalExpires(t *testing.T) {
	mr, store := newRedisStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, "5511999990000", samplePending()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	slot, err := store.TryGetAndRemove(ctx, "5511999990000")
	if err != nil {
		t.Fatalf("TryGetAndRemove: %v", err)
	}
	if slot != nil {
		t.Fatalf("expired slot still delivered: %+v", slot)
	}
}

func TestRedisSecondProposalReplacesFirst(t *testing.T) {
	_, store := newRedisStore(t, time.Hour)
	ctx := context.Background()

	first := samplePending()
	second := samplePending()
	second.StartUTC = first.StartUTC.Add(time.Hour)

	if err := store.Set(ctx, "5511999990000", first); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "5511999990000", second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	slot, err := store.TryGetAndRemove(ctx, "5511999990000")
	if err != nil {
		t.Fatalf("TryGetAndRemove: %v", err)
	}
	if slot == nil || !slot.StartUTC.Equal(second.StartUTC) {
		t.Fatalf("slot = %+v, want the replacement", slot)
	}
}

func TestMemoryStoreMatchesRedisSemantics(t *testing.T) {
	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)
	store := NewMemoryPendingSlotStore(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Set(ctx, "11999990000", samplePending()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	slot, err := store.TryGetAndRemove(ctx, "+55 11 99999-0000")
	if err != nil || slot == nil {
		t.Fatalf("TryGetAndRemove = %+v, %v", slot, err)
	}
	if slot2, _ := store.TryGetAndRemove(ctx, "5511999990000"); slot2 != nil {
		t.Fatal("consumed twice")
	}

	// Expiry.
	if err := store.Set(ctx, "11999990000", samplePending()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if slot3, _ := store.TryGetAndRemove(ctx, "11999990000"); slot3 != nil {
		t.Fatal("expired entry delivered")
	}
}
