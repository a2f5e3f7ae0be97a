package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCooldown(store CooldownStore, clock *fakeClock) *Cooldown {
	return NewCooldown(store, zerolog.Nop(), WithCooldownClock(clock.Now))
}

func TestCooldown_TriggerWithWait(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCooldown(nil, clock)

	if c.Active(ctx) {
		t.Fatal("new cooldown is active")
	}

	until := c.Trigger(ctx, 1500*time.Millisecond)
	if want := clock.Now().Add(1500 * time.Millisecond); !until.Equal(want) {
		t.Errorf("Trigger() = %v, want %v", until, want)
	}
	if got := c.Remaining(ctx); got != 1500*time.Millisecond {
		t.Errorf("Remaining() = %v, want 1.5s", got)
	}

	clock.Advance(1500 * time.Millisecond)
	if c.Active(ctx) {
		t.Error("cooldown still active after its deadline")
	}
}

func TestCooldown_DefaultWait(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCooldown(nil, clock)

	c.Trigger(ctx, 0)
	if got := c.Remaining(ctx); got != DefaultCooldown {
		t.Errorf("Remaining() = %v, want %v", got, DefaultCooldown)
	}

	c2 := NewCooldown(nil, zerolog.Nop(), WithCooldownClock(clock.Now), WithDefaultWait(5*time.Second))
	c2.Trigger(ctx, -1)
	if got := c2.Remaining(ctx); got != 5*time.Second {
		t.Errorf("Remaining() = %v, want 5s", got)
	}
}

func TestCooldown_KeepsLaterDeadline(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCooldown(nil, clock)

	c.Trigger(ctx, time.Minute)
	c.Trigger(ctx, time.Second)

	if got := c.Remaining(ctx); got != time.Minute {
		t.Errorf("Remaining() = %v, want 1m", got)
	}
	if got := c.State(ctx).Triggers; got != 2 {
		t.Errorf("Triggers = %d, want 2", got)
	}
}

func TestCooldown_SharedStore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	a := newTestCooldown(store, clock)
	b := newTestCooldown(store, clock)

	a.Trigger(ctx, 10*time.Second)
	if !b.Active(ctx) {
		t.Error("cooldown triggered through a shared store not visible to peer")
	}

	if err := a.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if a.Active(ctx) {
		t.Error("cooldown active after Reset")
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (time.Time, error) {
	return time.Time{}, errors.New("connection refused")
}
func (failingStore) Extend(context.Context, time.Time) error { return errors.New("connection refused") }
func (failingStore) Reset(context.Context) error             { return errors.New("connection refused") }

func TestCooldown_StoreErrorsFallBackToLocal(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCooldown(failingStore{}, clock)

	c.Trigger(ctx, 3*time.Second)
	if got := c.Remaining(ctx); got != 3*time.Second {
		t.Errorf("Remaining() = %v, want 3s", got)
	}
}

func TestMemoryStore_ExtendOnlyLater(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = s.Extend(ctx, base.Add(time.Minute))
	_ = s.Extend(ctx, base)

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Equal(base.Add(time.Minute)) {
		t.Errorf("Load() = %v, want %v", got, base.Add(time.Minute))
	}
}
