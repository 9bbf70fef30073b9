package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis creates a test Redis client, skipping if unavailable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestBudget_AllowWithinLimit(t *testing.T) {
	client := setupTestRedis(t)
	budget := NewBudget(client, 5, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := budget.Allow(ctx)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d blocked, want allowed", i+1)
		}
	}
}

func TestBudget_BlocksOverLimit(t *testing.T) {
	client := setupTestRedis(t)
	budget := NewBudget(client, 3, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := budget.Allow(ctx); err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
	}

	allowed, err := budget.Allow(ctx)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("request over the limit was allowed")
	}
}

func TestBudget_SharedAcrossInstances(t *testing.T) {
	client := setupTestRedis(t)
	first := NewBudget(client, 2, time.Minute, zerolog.Nop())
	second := NewBudget(client, 2, time.Minute, zerolog.Nop())
	ctx := context.Background()

	first.Allow(ctx)
	second.Allow(ctx)

	allowed, err := first.Allow(ctx)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("budget is not shared: third request across instances was allowed")
	}
}

func TestBudget_State(t *testing.T) {
	client := setupTestRedis(t)
	budget := NewBudget(client, 10, time.Minute, zerolog.Nop())
	ctx := context.Background()

	state, err := budget.State(ctx)
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if state.Used != 0 {
		t.Errorf("fresh window used = %d, want 0", state.Used)
	}

	for i := 0; i < 4; i++ {
		budget.Allow(ctx)
	}

	state, err = budget.State(ctx)
	if err != nil {
		t.Fatalf("State() error: %v", err)
	}
	if state.Used != 4 {
		t.Errorf("used = %d, want 4", state.Used)
	}
	if state.Remaining() != 6 {
		t.Errorf("remaining = %d, want 6", state.Remaining())
	}
	if state.ResetAt.Before(time.Now()) {
		t.Error("reset time is in the past")
	}
}

func TestBudget_WaitReturnsImmediatelyWhenAllowed(t *testing.T) {
	client := setupTestRedis(t)
	budget := NewBudget(client, 5, time.Minute, zerolog.Nop())

	start := time.Now()
	if err := budget.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait() took %v with budget available", elapsed)
	}
}

func TestBudget_WaitHonoursContextCancellation(t *testing.T) {
	client := setupTestRedis(t)
	budget := NewBudget(client, 1, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Exhaust the window, then wait on it.
	budget.Allow(ctx)
	budget.Allow(ctx)

	err := budget.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() returned nil on an exhausted hour-long window")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestBudget_DefaultsApplied(t *testing.T) {
	budget := NewBudget(nil, 0, 0, zerolog.Nop())
	if budget.limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", budget.limit, DefaultLimit)
	}
	if budget.window != DefaultWindow {
		t.Errorf("window = %v, want %v", budget.window, DefaultWindow)
	}
}
