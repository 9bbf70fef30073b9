package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for budget tracking.
var (
	budgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kucoin_budget_remaining",
		Help: "Number of requests remaining in the current budget window",
	})

	budgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kucoin_budget_blocks_total",
		Help: "Total number of requests blocked by an exhausted budget window",
	})

	budgetWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kucoin_budget_waits_total",
		Help: "Total number of waits for a budget window reset",
	})
)

// Budget gates requests against a shared fixed-window counter in Redis.
// All processes pointing at the same Redis instance share one budget.
type Budget struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	logger zerolog.Logger
}

// NewBudget creates a request budget backed by the given Redis client.
func NewBudget(redisClient *redis.Client, limit int, window time.Duration, logger zerolog.Logger) *Budget {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Budget{
		redis:  redisClient,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// windowKey returns the Redis key for the window containing now.
func (b *Budget) windowKey(now time.Time) string {
	start := now.Truncate(b.window)
	return fmt.Sprintf("%s%d", RedisKeyPrefix, start.Unix())
}

// windowReset returns when the window containing now ends.
func (b *Budget) windowReset(now time.Time) time.Time {
	return now.Truncate(b.window).Add(b.window)
}

// Allow counts one request against the current window and reports whether
// it fits inside the budget. The count is recorded even when the answer is
// no; fixed windows reset wholesale, there is nothing to give back.
func (b *Budget) Allow(ctx context.Context) (bool, error) {
	now := time.Now()
	key := b.windowKey(now)

	used, err := b.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incr budget window: %w", err)
	}

	// First hit in a window sets its expiry. Two windows of slack so a
	// late State read still sees the counter.
	if used == 1 {
		if err := b.redis.Expire(ctx, key, 2*b.window).Err(); err != nil {
			b.logger.Warn().Err(err).Str("key", key).Msg("Failed to set budget window expiry")
		}
	}

	budgetRemaining.Set(float64(b.limit - int(used)))

	if int(used) > b.limit {
		budgetBlocksTotal.Inc()
		b.logger.Warn().
			Int64("used", used).
			Int("limit", b.limit).
			Time("reset_at", b.windowReset(now)).
			Msg("Request blocked by budget window")
		return false, nil
	}

	return true, nil
}

// Wait blocks until a request fits inside the budget or ctx is done.
func (b *Budget) Wait(ctx context.Context) error {
	for {
		allowed, err := b.Allow(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		budgetWaitsTotal.Inc()
		pause := time.Until(b.windowReset(time.Now()))
		if pause <= 0 {
			pause = 10 * time.Millisecond
		}

		b.logger.Debug().Dur("pause", pause).Msg("Waiting for budget window reset")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

// State reads the current window usage.
func (b *Budget) State(ctx context.Context) (*State, error) {
	now := time.Now()
	used, err := b.redis.Get(ctx, b.windowKey(now)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get budget window: %w", err)
	}

	return &State{
		Used:    used,
		Limit:   b.limit,
		ResetAt: b.windowReset(now),
	}, nil
}
