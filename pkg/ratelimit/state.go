// Package ratelimit implements a client-side request budget shared across
// dumper processes via Redis. The historical data host publishes no rate
// limit headers, so the budget is a politeness cap: a fixed window counter
// that gates how many archive requests all processes may issue per window.
package ratelimit

import (
	"time"
)

// Redis key prefix for budget window counters.
const RedisKeyPrefix = "kucoin:budget:"

// Default budget parameters.
const (
	// DefaultLimit is the default number of requests allowed per window.
	DefaultLimit = 300

	// DefaultWindow is the default budget window length.
	DefaultWindow = time.Minute
)

// State represents the budget usage within the current window.
type State struct {
	// Used is the number of requests counted in the current window.
	Used int `json:"used"`

	// Limit is the maximum number of requests allowed per window.
	Limit int `json:"limit"`

	// ResetAt is when the current window ends and the counter resets.
	ResetAt time.Time `json:"reset_at"`
}

// Remaining returns the number of requests left in the current window.
// Never negative.
func (s *State) Remaining() int {
	remaining := s.Limit - s.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted reports whether the window budget is used up.
func (s *State) Exhausted() bool {
	return s.Used >= s.Limit
}

// NeedsThrottling reports whether usage has crossed 80% of the budget.
// Callers may slow dispatch before hitting a hard block.
func (s *State) NeedsThrottling() bool {
	return !s.Exhausted() && s.Used*5 >= s.Limit*4
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
