package limiter

import (
	"fmt"
	"sync"

	"github.com/sweetpotato0/miniagent/middleware"
)

// ErrRateLimitExceeded indicates rate limit has been exceeded
var ErrRateLimitExceeded = middleware.ErrRateLimitExceeded

// RateLimiter caps the number of tool calls per run. Counts are dropped when
// the agent finishes the run.
type RateLimiter struct {
	maxCalls int

	mu     sync.Mutex
	counts map[string]int
}

// NewRateLimiter allows at most maxCalls tool calls per run ID.
func NewRateLimiter(maxCalls int) *RateLimiter {
	return &RateLimiter{maxCalls: maxCalls, counts: make(map[string]int)}
}

// Name returns the middleware name
func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute checks rate limit
func (m *RateLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	m.mu.Lock()
	if m.counts[ctx.RunID] >= m.maxCalls {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d tool calls per run", ErrRateLimitExceeded, m.maxCalls)
	}
	m.counts[ctx.RunID]++
	m.mu.Unlock()

	return next(ctx)
}

// Reset forgets the count for runID.
func (m *RateLimiter) Reset(runID string) {
	m.mu.Lock()
	delete(m.counts, runID)
	m.mu.Unlock()
}

// FinishRun drops the count of a finished run.
func (m *RateLimiter) FinishRun(runID string) {
	m.Reset(runID)
}

// Count returns the number of calls admitted for runID.
func (m *RateLimiter) Count(runID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[runID]
}
