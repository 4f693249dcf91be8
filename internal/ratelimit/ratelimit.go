package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum delay between consecutive external API calls.
// The LLM provider rate-limits reactively; pacing every call keeps the
// batch under the quota proactively instead of burning retries.
type Pacer struct {
	delay      time.Duration
	mu         sync.Mutex
	lastAction time.Time
}

func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait blocks until at least the configured delay has passed since the
// previous call, or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.lastAction)
	if elapsed < p.delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay - elapsed):
		}
	}

	p.lastAction = time.Now()
	return nil
}

// SetDelay adjusts the pacing interval.
func (p *Pacer) SetDelay(delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = delay
}
