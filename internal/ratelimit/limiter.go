// Package ratelimit provides a token bucket throttle for transfer
// throughput. Tokens are bytes; a transfer chunk spends its size and waits
// when the bucket runs dry.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket over bytes. It allows bursts up to the bucket
// capacity, then refills at the configured rate.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // bytes per second
	lastRefill time.Time
}

// New creates a limiter allowing bytesPerSecond sustained throughput with
// bursts up to burst bytes. The bucket starts full.
func New(bytesPerSecond, burst int64) *Limiter {
	if burst < bytesPerSecond {
		burst = bytesPerSecond
	}
	return &Limiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: float64(bytesPerSecond),
		lastRefill: time.Now(),
	}
}

// WaitN blocks until n bytes worth of tokens are available or the context is
// cancelled. Requests larger than the bucket are still served, one bucket at
// a time.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	remaining := float64(n)
	for remaining > 0 {
		l.mu.Lock()
		l.refill()

		take := remaining
		if take > l.maxTokens {
			take = l.maxTokens
		}
		if l.tokens >= take {
			l.tokens -= take
			remaining -= take
			l.mu.Unlock()
			continue
		}
		wait := time.Duration((take - l.tokens) / l.refillRate * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// refill adds tokens for the time elapsed since the last refill. Callers
// must hold mu.
func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
}
