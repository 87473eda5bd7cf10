package channels

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys caps the number of tracked rate-limit keys to prevent
// memory exhaustion from a sender rotating thread/channel keys.
const maxTrackedKeys = 4096

// OutboundLimiter bounds outbound send rate per (channel, thread) key,
// evicting arbitrary entries (map iteration order) once the tracked-key
// cap is hit.
// Safe for concurrent use.
type OutboundLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rps       float64
	burst     int
}

// NewOutboundLimiter builds a limiter allowing rps sends per second per
// key, with burst allowance burst.
func NewOutboundLimiter(rps float64, burst int) *OutboundLimiter {
	return &OutboundLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

// Allow reports whether a send for key is permitted right now.
func (l *OutboundLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.limiters) >= maxTrackedKeys {
		for k := range l.limiters {
			delete(l.limiters, k)
			if len(l.limiters) < maxTrackedKeys {
				break
			}
		}
	}

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.limiters[key] = lim
	}
	return lim.Allow()
}

// Wait blocks until a send for key is permitted or ctx is cancelled.
func (l *OutboundLimiter) Wait(ctx context.Context, key string) error {
	// Reserves one token and sleeps for the reservation's delay,
	// cancelling the reservation if ctx ends first. A reservation that
	// is not OK returns nil at once without waiting.
	for {
		l.mu.Lock()
		lim, ok := l.limiters[key]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
			l.limiters[key] = lim
		}
		l.mu.Unlock()

		r := lim.Reserve()
		if !r.OK() {
			return nil
		}
		delay := r.Delay()
		if delay <= 0 {
			return nil
		}
		select {
		case <-time.After(delay):
			return nil
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
}
