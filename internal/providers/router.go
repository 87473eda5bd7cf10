package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

// Router implements the primary/fallback selection: health
// caching with a short TTL, quota cooldown, and a circuit breaker per
// provider on top of RetryDo's per-call retries.
type Router struct {
	primary  Provider
	fallback Provider
	events   *eventlog.Writer

	healthTTL     time.Duration
	quotaCooldown time.Duration

	mu            sync.Mutex
	healthCache   map[string]healthEntry
	cooldownUntil map[string]time.Time

	breakers map[string]*gobreaker.CircuitBreaker
}

type healthEntry struct {
	healthy   bool
	checkedAt time.Time
}

func NewRouter(primary, fallback Provider, events *eventlog.Writer, healthTTL, quotaCooldown time.Duration) *Router {
	r := &Router{
		primary:       primary,
		fallback:      fallback,
		events:        events,
		healthTTL:     healthTTL,
		quotaCooldown: quotaCooldown,
		healthCache:   make(map[string]healthEntry),
		cooldownUntil: make(map[string]time.Time),
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
	}
	r.breakers[primary.Name()] = newBreaker(primary.Name())
	r.breakers[fallback.Name()] = newBreaker(fallback.Name())
	return r
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Generate tries the primary provider unless it's in a cooldown window,
// falling back to the secondary provider on any primary error. Errors are
// not sorted into transient and permanent before the fallback is tried.
func (r *Router) Generate(ctx context.Context, req GenerateRequest, traceID, spanID, parentSpanID, threadID string) (*GenerateResponse, error) {
	r.emitRunStart(ctx, traceID, spanID, parentSpanID, threadID, r.primary.Name())

	if !r.inCooldown(r.primary.Name()) {
		resp, err := r.tryProvider(ctx, r.primary, req)
		if err == nil {
			r.emitRunEnd(ctx, traceID, spanID, parentSpanID, threadID, r.primary.Name(), resp)
			return resp, nil
		}
		kind := classifyOutage(err)
		r.recordFailure(r.primary.Name(), kind)
		r.emitFallback(ctx, traceID, spanID, parentSpanID, threadID, r.primary.Name(), r.fallback.Name(), kind)
	} else {
		r.emitFallback(ctx, traceID, spanID, parentSpanID, threadID, r.primary.Name(), r.fallback.Name(), OutageQuotaExhausted)
	}

	resp, err := r.tryProvider(ctx, r.fallback, req)
	if err != nil {
		kind := classifyOutage(err)
		r.emitRunError(ctx, traceID, spanID, parentSpanID, threadID, r.fallback.Name(), kind, err)
		return nil, &RouterError{Kind: kind, Err: err}
	}
	r.emitRunEnd(ctx, traceID, spanID, parentSpanID, threadID, r.fallback.Name(), resp)
	return resp, nil
}

func (r *Router) tryProvider(ctx context.Context, p Provider, req GenerateRequest) (*GenerateResponse, error) {
	breaker := r.breakers[p.Name()]
	result, err := breaker.Execute(func() (interface{}, error) {
		return p.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*GenerateResponse), nil
}

// HealthCheck returns cached health for name if checked within TTL,
// otherwise performs a fresh check and caches the result.
func (r *Router) HealthCheck(ctx context.Context, p Provider) bool {
	r.mu.Lock()
	entry, ok := r.healthCache[p.Name()]
	r.mu.Unlock()
	if ok && time.Since(entry.checkedAt) < r.healthTTL {
		return entry.healthy
	}

	healthy := p.HealthCheck(ctx) == nil
	r.mu.Lock()
	r.healthCache[p.Name()] = healthEntry{healthy: healthy, checkedAt: time.Now()}
	r.mu.Unlock()
	return healthy
}

func (r *Router) inCooldown(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.cooldownUntil[name]
	return ok && time.Now().Before(until)
}

func (r *Router) recordFailure(name string, kind OutageKind) {
	if kind != OutageQuotaExhausted {
		return
	}
	r.mu.Lock()
	r.cooldownUntil[name] = time.Now().Add(r.quotaCooldown)
	r.mu.Unlock()
}

func (r *Router) emitFallback(ctx context.Context, traceID, spanID, parentSpanID, threadID, from, to string, kind OutageKind) {
	_, _ = r.events.Emit(ctx, protocol.EventModelFallback, "providers", eventlog.Actor{Kind: "system", ID: "router"},
		map[string]any{"from": from, "to": to, "outage_kind": string(kind)},
		traceID, spanID, parentSpanID, threadID)
}

func (r *Router) emitRunStart(ctx context.Context, traceID, spanID, parentSpanID, threadID, provider string) {
	_, _ = r.events.Emit(ctx, protocol.EventModelRunStart, "providers", eventlog.Actor{Kind: "system", ID: "router"},
		map[string]any{"provider": provider}, traceID, spanID, parentSpanID, threadID)
}

func (r *Router) emitRunEnd(ctx context.Context, traceID, spanID, parentSpanID, threadID, provider string, resp *GenerateResponse) {
	_, _ = r.events.Emit(ctx, protocol.EventModelRunEnd, "providers", eventlog.Actor{Kind: "system", ID: "router"},
		map[string]any{
			"provider":      provider,
			"finish_reason": resp.FinishReason,
			"usage_total":   resp.Usage.TotalTokens,
		}, traceID, spanID, parentSpanID, threadID)
}

func (r *Router) emitRunError(ctx context.Context, traceID, spanID, parentSpanID, threadID, provider string, kind OutageKind, err error) {
	_, _ = r.events.Emit(ctx, protocol.EventModelRunError, "providers", eventlog.Actor{Kind: "system", ID: "router"},
		map[string]any{"provider": provider, "outage_kind": string(kind), "error": err.Error()},
		traceID, spanID, parentSpanID, threadID)
}

// RouterError surfaces a typed error to the orchestrator when both
// providers fail.
type RouterError struct {
	Kind OutageKind
	Err  error
}

func (e *RouterError) Error() string { return fmt.Sprintf("provider router: %s: %v", e.Kind, e.Err) }
func (e *RouterError) Unwrap() error { return e.Err }

func classifyOutage(err error) OutageKind {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return OutageProviderUnavailable
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutageTimeout
	}
	return OutageUnknown
}
