package taskrunner

import (
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/agentcore/internal/config"
)

// lane is one named bounded FIFO queue with its own worker pool and
// token-bucket enqueue limiter.
type lane struct {
	name    string
	ch      chan *Task
	limiter *rate.Limiter
	workers int
}

func newLane(name string, cfg config.LaneConfig) *lane {
	l := &lane{
		name:    name,
		ch:      make(chan *Task, cfg.Capacity),
		workers: cfg.Workers,
	}
	if cfg.RatePerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Capacity)
	}
	return l
}

// tryPush attempts a non-blocking enqueue, respecting both the rate
// limiter and the channel's buffer capacity. Used for fresh submissions
// from Enqueue, where the caller wants fail-fast backpressure rather
// than blocking.
func (l *lane) tryPush(t *Task) error {
	if l.limiter != nil && !l.limiter.Allow() {
		return errLaneRateLimited
	}
	select {
	case l.ch <- t:
		return nil
	default:
		return errLaneFull
	}
}
