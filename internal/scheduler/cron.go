package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// everyPrefix is the shorthand form for a fixed-period schedule:
// "@every:<N>" fires every N seconds, aligned to the epoch rather than
// to the schedule's creation time, so two schedules with the same N
// agree on when an instant is due.
const everyPrefix = "@every:"

// dueInstants returns the ascending due instants for expr in (since,
// until], capped at maxInstants. expr is either a standard five-field
// cron expression (minute hour dom month dow, with *, comma lists, and
// /step) or the "@every:<N>" shorthand.
func dueInstants(expr string, since, until time.Time, maxInstants int) ([]time.Time, error) {
	if maxInstants <= 0 || !until.After(since) {
		return nil, nil
	}
	if n, ok := everySeconds(expr); ok {
		return everyInstants(n, since, until, maxInstants), nil
	}
	return cronInstants(expr, since, until, maxInstants)
}

func everySeconds(expr string) (int64, bool) {
	if !strings.HasPrefix(expr, everyPrefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(expr, everyPrefix), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func everyInstants(n int64, since, until time.Time, maxInstants int) []time.Time {
	var out []time.Time
	first := (since.Unix()/n + 1) * n
	for t := first; t <= until.Unix() && len(out) < maxInstants; t += n {
		out = append(out, time.Unix(t, 0).UTC())
	}
	return out
}

func cronInstants(expr string, since, until time.Time, maxInstants int) ([]time.Time, error) {
	var out []time.Time
	cursor := since
	for len(out) < maxInstants {
		next, err := gronx.NextTickAfter(expr, cursor, false)
		if err != nil {
			return nil, fmt.Errorf("scheduler: evaluate cron expression %q: %w", expr, err)
		}
		if next.After(until) {
			break
		}
		out = append(out, next)
		cursor = next
	}
	return out, nil
}
