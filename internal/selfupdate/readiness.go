package selfupdate

import (
	"context"
	"net/http"
	"time"
)

// ReadinessChecker reports whether the running process is healthy.
// The self-update verify phase polls this after a restart.
type ReadinessChecker interface {
	Ready(ctx context.Context) bool
}

// HTTPReadinessChecker polls a readiness endpoint expecting a 2xx
// response, matching the health-check shape the teacher's gateway
// already exposes for its own liveness probe.
type HTTPReadinessChecker struct {
	URL    string
	client *http.Client
}

func NewHTTPReadinessChecker(url string) *HTTPReadinessChecker {
	return &HTTPReadinessChecker{URL: url, client: &http.Client{Timeout: 5 * time.Second}}
}

func (c *HTTPReadinessChecker) Ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Restarter triggers a process restart via the configured command.
type Restarter interface {
	Restart(ctx context.Context) error
}
