// Package health reports whether the server can authenticate against and
// fetch records from the upstream log store, and serves the HTTP probes.
package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/auth"
	"github.com/loglens/loglens-mcp-server/internal/client"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// statusRank orders statuses for worst-of aggregation.
var statusRank = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

// probeTimeout bounds each individual check.
const probeTimeout = 5 * time.Second

// slowProbeThreshold downgrades a failed fetch to degraded when the upstream
// answered but slowly.
const slowProbeThreshold = 3 * time.Second

// Check represents a health check result
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Checker performs health checks
type Checker struct {
	fetcher       *client.Client
	authenticator *auth.Authenticator
	logger        *zap.Logger
}

// New creates a new health checker
func New(fetcher *client.Client, authenticator *auth.Authenticator, logger *zap.Logger) *Checker {
	return &Checker{
		fetcher:       fetcher,
		authenticator: authenticator,
		logger:        logger,
	}
}

// CheckAll runs every check and aggregates to the worst observed status.
func (c *Checker) CheckAll(ctx context.Context) (Status, []Check) {
	checks := []Check{
		c.run(ctx, "authentication", func(context.Context) error {
			return c.authenticator.ValidateToken()
		}),
		c.run(ctx, "upstream_fetch", c.probeFetch),
	}

	overall := StatusHealthy
	for _, check := range checks {
		if statusRank[check.Status] > statusRank[overall] {
			overall = check.Status
		}
	}
	return overall, checks
}

// run executes one named check with a bounded timeout and classifies the
// outcome. A failure after the slow threshold counts as degraded rather than
// unhealthy: the upstream is there, just struggling.
func (c *Checker) run(ctx context.Context, name string, fn func(context.Context) error) Check {
	start := time.Now().UTC()
	check := Check{Name: name, Timestamp: start}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := fn(ctx)
	check.Duration = time.Since(start)

	switch {
	case err == nil:
		check.Status = StatusHealthy
		check.Message = "ok"
		c.logger.Debug("Health check passed",
			zap.String("check", name),
			zap.Duration("duration", check.Duration),
		)
	case check.Duration > slowProbeThreshold:
		check.Status = StatusDegraded
		check.Message = "responding slowly"
		c.logger.Warn("Health check degraded",
			zap.String("check", name),
			zap.Error(err),
			zap.Duration("duration", check.Duration),
		)
	default:
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("failed: %v", err)
		c.logger.Warn("Health check failed",
			zap.String("check", name),
			zap.Error(err),
			zap.Duration("duration", check.Duration),
		)
	}

	return check
}

// probeFetch requests a single record from the last five minutes. It proves
// the whole fetch path: auth header, endpoint, and record decoding.
func (c *Checker) probeFetch(ctx context.Context) error {
	now := time.Now().UTC()
	_, err := c.fetcher.FetchPage(ctx, client.FetchParams{
		Start: now.Add(-5 * time.Minute),
		End:   now,
		Limit: 1,
	})
	return err
}
