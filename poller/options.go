package poller

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/conveyor/backoff"
)

// config holds tuning shared by both poller kinds.
type config struct {
	logger            *slog.Logger
	pollInterval      time.Duration
	pollRate          rate.Limit
	pollBurst         int
	strategy          backoff.Strategy
	heartbeatInterval time.Duration
}

func defaultConfig() config {
	return config{
		logger:       slog.Default(),
		pollInterval: time.Second,
		pollRate:     rate.Inf,
		pollBurst:    1,
		strategy:     backoff.DefaultStrategy(),
	}
}

// Option configures a poller.
type Option func(*config)

// WithLogger sets the poller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPollInterval sets how long the poller sleeps after an empty poll.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) { c.pollInterval = d }
}

// WithPollRate caps the poll call rate against the service. The default
// is unlimited: pacing then comes only from empty-poll sleeps.
func WithPollRate(r rate.Limit, burst int) Option {
	return func(c *config) {
		c.pollRate = r
		c.pollBurst = burst
	}
}

// WithBackoff sets the delay strategy applied after consecutive poll
// failures.
func WithBackoff(s backoff.Strategy) Option {
	return func(c *config) {
		if s != nil {
			c.strategy = s
		}
	}
}

// WithHeartbeatInterval sets how often a running activity task records a
// heartbeat. Zero disables heartbeats. Decision pollers ignore it.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *config) { c.heartbeatInterval = d }
}
