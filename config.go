package conveyor

import "time"

// Config holds tuning for the worker supervisor and its pollers.
type Config struct {
	// PollInterval is how long a poller sleeps after an empty poll.
	PollInterval time.Duration

	// HeartbeatInterval is the fallback interval for activity task
	// heartbeats, used when a stage's activity declares no heartbeat
	// timeout of its own.
	HeartbeatInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// ErrorBuffer is the capacity of the OnDecisionTaskError and
	// OnActivityTaskError channels. Errors beyond capacity are logged
	// and dropped.
	ErrorBuffer int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:      1 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		ErrorBuffer:       64,
	}
}
