package session

import "time"

// Option customizes controller construction.
type Option func(*Controller)

// WithLogger overrides the default stdout logger.
func WithLogger(logger Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) Option {
	return func(c *Controller) {
		c.sink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithWatchInterval overrides how often the expiry watcher ticks.
func WithWatchInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.watchInterval = interval
		}
	}
}

// WithRefreshThreshold overrides the remaining-time bound below which the
// watcher triggers a refresh.
func WithRefreshThreshold(threshold time.Duration) Option {
	return func(c *Controller) {
		if threshold > 0 {
			c.refreshThreshold = threshold
		}
	}
}
