package session

import (
	"context"
	"time"
)

// startWatcher launches the expiry-watch loop for the given generation, if
// one is not already running. The watcher exists only while a session is
// active; sign-out and signed-out events stop it so timers never leak
// across sign-in cycles.
func (c *Controller) startWatcher(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.generation != gen || c.watchStop != nil {
		return
	}

	stop := make(chan struct{})
	c.watchStop = stop

	go c.watchLoop(gen, stop)
}

// stopWatcher signals the loop to exit. It does not wait: a tick that
// already fired re-checks generation and session presence under the mutex
// before writing, so a late tick against a cleared session is a no-op.
func (c *Controller) stopWatcher() {
	c.mu.Lock()
	stop := c.watchStop
	c.watchStop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (c *Controller) watchLoop(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(c.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.watchTick(gen)
		}
	}
}

// watchTick recomputes the remaining session time and triggers a refresh
// when it drops inside (0, refreshThreshold). Ticks run one at a time on
// the loop goroutine; a refresh already in flight makes the trigger a no-op
// for this tick. An expired session is left alone: teardown belongs to the
// next provider event or refresh failure, not the timer, to avoid racing a
// provider-side refresh that is already in progress.
func (c *Controller) watchTick(gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.closed || c.state.Session == nil {
		c.mu.Unlock()
		return
	}
	remaining := c.state.Session.TimeRemaining(c.now())
	c.state.SessionTimeRemaining = remaining
	needsRefresh := remaining > 0 && remaining < c.refreshThreshold
	c.mu.Unlock()

	if needsRefresh {
		c.RefreshSession(context.Background())
	}
}
