package shell

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartPolling refreshes data every shell.poll_interval while the terminal
// is visible. It runs until ctx ends or Stop is called. Later calls are no-ops.
func (c *Core) StartPolling(ctx context.Context) {
	c.pollOnce.Do(func() {
		if c.track() {
			go c.pollLoop(ctx)
		}
	})
}

func (c *Core) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		timer := time.NewTimer(c.Config().GetPollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !c.visible.Load() {
			continue
		}
		if err := c.Refresh(c.ctx); err != nil {
			c.logger.Debug("poll refresh incomplete", zap.Error(err))
		}
	}
}
