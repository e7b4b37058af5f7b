package session

import (
	"context"
	"sync"
	"time"
)

// Countdown fires onTick at a fixed interval until stopped or restarted.
type Countdown struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	key    int
}

// NewCountdown returns a stopped countdown. A non-positive interval means one second.
func NewCountdown(interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval}
}

// Start stops any running ticker and begins a new one bound to ctx. key
// identifies the run for StopFor.
func (c *Countdown) Start(ctx context.Context, key int, onTick func()) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.key = key
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if runCtx.Err() != nil {
					return
				}
				onTick()
			}
		}
	}()
}

// Stop halts the running ticker. It does not wait for the goroutine and is
// safe to call from inside onTick.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// StopFor halts the ticker only if it is still the run started with key.
func (c *Countdown) StopFor(key int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil && c.key == key {
		c.cancel()
		c.cancel = nil
	}
}
