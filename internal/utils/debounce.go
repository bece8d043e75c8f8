package utils

import (
	"sync"
	"time"
)

// Debouncer runs a function once a burst of calls has gone quiet.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Debounce schedules fn after the quiet period. A later call replaces fn and
// restarts the period.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel drops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// ResizeDebouncer coalesces terminal resizes and delivers a size only once
// the terminal has settled on one that differs from the last delivered.
type ResizeDebouncer struct {
	debouncer *Debouncer

	mu        sync.Mutex
	pending   [2]int
	delivered [2]int
}

// DefaultResizeDuration is the quiet period applied to resize bursts.
const DefaultResizeDuration = 150 * time.Millisecond

// NewResizeDebouncer creates a resize debouncer.
func NewResizeDebouncer(duration time.Duration) *ResizeDebouncer {
	return &ResizeDebouncer{debouncer: NewDebouncer(duration)}
}

// Resize records the new size and calls handler with the latest size once
// resizing settles. A burst that ends on the delivered size is dropped.
func (rd *ResizeDebouncer) Resize(width, height int, handler func(int, int)) {
	rd.mu.Lock()
	rd.pending = [2]int{width, height}
	rd.mu.Unlock()

	rd.debouncer.Debounce(func() {
		rd.mu.Lock()
		size := rd.pending
		if size == rd.delivered {
			rd.mu.Unlock()
			return
		}
		rd.delivered = size
		rd.mu.Unlock()

		handler(size[0], size[1])
	})
}

// Cancel drops any pending resize.
func (rd *ResizeDebouncer) Cancel() {
	rd.debouncer.Cancel()
}
