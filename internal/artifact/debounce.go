package artifact

import (
	"sync"
	"time"
)

// Debouncer collapses a burst of bumps into one fire after a quiet period.
// Every Bump re-arms the delay; fire runs once per quiescence.
type Debouncer struct {
	delay time.Duration
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a stopped debouncer; the first Bump arms it.
func NewDebouncer(delay time.Duration, fire func()) *Debouncer {
	return &Debouncer{delay: delay, fire: fire}
}

// Bump restarts the quiet-period timer.
func (d *Debouncer) Bump() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

// Stop cancels any pending fire.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
