package presence

import (
	"sync"
	"time"
)

// SendQuietPeriod is how long the composer must be quiet before the
// viewer's typing indicator is withdrawn.
const SendQuietPeriod = 500 * time.Millisecond

// Debouncer bounds outbound typing-event volume: the first keystroke
// sends is_typing=true, further keystrokes only push the quiet deadline
// out, and is_typing=false goes out once the quiet period elapses.
type Debouncer struct {
	quiet time.Duration
	send  func(bool)

	mu     sync.Mutex
	timer  *time.Timer
	typing bool
}

// NewDebouncer creates a debouncer that calls send with the typing
// state transitions. quiet <= 0 falls back to SendQuietPeriod.
func NewDebouncer(quiet time.Duration, send func(bool)) *Debouncer {
	if quiet <= 0 {
		quiet = SendQuietPeriod
	}
	return &Debouncer{quiet: quiet, send: send}
}

// Keystroke records composer activity.
func (d *Debouncer) Keystroke() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.typing {
		d.typing = true
		d.send(true)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.expire)
}

// Stop withdraws the typing state immediately (message sent, composer
// cleared, or conversation closed).
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.typing {
		d.typing = false
		d.send(false)
	}
}

func (d *Debouncer) expire() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.timer = nil
	if d.typing {
		d.typing = false
		d.send(false)
	}
}
