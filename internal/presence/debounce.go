package presence

import (
	"sync"
	"time"
)

// DefaultQuiet is how long after the last keystroke the typing signal
// turns off.
const DefaultQuiet = 500 * time.Millisecond

// Debouncer turns a keystroke stream into a start/stop typing signal:
// emit(true) on the first keystroke, emit(false) once the stream has been
// quiet for the configured window. A burst of keystrokes produces exactly
// one start and one stop.
type Debouncer struct {
	emit  func(bool)
	quiet time.Duration

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

func NewDebouncer(emit func(bool), quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Debouncer{emit: emit, quiet: quiet}
}

// Keystroke records one keystroke. The start signal fires on the leading
// edge; every call pushes the stop signal out by the quiet window.
func (d *Debouncer) Keystroke() {
	d.mu.Lock()
	start := !d.active
	d.active = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.expire)
	d.mu.Unlock()

	if start {
		d.emit(true)
	}
}

// Stop ends the typing signal immediately, used when the message is sent
// before the quiet window elapses. A no-op when not active.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.emit(false)
}

func (d *Debouncer) expire() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	d.emit(false)
}
