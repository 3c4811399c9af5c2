// Package idle closes sessions that see no accepted changes for a while.
package idle

import (
	"sync"
	"time"
)

// DefaultWindow is how long a session may go without an accepted change.
const DefaultWindow = 20 * time.Minute

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall-clock time for the monitor.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Monitor fires a callback once no activity has been recorded for a full window.
type Monitor struct {
	window time.Duration
	clock  Clock
	onIdle func()

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	running bool
	last    time.Time
}

// NewMonitor creates a stopped monitor. A non-positive window uses DefaultWindow.
func NewMonitor(window time.Duration, clock Clock, onIdle func()) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Monitor{window: window, clock: clock, onIdle: onIdle}
}

// Window returns the configured idle window.
func (m *Monitor) Window() time.Duration {
	return m.window
}

// Start arms the monitor, counting from now.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = true
	m.last = m.clock.Now()
	m.armLocked()
}

// Touch records activity and restarts the window. It does nothing while stopped.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.last = m.clock.Now()
	m.armLocked()
}

// Stop disarms the monitor. A callback already running is not waited for.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Running reports whether the monitor is armed.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastActivity returns the time of the last recorded activity.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Remaining returns the time left before the monitor fires.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return 0
	}
	left := m.window - m.clock.Now().Sub(m.last)
	if left < 0 {
		return 0
	}
	return left
}

func (m *Monitor) armLocked() {
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(m.window, func() { m.fire(gen) })
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.timer = nil
	m.mu.Unlock()

	if m.onIdle != nil {
		m.onIdle()
	}
}
