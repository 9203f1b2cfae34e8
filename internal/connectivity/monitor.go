// Package connectivity tracks a debounced online/offline state fed by the
// platform's reachability signal. State transitions are the only trigger,
// besides explicit user action, for remote work.
package connectivity

import (
	"sync"
	"time"
)

// Monitor holds the current online state and notifies subscribers when it
// changes. Raw reachability signals are debounced so that a flapping link
// commits at most one transition per quiet period.
type Monitor struct {
	mu       sync.Mutex
	online   bool
	pending  bool
	debounce time.Duration
	timer    *time.Timer
	subs     []chan bool
}

// NewMonitor creates a monitor with the given initial state. A zero
// debounce commits every signal immediately.
func NewMonitor(initial bool, debounce time.Duration) *Monitor {
	return &Monitor{
		online:   initial,
		pending:  initial,
		debounce: debounce,
	}
}

// Online reports the current committed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set feeds a raw reachability signal into the monitor. The latest signal
// within the debounce window wins.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = online

	if m.debounce <= 0 {
		m.commitLocked()
		return
	}

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.commitLocked()
	})
}

// commitLocked applies the pending state and notifies subscribers on a
// real transition. Must be called with mu held.
func (m *Monitor) commitLocked() {
	if m.pending == m.online {
		return
	}
	m.online = m.pending

	for _, ch := range m.subs {
		select {
		case ch <- m.online:
		default:
			// Drop if the subscriber is not keeping up; the current
			// state remains queryable via Online.
		}
	}
}

// Subscribe returns a channel that receives the new state after each
// committed transition.
func (m *Monitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan bool, 4)
	m.subs = append(m.subs, ch)
	return ch
}
