package main

import (
	"sync"
	"time"
)

// debounceTable tracks the last accepted press per input pin.
//
// Thread-safe: edge watchers for different pins (and, in principle, two
// overlapping edges on the same pin) call accept() concurrently. The
// check-and-update is done under one lock so two near-simultaneous edges can
// never both pass the window check.
type debounceTable struct {
	mu     sync.Mutex
	window time.Duration
	last   map[int]time.Time
}

// newDebounceTable seeds every pin with start, so presses within the first
// window after construction are rejected.
func newDebounceTable(pins []int, start time.Time, window time.Duration) *debounceTable {
	last := make(map[int]time.Time, len(pins))
	for _, p := range pins {
		last[p] = start
	}
	return &debounceTable{
		window: window,
		last:   last,
	}
}

// accept reports whether a press on pin at now is outside the debounce
// window, and if so records now as the pin's last accepted press.
// Unknown pins are never accepted.
func (d *debounceTable) accept(pin int, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	before, ok := d.last[pin]
	if !ok {
		return false
	}
	if now.Sub(before) <= d.window {
		return false
	}
	d.last[pin] = now
	return true
}

// lastAccepted returns the recorded instant for pin.
func (d *debounceTable) lastAccepted(pin int) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.last[pin]
	return t, ok
}
