// Package alert detects error bursts, slow upstreams and memory pressure
// and forwards alerts to a Sink.
package alert

import (
	"sync"
	"time"
)

// Window counts events inside a sliding time span.
type Window struct {
	mu        sync.Mutex
	threshold int
	span      time.Duration
	hits      []time.Time
	now       func() time.Time
}

// NewWindow returns a window that trips when threshold events occur
// within span.
func NewWindow(threshold int, span time.Duration) *Window {
	if threshold < 1 {
		threshold = 1
	}
	return &Window{threshold: threshold, span: span, now: time.Now}
}

// Record adds an event and returns the number of events in the window and
// whether the threshold has been reached.
func (w *Window) Record() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.hits = append(w.prune(now), now)
	return len(w.hits), len(w.hits) >= w.threshold
}

// Reset forgets all recorded events.
func (w *Window) Reset() {
	w.mu.Lock()
	w.hits = nil
	w.mu.Unlock()
}

// Span returns the window length.
func (w *Window) Span() time.Duration { return w.span }

func (w *Window) prune(now time.Time) []time.Time {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	return w.hits[i:]
}
