// Package logbuf keeps the most recent log records in memory so they can
// be served by the /logs endpoint.
package logbuf

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// DefaultSize is the number of records retained when no size is given.
const DefaultSize = 1000

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   slog.Level     `json:"-"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// MarshalJSON renders the level by name.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return json.Marshal(struct {
		plain
		Level string `json:"level"`
	}{plain(e), e.Level.String()})
}

// Filter selects entries from a Buffer. A zero Since or Limit disables
// that bound; MinLevel defaults to slog.LevelInfo.
type Filter struct {
	Since    time.Time
	MinLevel slog.Level
	Limit    int
}

// Buffer is a fixed-size ring of entries safe for concurrent use.
type Buffer struct {
	mu   sync.RWMutex
	ring []Entry
	next int
	full bool
}

// New returns a buffer holding up to size entries.
func New(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{ring: make([]Entry, size)}
}

// Add stores e, evicting the oldest entry when the buffer is full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	b.ring[b.next] = e
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
	b.mu.Unlock()
}

// Query returns matching entries, newest first. When f.Limit is positive
// at most that many entries are returned.
func (b *Buffer) Query(f Filter) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.next
	if b.full {
		n = len(b.ring)
	}
	out := make([]Entry, 0, min(n, max(f.Limit, 0)))
	for i := 1; i <= n; i++ {
		e := b.ring[(b.next-i+len(b.ring))%len(b.ring)]
		if e.Level < f.MinLevel || (!f.Since.IsZero() && e.Time.Before(f.Since)) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}
