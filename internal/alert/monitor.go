package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// sendTimeout bounds a single alert delivery.
const sendTimeout = 30 * time.Second

// Monitor turns tool failures and slow upstream calls into alerts. It
// implements mcp.ErrorRecorder and upstream.Observer.
type Monitor struct {
	window *Window
	sink   Sink
	slow   time.Duration
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithSlowThreshold alerts on upstream calls slower than d. Zero disables
// the check.
func WithSlowThreshold(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.slow = d }
}

// WithLogger sets the monitor logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor returns a monitor that counts errors in window and delivers
// alerts to sink.
func NewMonitor(window *Window, sink Sink, opts ...MonitorOption) *Monitor {
	m := &Monitor{window: window, sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// RecordError counts a critical failure from source and alerts once the
// window threshold is reached. The window is reset after each alert.
func (m *Monitor) RecordError(ctx context.Context, source string, err error) {
	m.logger.ErrorContext(ctx, "critical error", "source", source, "error", err)
	count, tripped := m.window.Record()
	if !tripped {
		return
	}
	m.window.Reset()
	m.fire(Alert{
		Subject: "Critical error threshold exceeded",
		Message: fmt.Sprintf("%d errors in the last %s", count, m.window.Span()),
		Details: map[string]any{"source": source, "error": err.Error()},
	})
}

// ObserveUpstream alerts when an upstream call exceeds the slow threshold.
func (m *Monitor) ObserveUpstream(provider, endpoint string, elapsed time.Duration, status int, _ error) {
	if m.slow <= 0 || elapsed <= m.slow {
		return
	}
	m.logger.Warn("slow upstream response", "provider", provider, "endpoint", endpoint, "duration", elapsed)
	m.fire(Alert{
		Subject: "Slow upstream response",
		Message: fmt.Sprintf("%s is responding slowly (%s, threshold %s)", provider, elapsed.Round(time.Millisecond), m.slow),
		Details: map[string]any{"provider": provider, "endpoint": endpoint, "status": status, "duration_ms": elapsed.Milliseconds()},
	})
}

// Wait blocks until every in-flight alert has been delivered.
func (m *Monitor) Wait() { m.wg.Wait() }

func (m *Monitor) fire(a Alert) {
	a.Time = m.now()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := m.sink.Send(ctx, a); err != nil {
			m.logger.Error("alert delivery failed", "subject", a.Subject, "error", err)
		}
	}()
}
