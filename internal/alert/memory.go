package alert

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
)

// MemoryWatcher periodically compares heap usage against a threshold.
type MemoryWatcher struct {
	thresholdMB uint64
	schedule    string
	sink        Sink
	logger      *slog.Logger
	heapMB      func() uint64
}

// NewMemoryWatcher checks heap usage on schedule (any robfig/cron expression,
// e.g. "@every 1m") and alerts above thresholdMB.
func NewMemoryWatcher(thresholdMB int, schedule string, sink Sink, logger *slog.Logger) *MemoryWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryWatcher{
		thresholdMB: uint64(thresholdMB),
		schedule:    schedule,
		sink:        sink,
		logger:      logger,
		heapMB:      heapInUseMB,
	}
}

// Start schedules the check. The scheduler stops when ctx is cancelled.
func (w *MemoryWatcher) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.Check(ctx) }); err != nil {
		return fmt.Errorf("memory watcher: schedule %q: %w", w.schedule, err)
	}
	c.Start()
	w.logger.Info("memory watcher started", "schedule", w.schedule, "threshold_mb", w.thresholdMB)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// Check samples heap usage once and reports whether an alert was sent.
func (w *MemoryWatcher) Check(ctx context.Context) bool {
	used := w.heapMB()
	w.logger.Debug("memory usage", "heap_mb", used)
	if w.thresholdMB == 0 || used <= w.thresholdMB {
		return false
	}
	err := w.sink.Send(ctx, Alert{
		Subject: "High memory usage",
		Message: fmt.Sprintf("heap in use is %dMB, above the %dMB threshold", used, w.thresholdMB),
		Details: map[string]any{"heap_mb": used, "threshold_mb": w.thresholdMB},
		Time:    time.Now(),
	})
	if err != nil {
		w.logger.Error("alert delivery failed", "error", err)
	}
	return true
}

func heapInUseMB() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse / 1024 / 1024
}
