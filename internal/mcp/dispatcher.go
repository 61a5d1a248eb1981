package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Adapter executes the tools of one provider family. The returned payload
// is JSON-encoded into the text content of the response envelope.
type Adapter interface {
	Call(ctx context.Context, name ToolName, args Args) (any, error)
}

// ErrorRecorder receives tool failures that should count toward alerting.
type ErrorRecorder interface {
	RecordError(ctx context.Context, tool string, err error)
}

// Dispatcher routes requests to the catalog or to a provider adapter. It
// holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	scheduling Adapter
	voice      Adapter
	recorder   ErrorRecorder
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithErrorRecorder reports upstream and internal failures to r.
func WithErrorRecorder(r ErrorRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher builds a dispatcher over the scheduling and voice adapters.
func NewDispatcher(scheduling, voice Adapter, opts ...Option) *Dispatcher {
	d := &Dispatcher{scheduling: scheduling, voice: voice}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Handle answers a single request. It never panics and always returns
// exactly one envelope.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	switch req.Type {
	case RequestDiscovery:
		return Response{Type: ResponseDiscovery, Tools: Catalog()}
	case RequestToolCall:
		return d.call(ctx, req.ToolName, Args(req.ToolArgs))
	default:
		d.logger.Warn("invalid mcp request type", "type", string(req.Type))
		return ProtocolError("invalid MCP request type")
	}
}

func (d *Dispatcher) call(ctx context.Context, rawName string, args Args) Response {
	callID := uuid.NewString()
	log := d.logger.With("call_id", callID, "tool", rawName)

	name, ok := ParseToolName(rawName)
	if !ok {
		log.Warn("unknown tool")
		return ToolCallError(fmt.Sprintf("unknown tool: %s", rawName))
	}
	if args == nil {
		args = Args{}
	}
	if err := validateArgs(name, args); err != nil {
		log.Info("tool call rejected", "error", err)
		return ToolCallError(err.Error())
	}

	adapter := d.route(name)
	if adapter == nil {
		log.Error("no adapter for tool", "provider", name.Provider().String())
		return ToolCallError(fmt.Sprintf("unknown tool: %s", rawName))
	}

	start := time.Now()
	log.Debug("tool call", "provider", name.Provider().String())
	payload, err := invoke(ctx, adapter, name, args)
	elapsed := time.Since(start)
	if err != nil {
		kind := KindOf(err)
		log.Warn("tool call failed", "kind", kind.String(), "duration", elapsed, "error", err)
		if d.recorder != nil && (kind == KindUpstream || kind == KindInternal) {
			d.recorder.RecordError(ctx, string(name), err)
		}
		return ToolCallError(err.Error())
	}
	log.Info("tool call succeeded", "duration", elapsed)
	return TextResult(payload)
}

// route is the single place that maps a tool to its adapter.
func (d *Dispatcher) route(name ToolName) Adapter {
	switch name.Provider() {
	case ProviderScheduling:
		return d.scheduling
	case ProviderVoice:
		return d.voice
	default:
		return nil
	}
}

func invoke(ctx context.Context, a Adapter, name ToolName, args Args) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = Errorf(KindInternal, "%s: panic: %v", name, r)
		}
	}()
	return a.Call(ctx, name, args)
}
