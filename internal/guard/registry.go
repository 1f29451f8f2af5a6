package guard

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/IT-HUSET/openclaw-guard/internal/logger"
)

var log = logger.New("guard")

// InterceptionAPI is the registration surface handed to plugins. Each
// plugin registers the callbacks it cares about; the host runtime then
// drives dispatch through the Registry.
type InterceptionAPI interface {
	OnToolCall(fn ToolCallHandler)
	OnMessage(fn MessageHandler)
}

// Plugin is one guard component that hooks into the interception API.
type Plugin interface {
	ID() string
	Register(api InterceptionAPI)
}

// Registry is a tagged-variant callback registry implementing
// InterceptionAPI. Handler registration happens once at startup
// (plugin registration time); dispatch is read-only and safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	toolCall  []ToolCallHandler
	message   []MessageHandler
	pluginIDs []string

	metrics *Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: NewMetrics()}
}

// OnToolCall registers a tool-call handler.
func (r *Registry) OnToolCall(fn ToolCallHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCall = append(r.toolCall, fn)
}

// OnMessage registers a message handler.
func (r *Registry) OnMessage(fn MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = append(r.message, fn)
}

// Use registers each plugin against this registry.
func (r *Registry) Use(plugins ...Plugin) {
	for _, p := range plugins {
		p.Register(r)
		r.mu.Lock()
		r.pluginIDs = append(r.pluginIDs, p.ID())
		r.mu.Unlock()
		log.Info("Registered guard plugin: %s", p.ID())
	}
}

// PluginIDs returns the IDs of registered plugins in registration order.
func (r *Registry) PluginIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.pluginIDs))
	copy(ids, r.pluginIDs)
	return ids
}

// Metrics returns the dispatch counters.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// EvaluateToolCall runs every registered tool-call handler. The first
// blocking verdict wins; otherwise the first warning; otherwise nil
// (pass-through). All handlers run even after a warning so a later block
// still takes precedence.
func (r *Registry) EvaluateToolCall(ctx context.Context, ev ToolCallEvent) *Verdict {
	r.mu.RLock()
	handlers := r.toolCall
	r.mu.RUnlock()

	traceID := uuid.NewString()
	r.metrics.ToolCallsEvaluated.Add(1)

	var warned *Verdict
	for _, fn := range handlers {
		v := fn(ctx, ev)
		if v.Blocked() {
			r.metrics.ToolCallsBlocked.Add(1)
			log.Warn("Blocked tool call %s [trace %s]: %s (%s)", ev.ToolName, traceID, v.Reason, v.Label)
			return v
		}
		if v.Warned() && warned == nil {
			warned = v
		}
	}
	if warned != nil {
		r.metrics.ToolCallsWarned.Add(1)
		log.Info("Warned tool call %s [trace %s]: %s", ev.ToolName, traceID, warned.Reason)
	}
	return warned
}

// EvaluateMessage runs every registered message handler with the same
// block-over-warn precedence as EvaluateToolCall.
func (r *Registry) EvaluateMessage(ctx context.Context, ev MessageEvent) *Verdict {
	r.mu.RLock()
	handlers := r.message
	r.mu.RUnlock()

	traceID := uuid.NewString()
	r.metrics.MessagesEvaluated.Add(1)

	var warned *Verdict
	for _, fn := range handlers {
		v := fn(ctx, ev)
		if v.Blocked() {
			r.metrics.MessagesBlocked.Add(1)
			log.Warn("Blocked message on %s [trace %s]: %s (%s)", ev.Channel, traceID, v.Reason, v.Label)
			return v
		}
		if v.Warned() && warned == nil {
			warned = v
		}
	}
	if warned != nil {
		r.metrics.MessagesWarned.Add(1)
	}
	return warned
}
