package guard

import "sync/atomic"

// Metrics tracks dispatch statistics across all registered guards.
type Metrics struct {
	ToolCallsEvaluated atomic.Int64
	ToolCallsBlocked   atomic.Int64
	ToolCallsWarned    atomic.Int64

	MessagesEvaluated atomic.Int64
	MessagesBlocked   atomic.Int64
	MessagesWarned    atomic.Int64
}

// NewMetrics creates zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Stats returns a copy of current counters keyed for the stats API.
func (m *Metrics) Stats() map[string]int64 {
	return map[string]int64{
		"tool_calls_evaluated": m.ToolCallsEvaluated.Load(),
		"tool_calls_blocked":   m.ToolCallsBlocked.Load(),
		"tool_calls_warned":    m.ToolCallsWarned.Load(),
		"messages_evaluated":   m.MessagesEvaluated.Load(),
		"messages_blocked":     m.MessagesBlocked.Load(),
		"messages_warned":      m.MessagesWarned.Load(),
	}
}

// BlockRate returns the percentage of tool calls blocked.
func (m *Metrics) BlockRate() float64 {
	total := m.ToolCallsEvaluated.Load()
	if total == 0 {
		return 0
	}
	return float64(m.ToolCallsBlocked.Load()) / float64(total) * 100
}

// Reset clears all counters (for testing).
func (m *Metrics) Reset() {
	m.ToolCallsEvaluated.Store(0)
	m.ToolCallsBlocked.Store(0)
	m.ToolCallsWarned.Store(0)
	m.MessagesEvaluated.Store(0)
	m.MessagesBlocked.Store(0)
	m.MessagesWarned.Store(0)
}
