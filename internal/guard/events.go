package guard

import "context"

// ToolCallParams carries the interesting arguments of an intercepted tool
// call. Command is set for shell-execution tools, URL for fetch tools;
// either may be empty.
type ToolCallParams struct {
	Command string `json:"command,omitempty"`
	URL     string `json:"url,omitempty"`
}

// ToolCallEvent is one intercepted tool invocation from the host runtime.
type ToolCallEvent struct {
	ToolName string         `json:"tool_name"`
	Params   ToolCallParams `json:"params"`
	AgentID  string         `json:"agent_id,omitempty"`
}

// MessageBody is the text payload of an inbound message.
type MessageBody struct {
	Text string `json:"text"`
}

// MessageEvent is one intercepted inbound message.
type MessageEvent struct {
	Message MessageBody `json:"message"`
	Channel string      `json:"channel,omitempty"`
}

// ToolCallHandler evaluates a tool-call event. nil means pass-through.
type ToolCallHandler func(ctx context.Context, ev ToolCallEvent) *Verdict

// MessageHandler evaluates a message event. nil means pass-through.
type MessageHandler func(ctx context.Context, ev MessageEvent) *Verdict
