// Package llm defines the provider port the turn engine consumes: a
// streaming completion client plus a registry resolving provider/model
// references to registered implementations. Concrete wire protocols live
// behind this interface.
package llm

import "context"

// Role constants for provider messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single conversation entry sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSchema describes a tool in provider wire form.
type ToolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"inputSchema"` // JSON Schema string
}

// CompletionRequest is the input to a Complete or Stream call.
type CompletionRequest struct {
	Model     string       `json:"model,omitempty"`
	System    string       `json:"system,omitempty"`
	Messages  []Message    `json:"messages"`
	Tools     []ToolSchema `json:"tools,omitempty"`
	MaxTokens int          `json:"maxTokens,omitempty"`
}

// Stream event types.
const (
	EventDelta    = "delta"     // incremental assistant text
	EventToolCall = "tool_call" // a model-requested tool invocation
	EventDone     = "done"      // completion marker
	EventError    = "error"     // provider failure mid-stream
)

// StreamEvent is one chunk from a streaming completion.
type StreamEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`   // text delta (type=delta)
	Reasoning string `json:"reasoning,omitempty"` // optional thinking delta

	ToolCallID string `json:"toolCallId,omitempty"` // type=tool_call
	ToolName   string `json:"toolName,omitempty"`
	ToolArgs   string `json:"toolArgs,omitempty"` // JSON string

	FinishReason string `json:"finishReason,omitempty"` // type=done
	Error        string `json:"error,omitempty"`        // type=error
}

// Client is the interface all model providers implement.
type Client interface {
	// Complete sends a request and returns the full response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Stream sends a request and returns a channel of streaming events.
	// The channel is closed when the completion ends.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)

	// Name returns the provider name (e.g. "claude").
	Name() string
}
