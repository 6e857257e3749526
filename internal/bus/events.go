// Package bus defines the runtime's domain events and the fire-and-forget
// publisher used to fan them out to subscribers.
package bus

import "github.com/mfelder/turnstile/internal/domain"

// Event is a domain event emitted during a turn. The set of implementations
// is closed; consumers dispatch with a type switch.
type Event interface {
	// EventName returns the stable event identifier used in logs.
	EventName() string
}

// AgentLoopStarted marks the beginning of a turn.
type AgentLoopStarted struct {
	RunID     string
	SessionID string
	AgentID   string
}

// MessageAdded marks a message appended to a session transcript.
type MessageAdded struct {
	SessionID string
	Role      domain.Role
}

// LlmCompletionRequested marks a completion request sent to a provider.
type LlmCompletionRequested struct {
	RunID    string
	Provider string
	Model    string
}

// LlmCompletionReceived marks a completed provider stream.
type LlmCompletionReceived struct {
	RunID            string
	CompletionTokens int
}

// ResponseGenerated marks a non-blank assistant response persisted.
type ResponseGenerated struct {
	RunID     string
	SessionID string
	Length    int
}

// ToolCallInitiated marks the start of a validated tool call.
type ToolCallInitiated struct {
	RunID  string
	Tool   string
	CallID string
}

// ToolExecuted marks a finished tool call, successful or not.
type ToolExecuted struct {
	RunID         string
	Tool          string
	Success       bool
	DurationMS    int64
	ResultSummary string // result content truncated to 200 chars
}

// ContextCompacted marks a transcript compaction.
type ContextCompacted struct {
	SessionID         string
	MessagesBefore    int
	MessagesAfter     int
	ToolResultsPruned int
	Summary           string
}

// ToolResultsPruned marks a standalone tool-result pruning pass.
type ToolResultsPruned struct {
	SessionID string
	Pruned    int
}

// AgentLoopCompleted marks the end of a turn.
type AgentLoopCompleted struct {
	RunID   string
	Success bool
}

func (AgentLoopStarted) EventName() string       { return "agent_loop_started" }
func (MessageAdded) EventName() string           { return "message_added" }
func (LlmCompletionRequested) EventName() string { return "llm_completion_requested" }
func (LlmCompletionReceived) EventName() string  { return "llm_completion_received" }
func (ResponseGenerated) EventName() string      { return "response_generated" }
func (ToolCallInitiated) EventName() string      { return "tool_call_initiated" }
func (ToolExecuted) EventName() string           { return "tool_executed" }
func (ContextCompacted) EventName() string       { return "context_compacted" }
func (ToolResultsPruned) EventName() string      { return "tool_results_pruned" }
func (AgentLoopCompleted) EventName() string     { return "agent_loop_completed" }
