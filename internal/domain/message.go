package domain

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a session transcript.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	ToolCallID string     `json:"toolCallId,omitempty"` // set on tool-result messages
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`  // set on assistant messages that request tools
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// ToolResult is the normalized outcome of executing a tool call.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      string `json:"schema"` // JSON Schema string
}
