package gateway

import (
	"time"

	"github.com/mfelder/turnstile/internal/agent"
)

// MessageRequest is the POST /api/message body.
type MessageRequest struct {
	AgentID  string `json:"agentId,omitempty"`
	Channel  string `json:"channel,omitempty"`  // defaults to "gateway"
	PeerType string `json:"peerType,omitempty"` // defaults to "dm"
	PeerID   string `json:"peerId"`
	ThreadID string `json:"threadId,omitempty"`
	Text     string `json:"text"`
}

// MessageResponse acknowledges an accepted run.
type MessageResponse struct {
	RunID      string    `json:"runId"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// WaitResponse is the POST /api/wait reply.
type WaitResponse struct {
	RunID   string `json:"runId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the JSON error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Frame is one event on the WebSocket stream. Type discriminates the
// payload fields.
type Frame struct {
	Type  string `json:"type"` // "lifecycle" | "delta" | "tool_start" | "tool_end"
	RunID string `json:"runId"`

	Phase   string `json:"phase,omitempty"`   // lifecycle
	Message string `json:"message,omitempty"` // lifecycle errors

	Text string `json:"text,omitempty"` // delta
	Done bool   `json:"done,omitempty"` // delta

	Tool    string `json:"tool,omitempty"` // tool_start / tool_end
	CallID  string `json:"callId,omitempty"`
	Content string `json:"content,omitempty"` // tool_end
	IsError bool   `json:"isError,omitempty"` // tool_end
}

// frameFor converts a run event into its wire frame.
func frameFor(ev agent.Event) (Frame, bool) {
	switch e := ev.(type) {
	case agent.Lifecycle:
		return Frame{Type: "lifecycle", RunID: e.RunID, Phase: string(e.Phase), Message: e.Message}, true
	case agent.Delta:
		return Frame{Type: "delta", RunID: e.RunID, Text: e.Text, Done: e.Done}, true
	case agent.ToolStart:
		return Frame{Type: "tool_start", RunID: e.RunID, Tool: e.Tool, CallID: e.CallID}, true
	case agent.ToolEnd:
		return Frame{Type: "tool_end", RunID: e.RunID, Tool: e.Tool, CallID: e.CallID, Content: e.Content, IsError: e.IsError}, true
	}
	return Frame{}, false
}
