// Package turn implements the turn state machine: it consumes a provider's
// completion event stream and produces assistant text, a validated tool-call
// list, and a completion plan, while forwarding text deltas for live
// rendering.
package turn

import (
	"strings"

	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/llm"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/tools"
)

// Event is a turn-scoped event. The set of implementations is closed;
// consumers dispatch with a type switch.
type Event interface{ turnEvent() }

// AssistantDelta is an incremental piece of assistant text, forwarded in
// arrival order. Done marks the provider's completion marker.
type AssistantDelta struct {
	RunID string
	Text  string
	Done  bool
}

// ToolValidationError reports a model-requested tool that is not registered.
// Non-fatal: the stream continues.
type ToolValidationError struct {
	RunID    string
	ToolName string
	Reason   string
}

// Completed carries the final plan once the provider stream ends.
type Completed struct {
	RunID string
	Plan  Plan
}

// Failed reports a provider error event. The turn cannot produce a plan.
type Failed struct {
	RunID string
	Error string
}

func (AssistantDelta) turnEvent()      {}
func (ToolValidationError) turnEvent() {}
func (Completed) turnEvent()           {}
func (Failed) turnEvent()              {}

// Plan is what the orchestrator executes after the model finishes: the
// accumulated assistant text and the validated tool calls in request order.
type Plan struct {
	AssistantText    string
	ToolCalls        []domain.ToolCall
	CompletionTokens int
}

// Machine validates and accumulates one completion stream. Create a fresh
// instance per turn.
type Machine struct {
	registry *tools.Registry
	log      *logging.Logger
}

// NewMachine creates a turn state machine bound to a tool registry.
func NewMachine(registry *tools.Registry, log *logging.Logger) *Machine {
	return &Machine{registry: registry, log: log.Sub("turn")}
}

// ProcessCompletion consumes the provider stream incrementally and emits
// turn events in arrival order. The returned channel closes after the final
// Completed (or Failed) event.
func (m *Machine) ProcessCompletion(runID string, events <-chan llm.StreamEvent) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		var buf strings.Builder
		var calls []domain.ToolCall
		tokens := 0
		failed := false

		for ev := range events {
			switch ev.Type {
			case llm.EventDelta:
				tokens += len(ev.Content) / 4
				out <- AssistantDelta{RunID: runID, Text: ev.Content}
				if strings.TrimSpace(ev.Content) != "" {
					buf.WriteString(ev.Content)
				}

			case llm.EventToolCall:
				if !m.registry.IsRegistered(ev.ToolName) {
					m.log.Warn().
						Str("runId", runID).
						Str("tool", ev.ToolName).
						Msg("model requested unregistered tool")
					out <- ToolValidationError{
						RunID:    runID,
						ToolName: ev.ToolName,
						Reason:   "tool not registered",
					}
					continue
				}
				calls = append(calls, domain.ToolCall{
					ID:        ev.ToolCallID,
					Name:      ev.ToolName,
					Arguments: ev.ToolArgs,
				})

			case llm.EventDone:
				out <- AssistantDelta{RunID: runID, Done: true}

			case llm.EventError:
				failed = true
				out <- Failed{RunID: runID, Error: ev.Error}
			}
		}

		if failed {
			return
		}
		out <- Completed{
			RunID: runID,
			Plan: Plan{
				AssistantText:    strings.TrimSpace(buf.String()),
				ToolCalls:        calls,
				CompletionTokens: tokens,
			},
		}
	}()

	return out
}
