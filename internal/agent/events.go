package agent

// Event is a run-scoped event streamed to the caller while a turn executes.
// The set of implementations is closed; consumers dispatch with a type
// switch.
type Event interface{ agentEvent() }

// Phase marks where in its lifecycle a run is.
type Phase string

const (
	PhaseStart Phase = "START"
	PhaseEnd   Phase = "END"
	PhaseError Phase = "ERROR"
)

// Lifecycle is the run-boundary event emitted by the scheduler, interleaved
// with the orchestrator's events on the run channel.
type Lifecycle struct {
	RunID   string
	Phase   Phase
	Message string // set when Phase is ERROR
}

// Delta is an incremental piece of assistant text. Done marks the end of the
// assistant's streamed output.
type Delta struct {
	RunID string
	Text  string
	Done  bool
}

// ToolStart marks the beginning of a tool call's execution.
type ToolStart struct {
	RunID  string
	Tool   string
	CallID string
}

// ToolEnd carries a tool call's result content, error or not.
type ToolEnd struct {
	RunID   string
	Tool    string
	CallID  string
	Content string
	IsError bool
}

func (Delta) agentEvent()     {}
func (ToolStart) agentEvent() {}
func (ToolEnd) agentEvent()   {}
func (Lifecycle) agentEvent() {}
