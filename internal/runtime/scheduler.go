// Package runtime schedules turns as concurrent runs: one background task
// per inbound message, a bounded event channel per run, and a wait API for
// callers that want a synchronous result.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfelder/turnstile/internal/agent"
	"github.com/mfelder/turnstile/internal/logging"
)

// eventBuffer is the per-run event channel capacity.
const eventBuffer = 64

// Status is a run's terminal (or pending) state.
type Status string

const (
	StatusOK      Status = "OK"
	StatusError   Status = "ERROR"
	StatusTimeout Status = "TIMEOUT"
)

// Handle is returned by Start; Events closes when the run finishes.
type Handle struct {
	RunID      string
	AcceptedAt time.Time
	Events     <-chan agent.Event
}

// Result is a run's recorded outcome.
type Result struct {
	RunID   string
	Status  Status
	Message string
}

type runState struct {
	done   chan struct{}
	result Result
}

// Scheduler fans turns out to background tasks and tracks in-flight runs.
// Completed runs drop out of the table; Wait on an already-finished run
// reports it as unknown.
type Scheduler struct {
	orch *agent.Orchestrator
	log  *logging.Logger

	mu   sync.Mutex
	runs map[string]*runState
}

// NewScheduler creates a scheduler around the orchestrator.
func NewScheduler(orch *agent.Orchestrator, log *logging.Logger) *Scheduler {
	return &Scheduler{
		orch: orch,
		log:  log.Sub("runtime"),
		runs: make(map[string]*runState),
	}
}

// Start accepts the request, schedules its turn in the background, and
// returns immediately. The handle's channel delivers lifecycle and turn
// events in emission order and closes when the run ends.
func (s *Scheduler) Start(req agent.Request) Handle {
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	events := make(chan agent.Event, eventBuffer)
	state := &runState{done: make(chan struct{})}

	s.mu.Lock()
	s.runs[req.RunID] = state
	s.mu.Unlock()

	s.log.Debug().Str("runId", req.RunID).Str("key", req.Key.String()).Msg("run accepted")
	go s.execute(req, events, state)

	return Handle{RunID: req.RunID, AcceptedAt: time.Now(), Events: events}
}

func (s *Scheduler) execute(req agent.Request, events chan agent.Event, state *runState) {
	events <- agent.Lifecycle{RunID: req.RunID, Phase: agent.PhaseStart}

	err := s.orch.Run(context.Background(), req, func(ev agent.Event) {
		events <- ev
	})

	result := Result{RunID: req.RunID, Status: StatusOK}
	if err != nil {
		s.log.Error().Err(err).Str("runId", req.RunID).Msg("run failed")
		result = Result{RunID: req.RunID, Status: StatusError, Message: err.Error()}
		events <- agent.Lifecycle{RunID: req.RunID, Phase: agent.PhaseError, Message: err.Error()}
	} else {
		events <- agent.Lifecycle{RunID: req.RunID, Phase: agent.PhaseEnd}
	}

	close(events)

	state.result = result
	close(state.done)

	s.mu.Lock()
	delete(s.runs, req.RunID)
	s.mu.Unlock()
}

// Wait blocks for the run's result up to timeout. On timeout the run is not
// cancelled; it keeps executing and persisting independently. An unknown
// runId yields an ERROR result.
func (s *Scheduler) Wait(runID string, timeout time.Duration) Result {
	s.mu.Lock()
	state, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return Result{RunID: runID, Status: StatusError, Message: "unknown runId"}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-state.done:
		return state.result
	case <-timer.C:
		return Result{RunID: runID, Status: StatusTimeout, Message: "wait timed out; run continues"}
	}
}

// Active returns the number of in-flight runs.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
