// Package agent implements the turn orchestrator: one inbound message in,
// one locked turn out. A turn appends the user message, assembles context,
// streams the model's completion through the turn state machine, executes
// validated tool calls in request order, persists everything, and finally
// gives the session a chance to compact.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/mfelder/turnstile/internal/bus"
	"github.com/mfelder/turnstile/internal/contextbuild"
	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/llm"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/session"
	"github.com/mfelder/turnstile/internal/store"
	"github.com/mfelder/turnstile/internal/tools"
	"github.com/mfelder/turnstile/internal/turn"
)

// resultSummaryLen bounds the tool-result excerpt carried on ToolExecuted
// events.
const resultSummaryLen = 200

// Config identifies the agent and its model.
type Config struct {
	AgentID          string
	AgentName        string
	ModelRef         string // "provider/model"
	MaxTokens        int    // per-completion output budget
	MaxMessages      int    // transcript message ceiling before compaction
	MaxContextTokens int    // context window budget for compaction checks

	// Compaction tunes new sessions; the zero value falls back to the
	// session package defaults.
	Compaction session.CompactionConfig
}

// Request is one inbound message bound for a session.
type Request struct {
	RunID string
	Key   domain.SessionKey
	Text  string
}

// Orchestrator drives turns. It owns no run bookkeeping; the runtime
// scheduler wraps it per run.
type Orchestrator struct {
	cfg       Config
	repo      store.SessionRepository
	locks     *session.KeyLocks
	providers *llm.Registry
	assembler contextbuild.Assembler
	registry  *tools.Registry
	exec      *tools.ExecService
	pub       bus.Publisher
	log       *logging.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(
	cfg Config,
	repo store.SessionRepository,
	locks *session.KeyLocks,
	providers *llm.Registry,
	assembler contextbuild.Assembler,
	registry *tools.Registry,
	exec *tools.ExecService,
	pub bus.Publisher,
	log *logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		repo:      repo,
		locks:     locks,
		providers: providers,
		assembler: assembler,
		registry:  registry,
		exec:      exec,
		pub:       pub,
		log:       log.Sub("agent"),
	}
}

// Run executes one turn under the session key's exclusive lock, emitting
// run events through emit as they happen. Errors propagate to the caller
// unhandled; partial persistence is not rolled back.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit func(Event)) error {
	lock := o.locks.Get(req.Key)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.loadOrCreate(req.Key)
	if err != nil {
		return err
	}

	o.pub.Publish(bus.AgentLoopStarted{RunID: req.RunID, SessionID: sess.ID, AgentID: o.cfg.AgentID})

	sess, err = o.appendAndPersist(sess, domain.Message{Role: domain.RoleUser, Content: req.Text})
	if err != nil {
		return err
	}

	bundle, err := o.assembler.Build(ctx, sess, o.registry)
	if err != nil {
		return fmt.Errorf("assembling context: %w", err)
	}

	client, ref, err := o.providers.ResolveRef(o.cfg.ModelRef)
	if err != nil {
		return err
	}

	o.pub.Publish(bus.LlmCompletionRequested{RunID: req.RunID, Provider: ref.Provider, Model: ref.Model})

	stream, err := client.Stream(ctx, llm.CompletionRequest{
		Model:     ref.Model,
		System:    bundle.System,
		Messages:  bundle.Messages,
		Tools:     bundle.Tools,
		MaxTokens: o.cfg.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("starting completion stream: %w", err)
	}

	machine := turn.NewMachine(o.registry, o.log)
	plan, err := o.consumeTurn(req.RunID, machine.ProcessCompletion(req.RunID, stream), emit)
	if err != nil {
		return err
	}

	o.pub.Publish(bus.LlmCompletionReceived{RunID: req.RunID, CompletionTokens: plan.CompletionTokens})

	if plan.AssistantText != "" {
		sess, err = o.appendAndPersist(sess, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   plan.AssistantText,
			ToolCalls: plan.ToolCalls,
		})
		if err != nil {
			return err
		}
		o.pub.Publish(bus.ResponseGenerated{RunID: req.RunID, SessionID: sess.ID, Length: len(plan.AssistantText)})
	}

	for _, call := range plan.ToolCalls {
		sess, err = o.runToolCall(ctx, req.RunID, sess, call, emit)
		if err != nil {
			return err
		}
	}

	if err := o.maybeCompact(sess); err != nil {
		return err
	}

	o.pub.Publish(bus.AgentLoopCompleted{RunID: req.RunID, Success: true})
	return nil
}

func (o *Orchestrator) loadOrCreate(key domain.SessionKey) (*session.Session, error) {
	sess, err := o.repo.FindByKey(key)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess != nil {
		return sess, nil
	}
	sess = session.New(key, o.cfg.AgentID)
	if o.cfg.Compaction != (session.CompactionConfig{}) {
		sess.Config = o.cfg.Compaction
	}
	if err := o.repo.Save(sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	o.log.Info().Str("sessionId", sess.ID).Str("key", key.String()).Msg("session created")
	return sess, nil
}

// appendAndPersist appends the message to the aggregate, writes it through,
// and publishes MessageAdded.
func (o *Orchestrator) appendAndPersist(sess *session.Session, msg domain.Message) (*session.Session, error) {
	next, added := sess.WithMessage(msg)
	stored := next.Messages[len(next.Messages)-1]
	if err := o.repo.AppendMessage(next.ID, stored); err != nil {
		return nil, fmt.Errorf("persisting %s message: %w", msg.Role, err)
	}
	o.pub.Publish(added)
	return next, nil
}

// consumeTurn drains the turn event stream, forwarding assistant deltas to
// the caller and returning the completion plan. Validation errors are logged
// and dropped from the outward stream.
func (o *Orchestrator) consumeTurn(runID string, events <-chan turn.Event, emit func(Event)) (turn.Plan, error) {
	var plan turn.Plan
	completed := false

	for ev := range events {
		switch e := ev.(type) {
		case turn.AssistantDelta:
			emit(Delta{RunID: runID, Text: e.Text, Done: e.Done})
		case turn.ToolValidationError:
			o.log.Warn().Str("runId", runID).Str("tool", e.ToolName).Str("reason", e.Reason).
				Msg("dropping invalid tool call")
		case turn.Completed:
			plan = e.Plan
			completed = true
		case turn.Failed:
			return turn.Plan{}, fmt.Errorf("model stream failed: %s", e.Error)
		}
	}
	if !completed {
		return turn.Plan{}, fmt.Errorf("model stream ended without completing")
	}
	return plan, nil
}

// runToolCall executes one validated tool call and persists its result as a
// TOOL message regardless of success.
func (o *Orchestrator) runToolCall(ctx context.Context, runID string, sess *session.Session, call domain.ToolCall, emit func(Event)) (*session.Session, error) {
	o.pub.Publish(bus.ToolCallInitiated{RunID: runID, Tool: call.Name, CallID: call.ID})
	emit(ToolStart{RunID: runID, Tool: call.Name, CallID: call.ID})

	started := time.Now()
	result := o.exec.Execute(ctx, call)
	elapsed := time.Since(started)

	emit(ToolEnd{RunID: runID, Tool: call.Name, CallID: call.ID, Content: result.Content, IsError: result.IsError})

	sess, err := o.appendAndPersist(sess, domain.Message{
		Role:       domain.RoleTool,
		Content:    result.Content,
		ToolCallID: call.ID,
	})
	if err != nil {
		return nil, err
	}

	o.pub.Publish(bus.ToolExecuted{
		RunID:         runID,
		Tool:          call.Name,
		Success:       !result.IsError,
		DurationMS:    elapsed.Milliseconds(),
		ResultSummary: truncate(result.Content, resultSummaryLen),
	})
	return sess, nil
}

// maybeCompact runs at the end of every turn; the thresholds inside the
// session config decide whether anything actually happens.
func (o *Orchestrator) maybeCompact(sess *session.Session) error {
	tokens := sess.EstimateTokens()
	overTokens := o.cfg.MaxContextTokens > 0 && sess.ShouldCompact(tokens, o.cfg.MaxContextTokens)
	overMessages := o.cfg.MaxMessages > 0 && sess.ShouldCompactByMessageCount(o.cfg.MaxMessages)
	if !overTokens && !overMessages {
		return nil
	}

	compacted, ev, err := sess.Compact(sess.Config.DefaultMaxMessagesToKeep, sess.Config.PruneToolResultsOnCompact, "")
	if err != nil {
		return fmt.Errorf("compacting session: %w", err)
	}
	if err := o.repo.Save(compacted); err != nil {
		return fmt.Errorf("persisting compacted session: %w", err)
	}
	o.pub.Publish(ev)
	o.log.Info().
		Str("sessionId", sess.ID).
		Int("before", ev.MessagesBefore).
		Int("after", ev.MessagesAfter).
		Msg("session compacted")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
