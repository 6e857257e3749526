package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/policy"
)

// ExecToolName is the tool name that triggers exec-specific policy
// evaluation.
const ExecToolName = "exec"

// ExecService executes validated tool calls: registry lookup, policy
// evaluation, executor invocation, and error normalization. Execution
// failures never propagate as errors out of this service; they become
// error results the model can react to.
type ExecService struct {
	registry *Registry
	engine   *policy.Engine
	log      *logging.Logger
}

// NewExecService creates the execution service.
func NewExecService(registry *Registry, engine *policy.Engine, log *logging.Logger) *ExecService {
	return &ExecService{
		registry: registry,
		engine:   engine,
		log:      log.Sub("tools"),
	}
}

// Execute runs a single tool call and returns its normalized result.
func (s *ExecService) Execute(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	tool, ok := s.registry.Get(call.Name)
	if !ok {
		return domain.ToolResult{
			Content: fmt.Sprintf("Tool '%s' not found in registry", call.Name),
			IsError: true,
		}
	}

	isExec := call.Name == ExecToolName
	decision := s.engine.Evaluate(call.Name, isExec, execCommand(isExec, call.Arguments))
	switch decision.Verdict {
	case policy.VerdictDeny:
		s.log.Warn().Str("tool", call.Name).Str("reason", decision.Reason).Msg("tool call denied")
		return domain.ToolResult{Content: decision.Reason, IsError: true}
	case policy.VerdictAsk:
		s.log.Info().Str("tool", call.Name).Str("reason", decision.Reason).Msg("tool call needs approval")
		return domain.ToolResult{
			Content: fmt.Sprintf("Approval required: %s", decision.Reason),
			IsError: true,
		}
	}

	s.log.Debug().Str("tool", call.Name).Str("callId", call.ID).Msg("executing tool")
	output, err := s.invoke(ctx, tool, call.Arguments)
	if err != nil {
		return domain.ToolResult{Content: err.Error(), IsError: true}
	}
	return domain.ToolResult{Content: output}
}

// invoke calls the executor, converting panics into error results so a
// misbehaving tool cannot abort the turn.
func (s *ExecService) invoke(ctx context.Context, tool Tool, input string) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), r)
		}
	}()
	return tool.Execute(ctx, input)
}

// execCommand extracts the requested command line from exec-tool arguments.
func execCommand(isExec bool, argumentsJSON string) string {
	if !isExec {
		return ""
	}
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return ""
	}
	return args.Command
}
