package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// execTimeout bounds a single exec tool invocation.
const execTimeout = 60 * time.Second

// ExecTool runs shell commands. It is only reachable through the execution
// service, which applies the exec security tier before invocation.
type ExecTool struct{}

func (ExecTool) Name() string { return ExecToolName }

func (ExecTool) Description() string {
	return "Run a shell command and return its combined output."
}

func (ExecTool) InputSchema() string {
	return `{"type":"object","properties":{"command":{"type":"string","description":"Command line to run"}},"required":["command"]}`
}

func (ExecTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("exec: invalid input: %w", err)
	}
	if strings.TrimSpace(args.Command) == "" {
		return "", fmt.Errorf("exec: empty command")
	}

	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "sh", "-c", args.Command).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("exec: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// TimeTool reports the current time. Useful as a zero-risk smoke-test tool.
type TimeTool struct{}

func (TimeTool) Name() string { return "time" }

func (TimeTool) Description() string {
	return "Return the current date and time in RFC3339 form."
}

func (TimeTool) InputSchema() string {
	return `{"type":"object","properties":{}}`
}

func (TimeTool) Execute(ctx context.Context, input string) (string, error) {
	return time.Now().Format(time.RFC3339), nil
}
