package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mfelder/turnstile/internal/logging"
)

// ExternalCLIConfig configures a provider that shells out to an external
// model CLI. The CLI reads the prompt on stdin and writes the completion to
// stdout; auth, retries, and the wire protocol stay inside the CLI.
type ExternalCLIConfig struct {
	// Command is the binary name (e.g. "claude").
	Command string

	// Name is the provider name registered in the Registry.
	Name string

	// BaseArgs are always-present arguments.
	BaseArgs []string

	// ModelFlag passes the model id (e.g. "--model"). Empty to skip.
	ModelFlag string

	// SystemFlag passes the system prompt. Empty to skip.
	SystemFlag string
}

// ExternalCLIClient wraps a model CLI as a Client.
type ExternalCLIClient struct {
	cfg ExternalCLIConfig
	log *logging.Logger
}

// NewExternalCLIClient creates a client for the given CLI.
func NewExternalCLIClient(cfg ExternalCLIConfig, log *logging.Logger) *ExternalCLIClient {
	return &ExternalCLIClient{cfg: cfg, log: log.Sub("llm." + cfg.Name)}
}

// CLIExists reports whether the named binary is on PATH.
func CLIExists(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

func (c *ExternalCLIClient) Name() string { return c.cfg.Name }

// Complete runs the CLI once and returns its stdout as the response text.
func (c *ExternalCLIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	args := append([]string(nil), c.cfg.BaseArgs...)
	if req.Model != "" && c.cfg.ModelFlag != "" {
		args = append(args, c.cfg.ModelFlag, req.Model)
	}
	if req.System != "" && c.cfg.SystemFlag != "" {
		args = append(args, c.cfg.SystemFlag, req.System)
	}

	cmd := exec.CommandContext(ctx, c.cfg.Command, args...)
	cmd.Stdin = strings.NewReader(renderPrompt(req.Messages))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug().Str("command", c.cfg.Command).Int("messages", len(req.Messages)).Msg("invoking model CLI")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", c.cfg.Name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Stream runs Complete and replays the result as a single delta followed by
// a completion marker. CLIs without native streaming still fit the port.
func (c *ExternalCLIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 2)
	go func() {
		defer close(ch)
		text, err := c.Complete(ctx, req)
		if err != nil {
			ch <- StreamEvent{Type: EventError, Error: err.Error()}
			return
		}
		ch <- StreamEvent{Type: EventDelta, Content: text}
		ch <- StreamEvent{Type: EventDone, FinishReason: "stop"}
	}()
	return ch, nil
}

// renderPrompt flattens conversation messages into the plain-text prompt
// format external CLIs consume.
func renderPrompt(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
