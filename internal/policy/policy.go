// Package policy decides whether a requested tool call may execute.
// Evaluation is a pure function of the call and the configured rules, so
// identical inputs always yield identical decisions.
package policy

import (
	"path/filepath"
	"strings"
)

// Verdict is the outcome category of a policy evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictAsk   Verdict = "ask"
)

// Decision is the result of evaluating a tool call.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// Allow builds an allow decision.
func Allow(reason string) Decision { return Decision{Verdict: VerdictAllow, Reason: reason} }

// Deny builds a deny decision.
func Deny(reason string) Decision { return Decision{Verdict: VerdictDeny, Reason: reason} }

// Ask builds an ask decision: execution must wait for explicit approval.
func Ask(reason string) Decision { return Decision{Verdict: VerdictAsk, Reason: reason} }

// AskMode controls what happens when a tool is not allow-listed.
type AskMode string

const (
	// AskOff denies anything not explicitly allowed.
	AskOff AskMode = "off"
	// AskOnMiss asks for tools missing from the allow list.
	AskOnMiss AskMode = "on-miss"
	// AskAlways asks for every non-allow-listed tool.
	AskAlways AskMode = "always"
)

// ExecSecurity is the tiered security mode for the exec tool.
type ExecSecurity string

const (
	// ExecDeny disables exec entirely.
	ExecDeny ExecSecurity = "deny"
	// ExecAllowlist permits only commands whose binary is a safe bin.
	ExecAllowlist ExecSecurity = "allowlist"
	// ExecFull permits any command.
	ExecFull ExecSecurity = "full"
)

// ExecConfig configures the exec tool's security tier.
type ExecConfig struct {
	Security ExecSecurity `yaml:"security" json:"security"`
	SafeBins []string     `yaml:"safeBins" json:"safeBins"`
}

// Config is the rule set an Engine evaluates against. It is read-only
// during a turn.
type Config struct {
	Allow   []string   `yaml:"allow" json:"allow"`
	Deny    []string   `yaml:"deny" json:"deny"`
	AskMode AskMode    `yaml:"askMode" json:"askMode"`
	Exec    ExecConfig `yaml:"exec" json:"exec"`
}

// DefaultConfig returns a conservative rule set: nothing pre-allowed,
// ask on miss, exec restricted to common read-only binaries.
func DefaultConfig() Config {
	return Config{
		AskMode: AskOnMiss,
		Exec: ExecConfig{
			Security: ExecAllowlist,
			SafeBins: []string{"cat", "head", "tail", "wc", "sort", "uniq", "grep", "jq"},
		},
	}
}

// Engine evaluates tool calls against a Config.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine for the given rules.
func NewEngine(cfg Config) *Engine {
	if cfg.AskMode == "" {
		cfg.AskMode = AskOnMiss
	}
	if cfg.Exec.Security == "" {
		cfg.Exec.Security = ExecAllowlist
	}
	return &Engine{cfg: cfg}
}

// Evaluate decides whether the named tool may execute. For exec tools the
// requested command line participates in the decision; deny-list entries
// always win, even over the allow list.
func (e *Engine) Evaluate(toolName string, isExecTool bool, execCommand string) Decision {
	if contains(e.cfg.Deny, toolName) {
		return Deny("in deny list")
	}

	allowed := contains(e.cfg.Allow, toolName)

	if isExecTool && allowed {
		return e.evaluateExec(execCommand)
	}
	if allowed {
		return Allow("")
	}

	switch e.cfg.AskMode {
	case AskOnMiss, AskAlways:
		return Ask("not in allow list")
	default:
		return Deny("not in allow list")
	}
}

// evaluateExec applies the exec security tier to a command line.
func (e *Engine) evaluateExec(command string) Decision {
	switch e.cfg.Exec.Security {
	case ExecDeny:
		return Deny("exec disabled")
	case ExecFull:
		return Allow("")
	}

	// allowlist tier
	command = strings.TrimSpace(command)
	if command == "" {
		return Ask("command not provided")
	}
	bin := filepath.Base(strings.Fields(command)[0])
	if contains(e.cfg.Exec.SafeBins, bin) {
		return Allow("safe bin " + bin)
	}

	switch e.cfg.AskMode {
	case AskOnMiss, AskAlways:
		return Ask("binary " + bin + " not in safe bins")
	default:
		return Deny("binary " + bin + " not in safe bins")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
