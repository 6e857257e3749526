package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	validScopes := []string{"per-sender", "global"}
	if cfg.Session.Scope != "" && !slices.Contains(validScopes, cfg.Session.Scope) {
		issues = append(issues, ValidationIssue{
			Path:    "session.scope",
			Message: fmt.Sprintf("must be one of %v, got %q", validScopes, cfg.Session.Scope),
		})
	}

	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	validAskModes := []string{"off", "on-miss", "always"}
	if cfg.Policy.AskMode != "" && !slices.Contains(validAskModes, cfg.Policy.AskMode) {
		issues = append(issues, ValidationIssue{
			Path:    "policy.askMode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAskModes, cfg.Policy.AskMode),
		})
	}

	validExecTiers := []string{"deny", "allowlist", "full"}
	if cfg.Policy.Exec.Security != "" && !slices.Contains(validExecTiers, cfg.Policy.Exec.Security) {
		issues = append(issues, ValidationIssue{
			Path:    "policy.exec.security",
			Message: fmt.Sprintf("must be one of %v, got %q", validExecTiers, cfg.Policy.Exec.Security),
		})
	}

	for i, a := range cfg.Agents.List {
		if a.ID == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("agents.list[%d].id", i),
				Message: "id is required",
			})
		}
		model := a.Model
		if model == "" {
			model = cfg.Agents.Defaults.Model
		}
		if model != "" && !strings.Contains(model, "/") {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("agents.list[%d].model", i),
				Message: fmt.Sprintf("model ref must be provider/model, got %q", model),
			})
		}
	}

	if cfg.Channels.IRC != nil {
		irc := cfg.Channels.IRC
		if irc.Server == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.server",
				Message: "server is required",
			})
		}
		if irc.Nick == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.nick",
				Message: "nick is required",
			})
		}
		if irc.Port < 0 || irc.Port > 65535 {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.port",
				Message: fmt.Sprintf("port must be 0-65535, got %d", irc.Port),
			})
		}
		if irc.SASL && irc.Password == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.sasl",
				Message: "SASL requires a password to be set",
			})
		}
	}

	return issues
}
