// Package config loads and validates the turnstile YAML configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				MaxTokens:        4096,
				MaxMessages:      100,
				MaxContextTokens: 32768,
			},
		},
		Policy: PolicyConfig{
			AskMode: "on-miss",
			Exec: PolicyExecConfig{
				Security: "allowlist",
				SafeBins: []string{"jq", "grep", "cat", "ls", "head", "tail", "wc", "date", "echo"},
			},
		},
		Session: SessionConfig{
			Scope: "per-sender",
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// DefaultAgent returns the agent marked default, or the first one, or a
// built-in fallback when none is configured.
func (c *Config) DefaultAgent() AgentEntry {
	for _, a := range c.Agents.List {
		if a.Default {
			return c.resolveAgent(a)
		}
	}
	if len(c.Agents.List) > 0 {
		return c.resolveAgent(c.Agents.List[0])
	}
	return c.resolveAgent(AgentEntry{ID: "default", Name: "assistant"})
}

// AgentByID returns the agent with the given id, falling back to the
// default agent when not found.
func (c *Config) AgentByID(id string) AgentEntry {
	for _, a := range c.Agents.List {
		if a.ID == id {
			return c.resolveAgent(a)
		}
	}
	return c.DefaultAgent()
}

// resolveAgent fills an agent's zero fields from the defaults.
func (c *Config) resolveAgent(a AgentEntry) AgentEntry {
	d := c.Agents.Defaults
	if a.Model == "" {
		a.Model = d.Model
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = d.MaxTokens
	}
	if a.MaxMessages == 0 {
		a.MaxMessages = d.MaxMessages
	}
	if a.MaxContextTokens == 0 {
		a.MaxContextTokens = d.MaxContextTokens
	}
	if a.Name == "" {
		a.Name = a.ID
	}
	return a
}
