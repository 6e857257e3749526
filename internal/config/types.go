package config

// Config is the root configuration for turnstile.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Models   ModelsConfig   `yaml:"models,omitempty"`
	Agents   AgentsConfig   `yaml:"agents,omitempty"`
	Policy   PolicyConfig   `yaml:"policy,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port int    `yaml:"port,omitempty"`
	Bind string `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"

	CustomBindHost string `yaml:"customBindHost,omitempty"`
}

// ModelsConfig defines model providers.
type ModelsConfig struct {
	Providers map[string]ProviderEntry `yaml:"providers,omitempty"`
}

// ProviderEntry defines one model provider. Providers are external CLI
// programs invoked per completion; mock is reserved for tests.
type ProviderEntry struct {
	Command    string   `yaml:"command"` // executable name or path
	BaseArgs   []string `yaml:"baseArgs,omitempty"`
	ModelFlag  string   `yaml:"modelFlag,omitempty"`
	SystemFlag string   `yaml:"systemFlag,omitempty"`
}

// AgentsConfig defines agent defaults and the agent list.
type AgentsConfig struct {
	Defaults AgentDefaults `yaml:"defaults,omitempty"`
	List     []AgentEntry  `yaml:"list,omitempty"`
}

// AgentDefaults applies to agents that omit the corresponding field.
type AgentDefaults struct {
	Model            string `yaml:"model,omitempty"` // "provider/model"
	MaxTokens        int    `yaml:"maxTokens,omitempty"`
	MaxMessages      int    `yaml:"maxMessages,omitempty"`
	MaxContextTokens int    `yaml:"maxContextTokens,omitempty"`
}

// AgentEntry defines a single agent.
type AgentEntry struct {
	ID               string `yaml:"id"`
	Default          bool   `yaml:"default,omitempty"`
	Name             string `yaml:"name,omitempty"`
	Model            string `yaml:"model,omitempty"`
	SystemPrompt     string `yaml:"systemPrompt,omitempty"`
	MaxTokens        int    `yaml:"maxTokens,omitempty"`
	MaxMessages      int    `yaml:"maxMessages,omitempty"`
	MaxContextTokens int    `yaml:"maxContextTokens,omitempty"`
}

// PolicyConfig controls which tool calls may execute.
type PolicyConfig struct {
	Allow   []string         `yaml:"allow,omitempty"`
	Deny    []string         `yaml:"deny,omitempty"`
	AskMode string           `yaml:"askMode,omitempty"` // "off" | "on-miss" | "always"
	Exec    PolicyExecConfig `yaml:"exec,omitempty"`
}

// PolicyExecConfig controls the exec tool's security tier.
type PolicyExecConfig struct {
	Security string   `yaml:"security,omitempty"` // "deny" | "allowlist" | "full"
	SafeBins []string `yaml:"safeBins,omitempty"`
}

// ChannelsConfig defines channel adapters.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// SessionConfig defines session behavior.
type SessionConfig struct {
	Scope string `yaml:"scope,omitempty"` // "per-sender" | "global"
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"

	SoftThresholdTokens       int   `yaml:"softThresholdTokens,omitempty"`
	SoftThresholdMessages     int   `yaml:"softThresholdMessages,omitempty"`
	DefaultMaxMessagesToKeep  int   `yaml:"defaultMaxMessagesToKeep,omitempty"`
	PruneToolResultsOnCompact *bool `yaml:"pruneToolResultsOnCompact,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
