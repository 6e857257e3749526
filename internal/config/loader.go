package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18790
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Policy.AskMode == "" {
		cfg.Policy.AskMode = "on-miss"
	}
	if cfg.Policy.Exec.Security == "" {
		cfg.Policy.Exec.Security = "allowlist"
	}
	if cfg.Session.Scope == "" {
		cfg.Session.Scope = "per-sender"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Agents.Defaults.MaxTokens == 0 {
		cfg.Agents.Defaults.MaxTokens = 4096
	}
	if cfg.Agents.Defaults.MaxMessages == 0 {
		cfg.Agents.Defaults.MaxMessages = 100
	}
	if cfg.Agents.Defaults.MaxContextTokens == 0 {
		cfg.Agents.Defaults.MaxContextTokens = 32768
	}
}

// applyEnvOverrides reads TURNSTILE_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TURNSTILE_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("TURNSTILE_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("TURNSTILE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TURNSTILE_SESSION_STORE"); v != "" {
		cfg.Session.Store = v
	}
}
