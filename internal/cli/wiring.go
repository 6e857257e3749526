package cli

import (
	"fmt"

	"github.com/mfelder/turnstile/internal/agent"
	"github.com/mfelder/turnstile/internal/bus"
	"github.com/mfelder/turnstile/internal/config"
	"github.com/mfelder/turnstile/internal/contextbuild"
	"github.com/mfelder/turnstile/internal/llm"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/policy"
	"github.com/mfelder/turnstile/internal/runtime"
	"github.com/mfelder/turnstile/internal/session"
	"github.com/mfelder/turnstile/internal/store"
	"github.com/mfelder/turnstile/internal/tools"
)

// stack bundles the wired runtime for one agent.
type stack struct {
	agent     config.AgentEntry
	repo      store.SessionRepository
	db        *store.DB // nil for the memory store
	providers *llm.Registry
	scheduler *runtime.Scheduler
}

// Close releases the stack's resources.
func (s *stack) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// buildProviderRegistry registers every configured provider whose CLI is on
// PATH.
func buildProviderRegistry(cfg config.ModelsConfig, log *logging.Logger) *llm.Registry {
	registry := llm.NewRegistry(log)
	for name, p := range cfg.Providers {
		if !llm.CLIExists(p.Command) {
			log.Warn().Str("provider", name).Str("command", p.Command).Msg("provider CLI not found; skipping")
			continue
		}
		registry.Register(name, llm.NewExternalCLIClient(llm.ExternalCLIConfig{
			Command:    p.Command,
			Name:       name,
			BaseArgs:   p.BaseArgs,
			ModelFlag:  p.ModelFlag,
			SystemFlag: p.SystemFlag,
		}, log))
	}
	return registry
}

// policyFromConfig converts the YAML policy section to engine rules.
func policyFromConfig(cfg config.PolicyConfig) policy.Config {
	return policy.Config{
		Allow:   cfg.Allow,
		Deny:    cfg.Deny,
		AskMode: policy.AskMode(cfg.AskMode),
		Exec: policy.ExecConfig{
			Security: policy.ExecSecurity(cfg.Exec.Security),
			SafeBins: cfg.Exec.SafeBins,
		},
	}
}

// compactionFromConfig merges the YAML session section over the compaction
// defaults. Omitted fields keep their default values.
func compactionFromConfig(sc config.SessionConfig) session.CompactionConfig {
	cc := session.DefaultCompactionConfig()
	if sc.SoftThresholdTokens > 0 {
		cc.SoftThresholdTokens = sc.SoftThresholdTokens
	}
	if sc.SoftThresholdMessages > 0 {
		cc.SoftThresholdMessages = sc.SoftThresholdMessages
	}
	if sc.DefaultMaxMessagesToKeep > 0 {
		cc.DefaultMaxMessagesToKeep = sc.DefaultMaxMessagesToKeep
	}
	if sc.PruneToolResultsOnCompact != nil {
		cc.PruneToolResultsOnCompact = *sc.PruneToolResultsOnCompact
	}
	return cc
}

// buildStack wires the full run pipeline from config. inMemory forces the
// memory session store regardless of config (used by one-shot commands).
func buildStack(cfg config.Config, paths config.Paths, inMemory bool, log *logging.Logger) (*stack, error) {
	agentCfg := cfg.DefaultAgent()
	compaction := compactionFromConfig(cfg.Session)

	var repo store.SessionRepository
	var db *store.DB
	if !inMemory && cfg.Session.Store == "sqlite" {
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data directories: %w", err)
		}
		var err error
		db, err = store.Open(paths.SessionDBPath(), log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		repo = store.NewSQLiteRepository(db, compaction)
		log.Info().Str("path", paths.SessionDBPath()).Msg("using SQLite session store")
	} else {
		repo = store.NewMemoryRepository()
		log.Info().Msg("using in-memory session store")
	}

	providers := buildProviderRegistry(cfg.Models, log)

	toolReg := tools.NewRegistry()
	toolReg.Register(tools.ExecTool{})
	toolReg.Register(tools.TimeTool{})

	engine := policy.NewEngine(policyFromConfig(cfg.Policy))
	execSvc := tools.NewExecService(toolReg, engine, log)

	publisher := bus.NewFanout(log)
	publisher.Subscribe("audit", func(ev bus.Event) error {
		log.Debug().Str("event", ev.EventName()).Msg("domain event")
		return nil
	})

	assembler := contextbuild.NewBuilder(agentCfg.Name, agentCfg.SystemPrompt, nil)

	orch := agent.NewOrchestrator(
		agent.Config{
			AgentID:          agentCfg.ID,
			AgentName:        agentCfg.Name,
			ModelRef:         agentCfg.Model,
			MaxTokens:        agentCfg.MaxTokens,
			MaxMessages:      agentCfg.MaxMessages,
			MaxContextTokens: agentCfg.MaxContextTokens,
			Compaction:       compaction,
		},
		repo,
		session.NewKeyLocks(),
		providers,
		assembler,
		toolReg,
		execSvc,
		publisher,
		log,
	)

	return &stack{
		agent:     agentCfg,
		repo:      repo,
		db:        db,
		providers: providers,
		scheduler: runtime.NewScheduler(orch, log),
	}, nil
}
