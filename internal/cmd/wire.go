package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/testgpt-run/testgpt/internal/agent"
	"github.com/testgpt-run/testgpt/internal/catalog"
	"github.com/testgpt-run/testgpt/internal/config"
	"github.com/testgpt-run/testgpt/internal/orchestrator"
	"github.com/testgpt-run/testgpt/internal/parser"
	"github.com/testgpt-run/testgpt/internal/planbuilder"
	"github.com/testgpt-run/testgpt/internal/pool"
	"github.com/testgpt-run/testgpt/internal/stability"
	"github.com/testgpt-run/testgpt/internal/store"
)

// core bundles the config-derived, long-lived dependencies shared by
// every subcommand: the Environment Catalog, Request Parser, Plan
// Builder, Scenario Store, and Stability Tracker. The Subprocess Pool
// and Model Agent are NOT here — both are scoped to a single
// orchestration and are constructed fresh per run by newOrchestrator.
type core struct {
	cfg       *config.Config
	log       zerolog.Logger
	cat       *catalog.Catalog
	parser    *parser.Parser
	builder   *planbuilder.Builder
	store     *store.Store
	stability *stability.Tracker
}

func wireCore() (*core, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if root := os.Getenv("TESTGPT_STORAGE_ROOT"); root != "" {
		cfg.Storage.Root = root
	}

	log := newLogger()
	cat := catalog.New(cfg.Viewports, cfg.Browsers, cfg.Networks, cfg.SiteOverrides)

	st, err := store.New(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("opening scenario store: %w", err)
	}

	tracker, err := stability.New(log, cfg.Storage.Root+"/stability.json", stability.Config{
		WindowSize:                   cfg.Stability.WindowSize,
		FlakeThreshold:               cfg.Stability.FlakeThreshold,
		MinRuns:                      cfg.Stability.MinRuns,
		AutoQuarantine:               cfg.Stability.AutoQuarantine,
		AutoUnquarantine:             cfg.Stability.AutoUnquarantine,
		UnquarantineThreshold:        cfg.Stability.UnquarantineThreshold,
		ConsecutiveFailuresThreshold: cfg.Stability.ConsecutiveFailuresThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("opening stability tracker: %w", err)
	}

	return &core{
		cfg:       cfg,
		log:       log,
		cat:       cat,
		parser:    parser.New(cat),
		builder:   planbuilder.New(cat),
		store:     st,
		stability: tracker,
	}, nil
}

// newOrchestrator builds a fresh Subprocess Pool and Model Agent for
// one orchestration and wires them into a new Orchestrator. The pool
// is process-local to this one run; it is never shared or reused
// across orchestrations (§4.5, §5).
func (c *core) newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	p := pool.New(c.log, c.cfg.Timeouts.SubprocessLaunch(), os.Getenv(pool.BrowserPathEnvVar))

	apiKey := os.Getenv(c.cfg.Model.APIKeyEnvVar)
	model, err := agent.NewGenaiAgent(ctx, apiKey, c.cfg.Model.DefaultModel, agent.Budget{
		MaxTurns:    c.cfg.Timeouts.MaxAgentTurns,
		TurnTimeout: c.cfg.Timeouts.ToolCall(),
		WallClock:   c.cfg.Timeouts.Agent(),
	})
	if err != nil {
		return nil, fmt.Errorf("constructing model agent: %w", err)
	}

	return orchestrator.New(
		c.log, c.cat, c.parser, c.builder, c.store,
		p.AsOrchestratorPool(), model, c.cfg.Timeouts.ToolCall(),
		c.cfg.MaxConcurrency, c.stability,
	), nil
}
