package cli

import (
	"fmt"
	"path/filepath"

	"github.com/agentmux/agentmux/internal/clarify"
	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/events"
	"github.com/agentmux/agentmux/internal/executor"
	"github.com/agentmux/agentmux/internal/llm"
	"github.com/agentmux/agentmux/internal/orchestrator"
	"github.com/agentmux/agentmux/internal/planner"
	"github.com/agentmux/agentmux/internal/registry"
	"github.com/agentmux/agentmux/internal/session"
	"github.com/agentmux/agentmux/internal/store"
	"github.com/agentmux/agentmux/internal/triage"
)

// app holds the wired component graph behind each command.
type app struct {
	cfg          *config.Config
	store        *store.Store
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
}

// buildApp loads configuration and assembles the pipeline.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDir(filepath.Dir(cfg.Paths.Database)); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.Registry, cfg.Paths.AgentsDir)
	gen := llm.NewOpenAIGenerator(cfg.Model.APIKey, cfg.Model.APIBase, cfg.Model.Name)
	sessions := session.NewManager(cfg.Paths.SessionsDir)

	ev := events.NewService(st, cfg.Events)
	ex := executor.New(st, reg, ev, cfg.Executor)
	orch := orchestrator.New(
		st,
		reg,
		triage.New(gen, sessions, cfg.Model),
		planner.New(gen, reg, cfg.Model),
		clarify.NewManager(),
		ev,
		ex,
	)

	return &app{
		cfg:          cfg,
		store:        st,
		registry:     reg,
		orchestrator: orch,
	}, nil
}

// close tears the graph down in reverse dependency order.
func (a *app) close() {
	a.orchestrator.Close()
	_ = a.store.Close()
}
