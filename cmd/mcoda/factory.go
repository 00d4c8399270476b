package main

import (
	"fmt"
	"os"

	"github.com/mcoda/mcoda/internal/agent"
	"github.com/mcoda/mcoda/internal/backlog"
	"github.com/mcoda/mcoda/internal/config"
	"github.com/mcoda/mcoda/internal/docdex"
	"github.com/mcoda/mcoda/internal/ordering"
	"github.com/mcoda/mcoda/internal/store"
	"github.com/mcoda/mcoda/internal/telemetry"
)

// openWorkspaceStore opens and verifies the workspace database.
func openWorkspaceStore() (*store.DB, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	db, err := store.OpenWorkspace(cwd)
	if err != nil {
		return nil, err
	}
	if err := db.CheckSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w (run 'mcoda init' to create the backlog schema)", err)
	}
	return db, nil
}

// buildService wires an ordering service from config. withAgent controls
// whether the Anthropic client is constructed; commands that never call the
// agent skip it so they work without credentials.
func buildService(cfg *config.Config, db *store.DB, withAgent bool) (*ordering.Service, error) {
	svc := &ordering.Service{
		Store:      db,
		StageOrder: cfg.StageOrder(),
		Policy:     docdex.Policy(cfg.Docdex.Policy),
	}

	if cfg.Telemetry.Enabled {
		rec, err := telemetry.NewSQLite(db)
		if err != nil {
			return nil, err
		}
		svc.Recorder = rec
	}

	if withAgent {
		var apiKey string
		if !cfg.Anthropic.UseAWSBedrock {
			key, err := config.GetAPIKey(cfg)
			if err != nil {
				return nil, fmt.Errorf("resolve Anthropic API key: %w", err)
			}
			apiKey = key
		}
		client, err := agent.NewClient(agent.ClientConfig{
			Model:         cfg.Anthropic.Model,
			APIKey:        apiKey,
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("configure agent client: %w", err)
		}
		svc.Invoker = client
		svc.Router = buildRouter(cfg)
	}

	return svc, nil
}

// buildRouter maps the config's agent registry into the routing table.
func buildRouter(cfg *config.Config) *agent.ConfigRouter {
	router := &agent.ConfigRouter{
		Defaults: cfg.Agents.Defaults,
		Agents:   make(map[string]agent.Agent, len(cfg.Agents.Registry)),
	}
	for slug, ac := range cfg.Agents.Registry {
		id := ac.ID
		if id == "" {
			id = slug
		}
		router.Agents[slug] = agent.Agent{ID: id, Slug: slug, Model: ac.Model}
	}
	return router
}

// buildAggregator wires a backlog aggregator with a read-only orderer for
// dependency-aware views.
func buildAggregator(cfg *config.Config, db *store.DB) *backlog.Aggregator {
	return &backlog.Aggregator{
		Store: db,
		Orderer: &ordering.Service{
			Store:      db,
			StageOrder: cfg.StageOrder(),
		},
	}
}
