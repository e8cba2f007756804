// The orchestrator binary is the user-facing entry point of the fleet. It
// discovers the specialist agents listed as peers, registers them for
// delegation and serves the coordinating agent over the task protocol.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/hupe1980/carbonmesh/a2a"
	"github.com/hupe1980/carbonmesh/config"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/internal/boot"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/marketplace"
	"github.com/hupe1980/carbonmesh/orchestrator"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(nil).Error("config load failed", "error", err.Error())
		os.Exit(1)
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "orchestrator"
	}

	logger := boot.Logger(cfg, "orchestrator")

	registry := orchestrator.NewRegistry(logger)
	discoverPeers(cfg, registry, logger)

	store := marketplace.NewInMemoryStore(
		marketplace.Offer{CompanyID: "eco_corp", CompanyName: "Eco Corp", WalletAddress: "0.0.111111", Network: "hedera", OfferPrice: 10, AvailableCredits: 500},
		marketplace.Offer{CompanyID: "green_future", CompanyName: "Green Future Ltd", WalletAddress: "0.0.222222", Network: "hedera", OfferPrice: 12, AvailableCredits: 300},
		marketplace.Offer{CompanyID: "carbon_zero", CompanyName: "Carbon Zero Inc", WalletAddress: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", Network: "ethereum", OfferPrice: 15, AvailableCredits: 1000},
	)

	m, err := boot.Model(cfg)
	if err != nil {
		logger.Error("model setup failed", "error", err.Error())
		os.Exit(1)
	}

	orch := orchestrator.New(m, registry, store, func(o *orchestrator.Options) {
		o.Sessions = boot.Sessions(cfg)
		o.ModelTimeout = cfg.Model.Timeout
		o.MaxModelCalls = cfg.Model.MaxCalls
		o.Logger = logger
	})

	card := boot.Card(cfg, []core.AgentSkill{
		{ID: "buy", Name: "Buy credits", Description: "Purchase carbon credits end to end", Examples: []string{"Buy 60 credits from Eco Corp"}},
		{ID: "prebook", Name: "Prebook credits", Description: "Prebook predicted demand at a discount"},
		{ID: "delegate", Name: "Delegate tasks", Description: "Route requests to specialist agents"},
	})

	handler := a2a.HandlerFunc(orch.Handle)

	srv := a2a.NewServer(card, a2a.NewTaskManager(logger), handler, func(o *a2a.ServerOptions) {
		o.HandlerTimeout = cfg.Server.HandlerTimeout
		o.Logger = logger
	})
	if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
}

// discoverPeers fetches the discovery card of every configured peer and
// registers a connector for it. Unreachable peers are logged and skipped so
// the orchestrator still starts with a partial fleet.
func discoverPeers(cfg config.Config, registry *orchestrator.Registry, logger logging.Logger) {
	for _, baseURL := range cfg.Peers {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		card, err := a2a.FetchAgentCard(ctx, nil, baseURL)
		cancel()
		if err != nil {
			logger.Warn("peer discovery failed", "url", baseURL, "error", err.Error())
			continue
		}
		registry.Register(a2a.NewConnector(card, func(o *a2a.ConnectorOptions) {
			o.Logger = logger
		}))
		logger.Info("peer registered", "agent", card.Name, "url", card.URL)
	}
}
