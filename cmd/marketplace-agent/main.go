// The marketplace-agent binary exposes the carbon credit offer inventory
// over the task protocol: searching offers, resolving companies, planning
// allocations and recording purchases. With a MySQL DSN configured the
// inventory is durable; otherwise an in-memory store seeded with demo offers
// is used.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/hupe1980/carbonmesh/a2a"
	"github.com/hupe1980/carbonmesh/agent"
	"github.com/hupe1980/carbonmesh/config"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/internal/boot"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/marketplace"
)

const instructions = `You are a marketplace specialist for carbon credits.

You search offers, resolve company names, plan multi-company allocations
(cheapest first) and record completed purchases. When asked to record a
purchase, use the exact transaction id from the request. Report prices in
USD per credit.`

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(nil).Error("config load failed", "error", err.Error())
		os.Exit(1)
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "marketplace_agent"
	}

	logger := boot.Logger(cfg, "marketplace-agent")

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("store setup failed", "error", err.Error())
		os.Exit(1)
	}

	m, err := boot.Model(cfg)
	if err != nil {
		logger.Error("model setup failed", "error", err.Error())
		os.Exit(1)
	}

	ag := agent.New(cfg.Agent.Name, instructions, m, func(o *agent.Options) {
		o.Tools = marketplace.Tools(store)
		o.Sessions = boot.Sessions(cfg)
		o.ModelTimeout = cfg.Model.Timeout
		o.MaxModelCalls = cfg.Model.MaxCalls
		o.Logger = logger
	})

	card := boot.Card(cfg, []core.AgentSkill{
		{ID: "search", Name: "Search offers", Description: "List offers cheapest first with filters", Examples: []string{"Which companies sell credits under $12?"}},
		{ID: "allocate", Name: "Plan allocations", Description: "Spread a credit demand across offers, cheapest first"},
		{ID: "record", Name: "Record purchases", Description: "Decrement availability and persist completed purchases"},
	})

	handler := a2a.HandlerFunc(func(ctx context.Context, task *core.Task, userText string) (string, error) {
		return ag.Run(ctx, task.SessionID, userText)
	})

	srv := a2a.NewServer(card, a2a.NewTaskManager(logger), handler, func(o *a2a.ServerOptions) {
		o.HandlerTimeout = cfg.Server.HandlerTimeout
		o.Logger = logger
	})
	if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
}

func buildStore(cfg config.Config, logger logging.Logger) (marketplace.Store, error) {
	if cfg.Marketplace.MySQLDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := marketplace.NewMySQLStore(ctx, cfg.Marketplace.MySQLDSN, func(o *marketplace.MySQLOptions) {
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}

	logger.Warn("no mysql dsn configured, using in-memory inventory with demo offers")
	return marketplace.NewInMemoryStore(
		marketplace.Offer{CompanyID: "eco_corp", CompanyName: "Eco Corp", WalletAddress: "0.0.111111", Network: "hedera", OfferPrice: 10, AvailableCredits: 500},
		marketplace.Offer{CompanyID: "green_future", CompanyName: "Green Future Ltd", WalletAddress: "0.0.222222", Network: "hedera", OfferPrice: 12, AvailableCredits: 300},
		marketplace.Offer{CompanyID: "carbon_zero", CompanyName: "Carbon Zero Inc", WalletAddress: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", Network: "ethereum", OfferPrice: 15, AvailableCredits: 1000},
	), nil
}
