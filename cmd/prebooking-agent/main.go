// The prebooking-agent binary manages discounted advance purchases against
// predicted credit demand, with an approval gate for large prepayments.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/hupe1980/carbonmesh/a2a"
	"github.com/hupe1980/carbonmesh/agent"
	"github.com/hupe1980/carbonmesh/config"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/internal/boot"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/marketplace"
	"github.com/hupe1980/carbonmesh/payment"
	"github.com/hupe1980/carbonmesh/payment/hedera"
	"github.com/hupe1980/carbonmesh/prebooking"
)

const instructions = `You are a prebooking specialist for carbon credits.

You create discounted prebookings for predicted demand, list and look up
existing prebookings, and approve or cancel pending ones. Prepayments below
the auto-approval limit are paid immediately; larger ones wait until an
operator approves them. Always report the prebooking id and status.`

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(nil).Error("config load failed", "error", err.Error())
		os.Exit(1)
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "prebooking_agent"
	}

	logger := boot.Logger(cfg, "prebooking-agent")

	store := marketplace.NewInMemoryStore(
		marketplace.Offer{CompanyID: "eco_corp", CompanyName: "Eco Corp", WalletAddress: "0.0.111111", Network: "hedera", OfferPrice: 10, AvailableCredits: 500},
		marketplace.Offer{CompanyID: "green_future", CompanyName: "Green Future Ltd", WalletAddress: "0.0.222222", Network: "hedera", OfferPrice: 12, AvailableCredits: 300},
	)

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		logger.Error("provider setup failed", "error", err.Error())
		os.Exit(1)
	}
	payer := prebooking.PayerFunc(func(ctx context.Context, destination string, amount float64, memo string) (string, error) {
		receipt, err := provider.Transfer(ctx, payment.Transfer{
			Destination: destination,
			Amount:      amount,
			Token:       "HBAR",
			Memo:        memo,
		})
		if err != nil {
			return "", err
		}
		return receipt.TransactionID, nil
	})

	svc := prebooking.NewService(store, payer, func(o *prebooking.Options) {
		o.AutoApproveLimit = cfg.Workflow.AutoApproveLimit
		o.DiscountRate = cfg.Workflow.DiscountRate
		o.MinConfidence = cfg.Workflow.MinConfidence
		o.Logger = logger
	})

	m, err := boot.Model(cfg)
	if err != nil {
		logger.Error("model setup failed", "error", err.Error())
		os.Exit(1)
	}

	ag := agent.New(cfg.Agent.Name, instructions, m, func(o *agent.Options) {
		o.Tools = prebooking.Tools(svc)
		o.Sessions = boot.Sessions(cfg)
		o.ModelTimeout = cfg.Model.Timeout
		o.MaxModelCalls = cfg.Model.MaxCalls
		o.Logger = logger
	})

	card := boot.Card(cfg, []core.AgentSkill{
		{ID: "prebook", Name: "Create prebookings", Description: "Prebook predicted demand at a discount", Examples: []string{"Prebook 50 credits from Eco Corp for next week"}},
		{ID: "approve", Name: "Approve prebookings", Description: "Release the prepayment of a pending prebooking"},
		{ID: "list", Name: "List prebookings", Description: "Show prebookings by status"},
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

func buildProvider(cfg config.Config, logger logging.Logger) (payment.Provider, error) {
	if cfg.Hedera.OperatorID != "" && cfg.Hedera.OperatorKey != "" {
		return hedera.NewProvider(cfg.Hedera.OperatorID, cfg.Hedera.OperatorKey, func(o *hedera.Options) {
			o.Testnet = cfg.Hedera.Testnet
			o.Logger = logger
		})
	}
	logger.Warn("no hedera operator configured, using mock provider")
	return payment.NewMockProvider(payment.NetworkHedera, 10000), nil
}
