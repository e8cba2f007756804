// The payment-agent binary exposes blockchain transfer capabilities over the
// task protocol. Without operator credentials it falls back to mock providers
// so the rest of the fleet can be exercised locally.
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
	"github.com/hupe1980/carbonmesh/payment"
	"github.com/hupe1980/carbonmesh/payment/evm"
	"github.com/hupe1980/carbonmesh/payment/hedera"
)

const instructions = `You are a payment specialist for a carbon credit marketplace.

You execute transfers on the hedera, ethereum and polygon networks, check
balances and look up transaction statuses. Always validate a destination
address before transferring. Include the transaction id in your reply after
every transfer.`

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(nil).Error("config load failed", "error", err.Error())
		os.Exit(1)
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "payment_agent"
	}

	logger := boot.Logger(cfg, "payment-agent")

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		logger.Error("provider setup failed", "error", err.Error())
		os.Exit(1)
	}

	m, err := boot.Model(cfg)
	if err != nil {
		logger.Error("model setup failed", "error", err.Error())
		os.Exit(1)
	}

	ag := agent.New(cfg.Agent.Name, instructions, m, func(o *agent.Options) {
		o.Tools = payment.Tools(providers)
		o.Sessions = boot.Sessions(cfg)
		o.ModelTimeout = cfg.Model.Timeout
		o.MaxModelCalls = cfg.Model.MaxCalls
		o.Logger = logger
	})

	card := boot.Card(cfg, []core.AgentSkill{
		{ID: "transfer", Name: "Transfer funds", Description: "Execute HBAR, ETH and MATIC transfers", Examples: []string{"Transfer 25 HBAR to 0.0.123456"}},
		{ID: "validate", Name: "Validate addresses", Description: "Check destination addresses before paying"},
		{ID: "status", Name: "Transaction status", Description: "Look up the status of past transactions"},
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

func buildProviders(cfg config.Config, logger logging.Logger) (map[string]payment.Provider, error) {
	providers := map[string]payment.Provider{}

	if cfg.Hedera.OperatorID != "" && cfg.Hedera.OperatorKey != "" {
		p, err := hedera.NewProvider(cfg.Hedera.OperatorID, cfg.Hedera.OperatorKey, func(o *hedera.Options) {
			o.Testnet = cfg.Hedera.Testnet
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		providers[payment.NetworkHedera] = p
	} else {
		logger.Warn("no hedera operator configured, using mock provider")
		providers[payment.NetworkHedera] = payment.NewMockProvider(payment.NetworkHedera, 10000)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.EVM.EthereumRPC != "" && cfg.EVM.PrivateKey != "" {
		p, err := evm.NewProvider(ctx, payment.NetworkEthereum, cfg.EVM.EthereumRPC, cfg.EVM.PrivateKey, func(o *evm.Options) {
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		providers[payment.NetworkEthereum] = p
	}
	if cfg.EVM.PolygonRPC != "" && cfg.EVM.PrivateKey != "" {
		p, err := evm.NewProvider(ctx, payment.NetworkPolygon, cfg.EVM.PolygonRPC, cfg.EVM.PrivateKey, func(o *evm.Options) {
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		providers[payment.NetworkPolygon] = p
	}

	return providers, nil
}
