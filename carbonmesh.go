// Package carbonmesh provides a high-level façade that wires the whole agent
// fleet (orchestrator plus payment, marketplace, prebooking and iot
// specialists) in a single process, delegating through in-process task
// managers instead of HTTP. Most applications interact with this package by:
//  1. Creating a Mesh via New() with an oracle model
//  2. Feeding sensor readings through Cache() if predictions are wanted
//  3. Asking questions via Ask()
//
// Production deployments run the agents as separate binaries under cmd/ and
// talk over the task protocol; the façade keeps local development and testing
// to one process with the same semantics.
package carbonmesh

import (
	"context"

	"github.com/google/uuid"
	"github.com/hupe1980/carbonmesh/a2a"
	"github.com/hupe1980/carbonmesh/agent"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/iot"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/marketplace"
	"github.com/hupe1980/carbonmesh/model"
	"github.com/hupe1980/carbonmesh/orchestrator"
	"github.com/hupe1980/carbonmesh/payment"
	"github.com/hupe1980/carbonmesh/prebooking"
	"github.com/hupe1980/carbonmesh/session"
	"github.com/hupe1980/carbonmesh/tool"
)

// Options configure the Mesh.
type Options struct {
	// Offers seed the shared marketplace inventory.
	Offers []marketplace.Offer
	// PaymentBalance is the mock payment provider's starting balance.
	PaymentBalance float64
	// SpecialistModel drives the specialist agents; defaults to the
	// orchestrator's model.
	SpecialistModel model.Model
	// Sessions persists conversation state.
	Sessions core.SessionStore
	// Logger receives diagnostics from all components.
	Logger logging.Logger
}

// Mesh is the in-process fleet.
type Mesh struct {
	orch  *orchestrator.Orchestrator
	store marketplace.Store
	cache *iot.Cache
	svc   *prebooking.Service
}

// New wires a complete fleet around the given oracle model. All backends are
// in-memory and payments run against a mock provider.
func New(m model.Model, optFns ...func(o *Options)) *Mesh {
	opts := Options{
		PaymentBalance: 100000,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SpecialistModel == nil {
		opts.SpecialistModel = m
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}
	if opts.Offers == nil {
		opts.Offers = []marketplace.Offer{
			{CompanyID: "eco_corp", CompanyName: "Eco Corp", WalletAddress: "0.0.111111", Network: "hedera", OfferPrice: 10, AvailableCredits: 500},
			{CompanyID: "green_future", CompanyName: "Green Future Ltd", WalletAddress: "0.0.222222", Network: "hedera", OfferPrice: 12, AvailableCredits: 300},
		}
	}

	store := marketplace.NewInMemoryStore(opts.Offers...)
	cache := iot.NewCache(0)
	provider := payment.NewMockProvider(payment.NetworkHedera, opts.PaymentBalance)

	payer := prebooking.PayerFunc(func(ctx context.Context, destination string, amount float64, memo string) (string, error) {
		receipt, err := provider.Transfer(ctx, payment.Transfer{
			Destination: destination, Amount: amount, Token: "HBAR", Memo: memo,
		})
		if err != nil {
			return "", err
		}
		return receipt.TransactionID, nil
	})
	svc := prebooking.NewService(store, payer, func(o *prebooking.Options) {
		o.Logger = opts.Logger
	})

	registry := orchestrator.NewRegistry(opts.Logger)
	registry.Register(newLocalAgent(orchestrator.PaymentAgentName, "Executes transfers and validates addresses",
		"You are a payment specialist. Execute transfers, validate addresses and report transaction ids verbatim.",
		opts.SpecialistModel, payment.Tools(map[string]payment.Provider{payment.NetworkHedera: provider}), opts))
	registry.Register(newLocalAgent(orchestrator.MarketplaceAgentName, "Searches offers and records purchases",
		"You are a marketplace specialist. Search offers, plan allocations cheapest first and record purchases with the exact transaction id given.",
		opts.SpecialistModel, marketplace.Tools(store), opts))
	registry.Register(newLocalAgent(orchestrator.PrebookingAgentName, "Manages discounted prebookings",
		"You are a prebooking specialist. Create, approve, cancel and list prebookings and always report the prebooking id and status.",
		opts.SpecialistModel, prebooking.Tools(svc), opts))
	registry.Register(newLocalAgent(orchestrator.IoTAgentName, "Reports sensor data and demand predictions",
		"You are an IoT specialist. Report sensor readings and credit demand predictions with their confidence.",
		opts.SpecialistModel, iot.Tools(cache), opts))

	orch := orchestrator.New(m, registry, store, func(o *orchestrator.Options) {
		o.Sessions = opts.Sessions
		o.Logger = opts.Logger
	})

	return &Mesh{orch: orch, store: store, cache: cache, svc: svc}
}

// Ask runs one orchestrator turn for the given session and returns the reply.
func (m *Mesh) Ask(ctx context.Context, sessionID, text string) (string, error) {
	task := core.NewTask(uuid.NewString(), sessionID, core.NewTextMessage("user", text))
	return m.orch.Handle(ctx, task, text)
}

// Orchestrator returns the coordinating agent.
func (m *Mesh) Orchestrator() *orchestrator.Orchestrator { return m.orch }

// Store returns the shared offer inventory.
func (m *Mesh) Store() marketplace.Store { return m.store }

// Cache returns the sensor cache; feed it readings to enable predictions.
func (m *Mesh) Cache() *iot.Cache { return m.cache }

// Prebookings returns the prebooking service.
func (m *Mesh) Prebookings() *prebooking.Service { return m.svc }

// localAgent serves a specialist agent through an in-process task manager,
// mirroring the server-side task lifecycle without HTTP.
type localAgent struct {
	card    core.AgentCard
	manager *a2a.TaskManager
	agent   *agent.Agent
}

func newLocalAgent(name, description, instructions string, m model.Model, tools []tool.Tool, opts Options) *localAgent {
	return &localAgent{
		card:    core.AgentCard{Name: name, Description: description},
		manager: a2a.NewTaskManager(opts.Logger),
		agent: agent.New(name, instructions, m, func(o *agent.Options) {
			o.Tools = tools
			o.Sessions = opts.Sessions
			o.Logger = opts.Logger
		}),
	}
}

// Name implements orchestrator.TaskSender.
func (l *localAgent) Name() string { return l.card.Name }

// Card implements orchestrator.TaskSender.
func (l *localAgent) Card() core.AgentCard { return l.card }

// SendTask implements orchestrator.TaskSender with the same terminal-state
// guarantees as the HTTP server: every submission completes, handler errors
// become error reply text.
func (l *localAgent) SendTask(ctx context.Context, text, sessionID string) (*core.Task, error) {
	task := l.manager.Upsert(uuid.NewString(), sessionID, core.NewTextMessage("user", text))
	l.manager.Working(task)

	reply, err := l.agent.Run(ctx, sessionID, text)
	if err != nil {
		reply = "The request could not be processed: " + err.Error()
	}
	if err := l.manager.Complete(task, reply); err != nil {
		return nil, err
	}
	return task, nil
}
