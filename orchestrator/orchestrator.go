package orchestrator

import (
	"context"
	"time"

	"github.com/hupe1980/carbonmesh/agent"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/marketplace"
	"github.com/hupe1980/carbonmesh/model"
)

const defaultInstructions = `You are the coordinator of a carbon credit marketplace.

You can buy credits, prebook predicted demand and delegate work to
specialist agents. Use buy_credits for purchases so payment and recording
stay consistent. Use list_agents to discover delegation targets and
delegate_task for anything a specialist handles better. Report transaction
ids back to the user verbatim. If a step fails, say exactly what succeeded
and what did not.`

// Options configure an Orchestrator.
type Options struct {
	// Instructions override the default system prompt.
	Instructions string
	// Sessions persists conversation state across turns.
	Sessions core.SessionStore
	// MaxModelCalls bounds oracle invocations per turn.
	MaxModelCalls int
	// ModelTimeout bounds each oracle invocation.
	ModelTimeout time.Duration
	// Logger receives workflow diagnostics.
	Logger logging.Logger
}

// Orchestrator is the coordinating agent. It resolves offers against the
// marketplace inventory directly and delegates payments, recordings and
// prebookings to the registered specialist agents.
type Orchestrator struct {
	agent    *agent.Agent
	registry *Registry
	store    marketplace.Store
	logger   logging.Logger
}

// New creates an orchestrator over the given model, agent registry and offer
// inventory.
func New(m model.Model, registry *Registry, store marketplace.Store, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Instructions: defaultInstructions,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	o := &Orchestrator{registry: registry, store: store, logger: opts.Logger}
	o.agent = agent.New("orchestrator", opts.Instructions, m, func(ao *agent.Options) {
		ao.Tools = o.tools()
		ao.Sessions = opts.Sessions
		if opts.MaxModelCalls > 0 {
			ao.MaxModelCalls = opts.MaxModelCalls
		}
		if opts.ModelTimeout > 0 {
			ao.ModelTimeout = opts.ModelTimeout
		}
		ao.Logger = opts.Logger
	})
	return o
}

// Registry returns the agent registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Handle implements the task protocol handler: one inbound task runs one
// agent turn under the task's session.
func (o *Orchestrator) Handle(ctx context.Context, task *core.Task, userText string) (string, error) {
	return o.agent.Run(ctx, task.SessionID, userText)
}
