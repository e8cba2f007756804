// Package orchestrator implements the coordinating agent: it discovers the
// specialist agents (payment, marketplace, prebooking, iot), delegates work
// to them over the task protocol and runs multi-step trading workflows like
// buying credits end to end.
package orchestrator

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/logging"
)

// TaskSender is the delegation surface the orchestrator needs from a remote
// agent. *a2a.Connector implements it; tests inject fakes.
type TaskSender interface {
	Name() string
	Card() core.AgentCard
	SendTask(ctx context.Context, text, sessionID string) (*core.Task, error)
}

// Registry holds the known specialist agents by routing name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]TaskSender
	logger logging.Logger
}

// NewRegistry creates an agent registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{agents: map[string]TaskSender{}, logger: logger}
}

// Register adds an agent. A duplicate name replaces the earlier registration;
// the replacement is logged because it usually means two peers share a card
// name.
func (r *Registry) Register(sender TaskSender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := sender.Name()
	if _, exists := r.agents[name]; exists {
		r.logger.Warn("orchestrator.registry.replaced", "agent", name)
	}
	r.agents[name] = sender
}

// Lookup returns the agent registered under name.
func (r *Registry) Lookup(name string) (TaskSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.agents[name]
	return sender, ok
}

// Cards returns the discovery cards of all registered agents, sorted by name.
func (r *Registry) Cards() []core.AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cards := make([]core.AgentCard, 0, len(r.agents))
	for _, sender := range r.agents {
		cards = append(cards, sender.Card())
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	return cards
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
