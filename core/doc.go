// Package core defines the shared primitives of the carbonmesh agent
// protocol: tasks with append-only histories and terminal states, protocol
// messages, agent discovery cards, per-conversation sessions and the tool
// invocation context. Higher layers (a2a transport, agents, orchestrator)
// depend only on these types.
package core
