// Package a2a implements the agent-to-agent task protocol: a JSON-RPC style
// request/response exchange in which every inbound message creates or
// re-fetches a Task and every request path reaches a terminal task state.
// The same wire shape serves both directions; delegation is simply an agent
// acting as a client of the protocol it serves.
package a2a
