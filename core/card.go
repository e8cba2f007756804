package core

// AgentSkill advertises one capability of an agent, with example utterances
// that help an orchestrating model route free-text requests.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentCard is the static discovery record served by every agent at
// /.well-known/agent.json. It is immutable after startup; the orchestrator
// fetches cards once to build its name-to-connector registry.
type AgentCard struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url"`
	Version     string       `json:"version,omitempty"`
	Skills      []AgentSkill `json:"skills,omitempty"`
}
