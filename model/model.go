package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/carbonmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input for one oracle invocation.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the model's answer to one Request: either final text, one or
// more function call parts, or both.
type Response struct {
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the stateless tool-calling oracle: a function from (instructions,
// conversation so far, tool specs) to either tool invocation requests or a
// final text answer. Implementations must be safe for concurrent use.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a scriptable in-memory Model for tests. Turns are consumed in
// order; when the script is exhausted it echoes the last user text.
type MockModel struct {
	info  Info
	turns []Response
	err   error
	mu    sync.Mutex

	// Requests records every request seen, for assertions.
	Requests []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// AddTextTurn scripts a final text answer.
func (m *MockModel) AddTextTurn(text string) *MockModel {
	m.turns = append(m.turns, Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	})
	return m
}

// AddToolCallTurn scripts a turn requesting the named tool with JSON args.
func (m *MockModel) AddToolCallTurn(id, name, args string) *MockModel {
	m.turns = append(m.turns, Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{
			FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args},
		}}},
		FinishReason: "tool_calls",
	})
	return m
}

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) *MockModel {
	m.err = err
	return m
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.turns) > 0 {
		resp := m.turns[0]
		m.turns = m.turns[1:]
		return &resp, nil
	}
	if len(req.Contents) == 0 {
		return nil, fmt.Errorf("no contents provided")
	}
	last := req.Contents[len(req.Contents)-1]
	return &Response{
		Content: core.Content{
			Role:  "assistant",
			Parts: []core.Part{core.TextPart{Text: fmt.Sprintf("Mock response to: %s", last.Text())}},
		},
		FinishReason: "stop",
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
