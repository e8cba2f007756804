package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/model"
	"github.com/hupe1980/carbonmesh/session"
	"github.com/hupe1980/carbonmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "echoes its input",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return "echo: " + args["text"].(string), nil
		})
}

func TestAgentDirectAnswer(t *testing.T) {
	m := model.NewMockModel("test").AddTextTurn("hello there")
	a := New("greeter", "You greet people.", m)

	reply, err := a.Run(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
}

func TestAgentToolLoop(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolCallTurn("fc-1", "echo", `{"text":"ping"}`)
	m.AddTextTurn("final answer")

	a := New("looper", "Use tools.", m, func(o *Options) {
		o.Tools = []tool.Tool{echoTool("echo")}
	})

	reply, err := a.Run(context.Background(), "s1", "call the tool")
	require.NoError(t, err)
	assert.Equal(t, "final answer", reply)

	// Second request carried the tool result back to the model.
	require.Len(t, m.Requests, 2)
	second := m.Requests[1]
	var sawResponse bool
	for _, c := range second.Contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				sawResponse = true
				assert.Equal(t, "echo: ping", fr.FunctionResponse.Response)
			}
		}
	}
	assert.True(t, sawResponse, "tool response not fed back to the model")
}

func TestAgentUnknownToolSurfacesError(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolCallTurn("fc-1", "nope", `{}`)
	m.AddTextTurn("recovered")

	a := New("a", "", m)

	reply, err := a.Run(context.Background(), "s1", "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)

	second := m.Requests[1]
	var errText string
	for _, c := range second.Contents {
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				errText = fr.FunctionResponse.Error
			}
		}
	}
	assert.Contains(t, errText, "unknown tool")
}

func TestAgentModelFailureYieldsFriendlyReply(t *testing.T) {
	m := model.NewMockModel("test").FailWith(errors.New("429 rate limit exceeded"))
	a := New("a", "", m)

	reply, err := a.Run(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "too many requests")
}

func TestAgentModelCallLimit(t *testing.T) {
	m := model.NewMockModel("test")
	for i := 0; i < 5; i++ {
		m.AddToolCallTurn("fc", "echo", `{"text":"again"}`)
	}

	a := New("a", "", m, func(o *Options) {
		o.Tools = []tool.Tool{echoTool("echo")}
		o.MaxModelCalls = 3
	})

	reply, err := a.Run(context.Background(), "s1", "loop forever")
	require.NoError(t, err)
	assert.Contains(t, reply, "reasoning steps")
	assert.Len(t, m.Requests, 3)
}

func TestAgentPersistsToolStateDelta(t *testing.T) {
	store := session.NewInMemoryStore()

	stateTool := tool.NewFunctionTool("remember", "stores a value",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.SetState("correlation_id", "abc-123")
			return "stored", nil
		})

	m := model.NewMockModel("test")
	m.AddToolCallTurn("fc-1", "remember", `{}`)
	m.AddTextTurn("ok")

	a := New("a", "", m, func(o *Options) {
		o.Tools = []tool.Tool{stateTool}
		o.Sessions = store
	})

	_, err := a.Run(context.Background(), "s1", "remember something")
	require.NoError(t, err)

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	v, ok := sess.GetState("correlation_id")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", v)
}

func TestAgentInstructionTemplating(t *testing.T) {
	store := session.NewInMemoryStore()
	sess, _ := store.Get(context.Background(), "s1")
	sess.SetState("operator", "alice")

	m := model.NewMockModel("test").AddTextTurn("hi")
	a := New("a", "Operator on duty: {{.operator}}.", m, func(o *Options) {
		o.Sessions = store
	})

	_, err := a.Run(context.Background(), "s1", "hello")
	require.NoError(t, err)
	require.Len(t, m.Requests, 1)
	assert.Equal(t, "Operator on duty: alice.", m.Requests[0].Instructions)
}
