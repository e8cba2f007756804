package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModelScriptedTurns(t *testing.T) {
	m := NewMockModel("test")
	m.AddToolCallTurn("fc-1", "list_agents", "{}")
	m.AddTextTurn("done")

	req := Request{Contents: []core.Content{core.NewUserContent("hi")}}

	resp, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "list_agents", calls[0].Name)
	assert.Equal(t, "tool_calls", resp.FinishReason)

	resp, err = m.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content.Text())
	assert.Equal(t, "stop", resp.FinishReason)

	// Script exhausted: echoes the last user text.
	resp, err = m.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, resp.Content.Text(), "hi")

	assert.Len(t, m.Requests, 3)
}

func TestMockModelFailure(t *testing.T) {
	m := NewMockModel("test").FailWith(errors.New("rate limit"))

	_, err := m.Generate(context.Background(), Request{Contents: []core.Content{core.NewUserContent("hi")}})
	assert.EqualError(t, err, "rate limit")
}
