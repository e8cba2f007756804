package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestToolContext() *core.ToolContext {
	return core.NewToolContext(context.Background(), core.NewSession("s1"), "fc-1", nil)
}

func TestFunctionToolCall(t *testing.T) {
	sum := NewFunctionTool(
		"calculate_total",
		"Multiply unit price by quantity",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"price":    map[string]any{"type": "number"},
				"quantity": map[string]any{"type": "integer"},
			},
			"required": []string{"price", "quantity"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["price"].(float64) * args["quantity"].(float64), nil
		},
	)

	result, err := sum.Call(newTestToolContext(), map[string]any{"price": 10.0, "quantity": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, 50.0, result)
}

func TestFunctionToolValidationError(t *testing.T) {
	tl := NewFunctionTool("t", "d", map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "string"}},
		"required":   []string{"a"},
	}, func(tc *core.ToolContext, args map[string]any) (any, error) { return nil, nil })

	_, err := tl.Call(newTestToolContext(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, "t", toolErr.Tool)
}

func TestFunctionToolExecutionError(t *testing.T) {
	boom := NewFunctionTool("boom", "d", map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})

	_, err := boom.Call(newTestToolContext(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "backend down", toolErr.Message)
}

func TestFunctionToolPassesThroughToolError(t *testing.T) {
	custom := NewToolError("custom", "insufficient balance", "INSUFFICIENT_BALANCE")
	tl := NewFunctionTool("custom", "d", map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, custom
		})

	_, err := tl.Call(newTestToolContext(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "INSUFFICIENT_BALANCE", toolErr.Code)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Company string `json:"company" description:"Company name"`
		Credits int    `json:"credits"`
	}
	tl := NewFunctionToolFromStruct("buy_credits", "Buy carbon credits", args{},
		func(tc *core.ToolContext, a map[string]any) (any, error) { return "ok", nil })

	params := tl.Parameters()
	props := params["properties"].(map[string]any)
	assert.Equal(t, "string", props["company"].(map[string]any)["type"])
	assert.Equal(t, "integer", props["credits"].(map[string]any)["type"])

	_, err := tl.Call(newTestToolContext(), map[string]any{"company": "Acme"})
	assert.Error(t, err) // credits missing
}

func TestRegistry(t *testing.T) {
	a := NewFunctionTool("a", "first", map[string]any{"type": "object", "properties": map[string]any{}}, nil)
	b := NewFunctionTool("b", "second", map[string]any{"type": "object", "properties": map[string]any{}}, nil)

	reg := NewRegistry(a, b)
	assert.Equal(t, 2, reg.Len())

	got, err := reg.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description())

	_, err = reg.Lookup("missing")
	assert.Error(t, err)

	names := []string{}
	for _, tl := range reg.All() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{"a", "b"}, names)
}
