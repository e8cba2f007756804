package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/carbonmesh/core"
)

// executeCalls runs the requested tool calls concurrently. Each call gets its
// own ToolContext; staged state deltas are merged after all calls finish and
// returned for persistence. Panics inside a tool are recovered and converted
// into error responses so one misbehaving tool never tears down the turn.
func (a *Agent) executeCalls(ctx context.Context, sess *core.Session, calls []core.FunctionCall) ([]core.Part, map[string]any) {
	type outcome struct {
		idx   int
		part  core.Part
		delta map[string]any
	}

	results := make([]core.Part, len(calls))
	outcomes := make(chan outcome, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()

			tctx := core.NewToolContext(ctx, sess, fc.ID, a.logger)

			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("agent.tool.panic", "tool", fc.Name, "panic", fmt.Sprintf("%v", r))
					outcomes <- outcome{idx: idx, part: errorResponsePart(fc, fmt.Sprintf("tool panicked: %v", r))}
				}
			}()

			outcomes <- outcome{idx: idx, part: a.runCall(tctx, fc), delta: tctx.StateDelta()}
		}(i, call)
	}
	wg.Wait()
	close(outcomes)

	merged := map[string]any{}
	for o := range outcomes {
		results[o.idx] = o.part
		for k, v := range o.delta {
			merged[k] = v
		}
	}
	return results, merged
}

// runCall dispatches one function call through the registry.
func (a *Agent) runCall(tctx *core.ToolContext, fc core.FunctionCall) core.Part {
	t, err := a.registry.Lookup(fc.Name)
	if err != nil {
		return errorResponsePart(fc, err.Error())
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return errorResponsePart(fc, fmt.Sprintf("malformed arguments: %v", err))
		}
	}

	result, err := t.Call(tctx, args)
	if err != nil {
		return errorResponsePart(fc, err.Error())
	}

	return core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: result,
	}}
}

func errorResponsePart(fc core.FunctionCall, msg string) core.Part {
	return core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
		ID:    fc.ID,
		Name:  fc.Name,
		Error: msg,
	}}
}
