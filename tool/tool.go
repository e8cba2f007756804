// Package tool implements the capability subsystem that lets agents invoke
// structured operations (marketplace reads, payments, delegations) with
// schema-validated arguments and consistent error handling. Tools never leak
// raw failures to the model layer: every error surfaces as a *ToolError with
// a stable code.
package tool

import (
	"fmt"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/internal/util"
)

// Tool defines one callable capability exposed to the model driving an agent.
//
// Implementations should provide descriptive names (snake_case), a JSON
// schema for parameters and be safe for concurrent use; the model may request
// several tool calls in parallel within one turn.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is provided to the model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with validated arguments and the invocation's
	// ToolContext (session state, logging, call correlation).
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detail.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
