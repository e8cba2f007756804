package a2a

import (
	"encoding/json"

	"github.com/hupe1980/carbonmesh/core"
)

// MethodSendTask is the JSON-RPC method for task submission.
const MethodSendTask = "tasks/send"

// AgentCardPath is the well-known discovery endpoint served by every agent.
const AgentCardPath = "/.well-known/agent.json"

// JSON-RPC error codes used by the server.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// rpcRequest is the JSON-RPC request envelope.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is the JSON-RPC response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TaskSendParams carries one inbound task submission.
type TaskSendParams struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionId"`
	Message   core.Message `json:"message"`
}

// Validate checks the minimal shape of a submission.
func (p *TaskSendParams) Validate() error {
	switch {
	case p.ID == "":
		return errMissingField("id")
	case p.SessionID == "":
		return errMissingField("sessionId")
	case len(p.Message.Parts) == 0:
		return errMissingField("message.parts")
	default:
		return nil
	}
}

type missingFieldError string

func errMissingField(f string) error { return missingFieldError(f) }

func (e missingFieldError) Error() string { return "missing required field: " + string(e) }
