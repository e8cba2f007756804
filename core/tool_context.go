package core

import (
	"context"

	"github.com/hupe1980/carbonmesh/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// during an agent turn. Reads see the shared session immediately; writes land
// on the session right away (so parallel tool calls within one turn observe
// each other) and are additionally staged in a delta the agent commits to the
// SessionStore after the turn.
type ToolContext struct {
	ctx            context.Context
	sessionID      string
	functionCallID string
	session        *Session
	stateDelta     map[string]any
	logger         logging.Logger
}

// NewToolContext constructs a tool context bound to one function call.
func NewToolContext(ctx context.Context, sess *Session, functionCallID string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            ctx,
		sessionID:      sess.ID,
		functionCallID: functionCallID,
		session:        sess,
		stateDelta:     map[string]any{},
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session id associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// FunctionCallID returns the model-assigned id of the originating call.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// GetState retrieves a session state value, preferring a locally staged write.
func (tc *ToolContext) GetState(k string) (any, bool) {
	if v, ok := tc.stateDelta[k]; ok {
		return v, true
	}
	return tc.session.GetState(k)
}

// SetState records a state mutation on the shared session (for immediate
// visibility to concurrent calls) and stages it for persistence.
func (tc *ToolContext) SetState(k string, v any) {
	tc.session.SetState(k, v)
	tc.stateDelta[k] = v
}

// LoadOrStoreState atomically returns the existing session value for k, or
// stores v and returns it. Stored values are staged for persistence like
// SetState; parallel tool calls racing on the same key observe one winner.
func (tc *ToolContext) LoadOrStoreState(k string, v any) (any, bool) {
	if staged, ok := tc.stateDelta[k]; ok {
		return staged, true
	}
	actual, loaded := tc.session.LoadOrStoreState(k, v)
	if !loaded {
		tc.stateDelta[k] = v
	}
	return actual, loaded
}

// StateDelta returns the mutations staged by this tool invocation.
func (tc *ToolContext) StateDelta() map[string]any { return tc.stateDelta }
