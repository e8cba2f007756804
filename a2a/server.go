package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/logging"
)

// Handler processes one submitted task and returns the reply text. Returning
// an error does not leave the task non-terminal: the server completes it with
// an error reply on the handler's behalf.
type Handler interface {
	Handle(ctx context.Context, task *core.Task, userText string) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *core.Task, userText string) (string, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, task *core.Task, userText string) (string, error) {
	return f(ctx, task, userText)
}

// ServerOptions configure a protocol server.
type ServerOptions struct {
	// HandlerTimeout bounds processing of one task (0 = no timeout).
	HandlerTimeout time.Duration
	// Logger receives request diagnostics.
	Logger logging.Logger
}

// Server exposes one agent over the task protocol: task submission on POST /
// and the discovery card on GET /.well-known/agent.json.
type Server struct {
	card    core.AgentCard
	manager *TaskManager
	handler Handler
	timeout time.Duration
	logger  logging.Logger
}

// NewServer creates a protocol server for the given agent card and handler.
func NewServer(card core.AgentCard, manager *TaskManager, handler Handler, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{
		HandlerTimeout: 120 * time.Second,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		card:    card,
		manager: manager,
		handler: handler,
		timeout: opts.HandlerTimeout,
		logger:  opts.Logger,
	}
}

// Router returns the HTTP handler serving the protocol endpoints.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleRPC)
	mux.HandleFunc("GET "+AgentCardPath, s.handleAgentCard)
	return mux
}

// ListenAndServe starts an HTTP server on addr. Blocks until the server
// stops.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("a2a.server.listening", "agent", s.card.Name, "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.card)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, codeParseError, "malformed JSON-RPC request")
		return
	}
	if req.Method != MethodSendTask {
		s.writeError(w, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
		return
	}

	var params TaskSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, req.ID, codeInvalidParams, "malformed params: "+err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		s.writeError(w, req.ID, codeInvalidParams, err.Error())
		return
	}

	task := s.manager.Upsert(params.ID, params.SessionID, params.Message)

	// Resubmission of a finished task returns it as-is.
	snap := task.Snapshot()
	if snap.Status.Terminal() {
		s.writeResult(w, req.ID, snap)
		return
	}

	s.manager.Working(task)

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.handler.Handle(ctx, task, params.Message.Text())
	if err != nil {
		// Failures are encoded as a completed task whose reply text carries
		// the error, never as a transport error.
		s.logger.Error("a2a.handler.error", "task_id", task.ID, "error", err.Error())
		reply = "The request could not be processed: " + err.Error()
	}

	if err := s.manager.Complete(task, reply); err != nil {
		s.logger.Error("a2a.complete.error", "task_id", task.ID, "error", err.Error())
	}

	s.writeResult(w, req.ID, task.Snapshot())
}

func (s *Server) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}
