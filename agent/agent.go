// Package agent implements the oracle loop that drives one agent turn: the
// model is invoked with instructions, the conversation so far and the tool
// specs; requested tool calls are executed and their results fed back until
// the model yields a final text answer. Every turn terminates with reply
// text, even on model failure, so the task protocol layer can always
// complete the inbound task.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/internal/util"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/model"
	"github.com/hupe1980/carbonmesh/session"
	"github.com/hupe1980/carbonmesh/tool"
)

// Options configure an Agent.
type Options struct {
	// Tools available to the model during the loop.
	Tools []tool.Tool
	// Sessions persists per-conversation state across turns.
	Sessions core.SessionStore
	// MaxModelCalls bounds oracle invocations per turn (0 = default 10).
	MaxModelCalls int
	// ModelTimeout bounds each oracle invocation.
	ModelTimeout time.Duration
	// Logger receives structured loop diagnostics.
	Logger logging.Logger
}

// Agent couples a tool-calling model with a capability set and session state.
type Agent struct {
	name         string
	instructions string
	model        model.Model
	registry     *tool.Registry
	sessions     core.SessionStore
	maxCalls     int
	modelTimeout time.Duration
	logger       logging.Logger
}

// New creates an agent with the given name, system instructions and model.
func New(name, instructions string, m model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxModelCalls: 10,
		ModelTimeout:  60 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	return &Agent{
		name:         name,
		instructions: instructions,
		model:        m,
		registry:     tool.NewRegistry(opts.Tools...),
		sessions:     opts.Sessions,
		maxCalls:     opts.MaxModelCalls,
		modelTimeout: opts.ModelTimeout,
		logger:       opts.Logger,
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry { return a.registry }

// Run executes one turn for the given session and user text and returns the
// final reply text. Model failures yield a user-facing reply rather than an
// error; only broken preconditions (missing session store, cancelled
// context) return errors.
func (a *Agent) Run(ctx context.Context, sessionID, userText string) (string, error) {
	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session %s: %w", sessionID, err)
	}

	instructions, err := util.RenderTemplate(a.instructions, sess.Clone().State)
	if err != nil {
		return "", fmt.Errorf("render instructions: %w", err)
	}

	contents := []core.Content{core.NewUserContent(userText)}
	limiter := core.NewModelLimiter(a.maxCalls)
	defs := a.toolDefinitions()

	for {
		if err := limiter.Increment(); err != nil {
			a.logger.Warn("agent.loop.limit", "agent", a.name, "calls", limiter.Count())
			return "I could not finish processing this request within the allowed number of reasoning steps. Please try a simpler request.", nil
		}

		resp, err := a.generate(ctx, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        defs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			a.logger.Error("agent.model.error", "agent", a.name, "error", err.Error())
			return friendlyModelError(err), nil
		}

		contents = append(contents, resp.Content)

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			reply := resp.Content.Text()
			if reply == "" {
				reply = "I was unable to produce a response for this request."
			}
			return reply, nil
		}

		results, deltas := a.executeCalls(ctx, sess, calls)
		contents = append(contents, core.Content{Role: "tool", Parts: results})

		if len(deltas) > 0 {
			if err := a.sessions.ApplyDelta(ctx, sessionID, deltas); err != nil {
				a.logger.Warn("agent.session.commit_failed", "session", sessionID, "error", err.Error())
			}
		}
	}
}

func (a *Agent) generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if a.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.modelTimeout)
		defer cancel()
	}
	return a.model.Generate(ctx, req)
}

func (a *Agent) toolDefinitions() []model.ToolDefinition {
	tools := a.registry.All()
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return defs
}

// friendlyModelError maps oracle failures to user-facing replies. Transient
// upstream conditions read as retryable; everything else as a hard apology.
func friendlyModelError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return "The assistant is receiving too many requests right now. Please wait a moment and try again."
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "503") || strings.Contains(msg, "unavailable"):
		return "The assistant is temporarily overloaded. Please try again shortly."
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return "The assistant took too long to respond. Please try again."
	default:
		return "Sorry, I ran into an internal problem while processing your request. Please try again later."
	}
}
