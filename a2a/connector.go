package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/logging"
)

// DelegationErrorKind classifies delegation failures so callers can degrade
// gracefully instead of aborting the whole turn.
type DelegationErrorKind string

const (
	// KindUnreachable covers network/transport failures reaching the agent.
	KindUnreachable DelegationErrorKind = "unreachable"
	// KindBadStatus covers non-2xx HTTP responses.
	KindBadStatus DelegationErrorKind = "bad_status"
	// KindMalformed covers undecodable or protocol-violating responses.
	KindMalformed DelegationErrorKind = "malformed"
)

// DelegationError is the typed failure surface of Connector.SendTask.
type DelegationError struct {
	Agent string
	Kind  DelegationErrorKind
	Err   error
}

func (e *DelegationError) Error() string {
	return fmt.Sprintf("delegation to %s failed (%s): %v", e.Agent, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *DelegationError) Unwrap() error { return e.Err }

// ConnectorOptions configure a Connector.
type ConnectorOptions struct {
	// HTTPClient used for delegation calls.
	HTTPClient *http.Client
	// Timeout bounds each SendTask call. No retry is performed; callers that
	// need resilience wrap SendTask with their own policy.
	Timeout time.Duration
	// Logger receives delegation diagnostics.
	Logger logging.Logger
}

// Connector is a client-side proxy for one remote agent. SendTask issues a
// delegation call and blocks until the remote returns a terminal task.
type Connector struct {
	card    core.AgentCard
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger
}

// NewConnector creates a connector for the agent described by card.
func NewConnector(card core.AgentCard, optFns ...func(o *ConnectorOptions)) *Connector {
	opts := ConnectorOptions{
		HTTPClient: http.DefaultClient,
		Timeout:    30 * time.Second,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Connector{card: card, client: opts.HTTPClient, timeout: opts.Timeout, logger: opts.Logger}
}

// Card returns the discovery record of the remote agent.
func (c *Connector) Card() core.AgentCard { return c.card }

// Name returns the remote agent's routing name.
func (c *Connector) Name() string { return c.card.Name }

// SendTask delegates message text to the remote agent under the given
// session id and returns the terminal task. Each call uses a fresh task id.
func (c *Connector) SendTask(ctx context.Context, text, sessionID string) (*core.Task, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := TaskSendParams{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Message:   core.NewTextMessage("user", text),
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      mustJSON(params.ID),
		Method:  MethodSendTask,
		Params:  mustJSON(params),
	})
	if err != nil {
		return nil, &DelegationError{Agent: c.card.Name, Kind: KindMalformed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.card.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, &DelegationError{Agent: c.card.Name, Kind: KindUnreachable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("a2a.delegate.send", "agent", c.card.Name, "task_id", params.ID, "session_id", sessionID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &DelegationError{Agent: c.card.Name, Kind: KindUnreachable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DelegationError{
			Agent: c.card.Name,
			Kind:  KindBadStatus,
			Err:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DelegationError{Agent: c.card.Name, Kind: KindMalformed, Err: err}
	}

	var envelope struct {
		Result *core.Task `json:"result"`
		Error  *rpcError  `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &DelegationError{Agent: c.card.Name, Kind: KindMalformed, Err: err}
	}
	if envelope.Error != nil {
		return nil, &DelegationError{
			Agent: c.card.Name,
			Kind:  KindMalformed,
			Err:   fmt.Errorf("remote error %d: %s", envelope.Error.Code, envelope.Error.Message),
		}
	}
	if envelope.Result == nil {
		return nil, &DelegationError{Agent: c.card.Name, Kind: KindMalformed, Err: fmt.Errorf("response carries no task")}
	}

	return envelope.Result, nil
}

// FetchAgentCard retrieves the discovery card served at baseURL.
func FetchAgentCard(ctx context.Context, client *http.Client, baseURL string) (core.AgentCard, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+AgentCardPath, nil)
	if err != nil {
		return core.AgentCard{}, fmt.Errorf("build discovery request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return core.AgentCard{}, fmt.Errorf("fetch agent card from %s: %w", baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return core.AgentCard{}, fmt.Errorf("fetch agent card from %s: unexpected status %d", baseURL, resp.StatusCode)
	}

	var card core.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return core.AgentCard{}, fmt.Errorf("decode agent card from %s: %w", baseURL, err)
	}
	if card.URL == "" {
		card.URL = baseURL
	}
	return card, nil
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
