package a2a

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoAgent(t *testing.T) *httptest.Server {
	t.Helper()
	manager := NewTaskManager(nil)
	handler := HandlerFunc(func(ctx context.Context, task *core.Task, userText string) (string, error) {
		return "echo: " + userText, nil
	})
	return httptest.NewServer(NewServer(testCard(), manager, handler).Router())
}

func TestConnectorSendTask(t *testing.T) {
	srv := newEchoAgent(t)
	defer srv.Close()

	conn := NewConnector(core.AgentCard{Name: "echo", URL: srv.URL})
	task, err := conn.SendTask(context.Background(), "ping", "session-1")
	require.NoError(t, err)

	assert.Equal(t, core.TaskStateCompleted, task.Status)
	assert.Equal(t, "session-1", task.SessionID)
	assert.Equal(t, "echo: ping", task.ReplyText())
}

func TestConnectorFreshTaskIDPerCall(t *testing.T) {
	srv := newEchoAgent(t)
	defer srv.Close()

	conn := NewConnector(core.AgentCard{Name: "echo", URL: srv.URL})
	first, err := conn.SendTask(context.Background(), "one", "s")
	require.NoError(t, err)
	second, err := conn.SendTask(context.Background(), "two", "s")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestConnectorUnreachable(t *testing.T) {
	conn := NewConnector(core.AgentCard{Name: "gone", URL: "http://127.0.0.1:1"})

	_, err := conn.SendTask(context.Background(), "ping", "s")
	var derr *DelegationError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindUnreachable, derr.Kind)
	assert.Equal(t, "gone", derr.Agent)
}

func TestConnectorBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	conn := NewConnector(core.AgentCard{Name: "broken", URL: srv.URL})
	_, err := conn.SendTask(context.Background(), "ping", "s")

	var derr *DelegationError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindBadStatus, derr.Kind)
}

func TestConnectorMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	conn := NewConnector(core.AgentCard{Name: "weird", URL: srv.URL})
	_, err := conn.SendTask(context.Background(), "ping", "s")

	var derr *DelegationError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformed, derr.Kind)
}

func TestFetchAgentCard(t *testing.T) {
	srv := newEchoAgent(t)
	defer srv.Close()

	card, err := FetchAgentCard(context.Background(), nil, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "payment_agent", card.Name)
	assert.NotEmpty(t, card.URL)
}

func TestFetchAgentCardNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := FetchAgentCard(context.Background(), nil, srv.URL)
	assert.Error(t, err)
}
