package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCard() core.AgentCard {
	return core.AgentCard{
		Name:        "payment_agent",
		Description: "Executes payments",
		URL:         "http://localhost:10001",
		Version:     "1.0.0",
		Skills: []core.AgentSkill{
			{ID: "transfer", Name: "Transfer funds", Examples: []string{"send 5 HBAR to 0.0.1234"}},
		},
	}
}

func postRPC(t *testing.T, srv *httptest.Server, method string, params any) rpcResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: json.RawMessage(`"1"`), Method: method, Params: raw})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var envelope rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func decodeTask(t *testing.T, result any) *core.Task {
	t.Helper()
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	var task core.Task
	require.NoError(t, json.Unmarshal(raw, &task))
	return &task
}

func TestServerSendTaskRoundtrip(t *testing.T) {
	manager := NewTaskManager(nil)
	handler := HandlerFunc(func(ctx context.Context, task *core.Task, userText string) (string, error) {
		return "reply to " + userText, nil
	})
	srv := httptest.NewServer(NewServer(testCard(), manager, handler).Router())
	defer srv.Close()

	envelope := postRPC(t, srv, MethodSendTask, TaskSendParams{
		ID:        "t1",
		SessionID: "s1",
		Message:   core.NewTextMessage("user", "hello"),
	})
	require.Nil(t, envelope.Error)

	task := decodeTask(t, envelope.Result)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, core.TaskStateCompleted, task.Status)
	require.Len(t, task.History, 2)
	assert.Equal(t, "reply to hello", task.History[1].Text())
}

func TestServerHandlerErrorStillCompletes(t *testing.T) {
	manager := NewTaskManager(nil)
	handler := HandlerFunc(func(ctx context.Context, task *core.Task, userText string) (string, error) {
		return "", errors.New("downstream exploded")
	})
	srv := httptest.NewServer(NewServer(testCard(), manager, handler).Router())
	defer srv.Close()

	envelope := postRPC(t, srv, MethodSendTask, TaskSendParams{
		ID: "t1", SessionID: "s1", Message: core.NewTextMessage("user", "hello"),
	})
	require.Nil(t, envelope.Error)

	task := decodeTask(t, envelope.Result)
	assert.Equal(t, core.TaskStateCompleted, task.Status)
	assert.Contains(t, task.History[1].Text(), "downstream exploded")
}

func TestServerResubmissionReturnsFinishedTask(t *testing.T) {
	manager := NewTaskManager(nil)
	var handlerCalls int
	handler := HandlerFunc(func(ctx context.Context, task *core.Task, userText string) (string, error) {
		handlerCalls++
		return "done", nil
	})
	srv := httptest.NewServer(NewServer(testCard(), manager, handler).Router())
	defer srv.Close()

	params := TaskSendParams{ID: "t1", SessionID: "s1", Message: core.NewTextMessage("user", "hello")}
	first := postRPC(t, srv, MethodSendTask, params)
	second := postRPC(t, srv, MethodSendTask, params)

	assert.Equal(t, 1, handlerCalls)
	assert.Equal(t, decodeTask(t, first.Result).History, decodeTask(t, second.Result).History)
}

func TestServerUnknownMethod(t *testing.T) {
	srv := httptest.NewServer(NewServer(testCard(), NewTaskManager(nil), HandlerFunc(nil)).Router())
	defer srv.Close()

	envelope := postRPC(t, srv, "tasks/unknown", map[string]any{})
	require.NotNil(t, envelope.Error)
	assert.Equal(t, codeMethodNotFound, envelope.Error.Code)
}

func TestServerInvalidParams(t *testing.T) {
	srv := httptest.NewServer(NewServer(testCard(), NewTaskManager(nil), HandlerFunc(nil)).Router())
	defer srv.Close()

	envelope := postRPC(t, srv, MethodSendTask, TaskSendParams{SessionID: "s1"})
	require.NotNil(t, envelope.Error)
	assert.Equal(t, codeInvalidParams, envelope.Error.Code)
}

func TestServerServesAgentCard(t *testing.T) {
	srv := httptest.NewServer(NewServer(testCard(), NewTaskManager(nil), HandlerFunc(nil)).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + AgentCardPath)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card core.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "payment_agent", card.Name)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "transfer", card.Skills[0].ID)
}
