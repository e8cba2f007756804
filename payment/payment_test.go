package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		network string
		want    bool
	}{
		{"hedera shard.realm.num", "0.0.123456", NetworkHedera, true},
		{"hedera multi digit", "12.34.5678901", NetworkHedera, true},
		{"hedera missing segment", "0.0", NetworkHedera, false},
		{"hedera trailing dot", "0.0.123.", NetworkHedera, false},
		{"hedera evm form rejected", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", NetworkHedera, false},
		{"ethereum checksummed", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", NetworkEthereum, true},
		{"ethereum lowercase", "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", NetworkEthereum, true},
		{"ethereum short", "0x742d35Cc6634C0532925a3b844Bc454e4438f4", NetworkEthereum, false},
		{"ethereum no prefix", "742d35Cc6634C0532925a3b844Bc454e4438f44e00", NetworkEthereum, false},
		{"ethereum non hex", "0xZZZd35Cc6634C0532925a3b844Bc454e4438f44e", NetworkEthereum, false},
		{"ethereum hedera form rejected", "0.0.123456", NetworkEthereum, false},
		{"polygon evm form", "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", NetworkPolygon, true},
		{"polygon hedera form rejected", "0.0.123456", NetworkPolygon, false},
		{"unknown network", "0.0.123456", "solana", false},
		{"empty address", "", NetworkHedera, false},
		{"empty network", "0.0.123456", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAddress(tt.address, tt.network))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(KindProviderUnavailable, NetworkHedera, "node unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider_unavailable")
	assert.Contains(t, err.Error(), "node unreachable")
}

func TestMockProviderTransfer(t *testing.T) {
	mock := NewMockProvider(NetworkHedera, 1000)

	receipt, err := mock.Transfer(context.Background(), Transfer{
		Destination: "0.0.123456",
		Amount:      250,
		Token:       "HBAR",
		Memo:        "carbon-credit-purchase company=eco_corp credits=25",
	})
	require.NoError(t, err)

	assert.Equal(t, "hedera_tx_000001", receipt.TransactionID)
	assert.Equal(t, "SUCCESS", receipt.Status)
	assert.Equal(t, "carbon-credit-purchase company=eco_corp credits=25", receipt.Memo)

	balance, err := mock.Balance(context.Background(), "0.0.999")
	require.NoError(t, err)
	assert.InDelta(t, 750.0, balance, 0.001)

	status, err := mock.TransactionStatus(context.Background(), receipt.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", status)
}

func TestMockProviderInvalidDestination(t *testing.T) {
	mock := NewMockProvider(NetworkHedera, 1000)

	_, err := mock.Transfer(context.Background(), Transfer{Destination: "not-an-address", Amount: 10})

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindInvalidDestination, perr.Kind)
	assert.Empty(t, mock.Transfers())
}

func TestMockProviderInsufficientBalance(t *testing.T) {
	mock := NewMockProvider(NetworkEthereum, 5)

	_, err := mock.Transfer(context.Background(), Transfer{
		Destination: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		Amount:      10,
	})

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindInsufficientBalance, perr.Kind)
}

func TestMockProviderScriptedFailure(t *testing.T) {
	mock := NewMockProvider(NetworkHedera, 1000).
		FailWith(NewError(KindProviderUnavailable, NetworkHedera, "maintenance window", nil))

	_, err := mock.Transfer(context.Background(), Transfer{Destination: "0.0.123456", Amount: 1})

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindProviderUnavailable, perr.Kind)
}

func TestMockProviderUnknownTransactionStatus(t *testing.T) {
	mock := NewMockProvider(NetworkHedera, 1000)

	status, err := mock.TransactionStatus(context.Background(), "hedera_tx_999999")
	require.NoError(t, err)
	assert.Equal(t, "NOT_FOUND", status)
}

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	sess := core.NewSession("session-1")
	return core.NewToolContext(context.Background(), sess, "fc-1", nil)
}

func TestToolsTransferRecordsTransactionID(t *testing.T) {
	mock := NewMockProvider(NetworkHedera, 1000)
	tools := Tools(map[string]Provider{NetworkHedera: mock})

	transfer := findTool(t, tools, "transfer_hbar")
	toolCtx := newToolContext(t)

	result, err := transfer.Call(toolCtx, map[string]any{
		"destination": "0.0.123456",
		"amount":      42.5,
		"memo":        "test payment",
	})
	require.NoError(t, err)

	m := result.(map[string]any)
	assert.Equal(t, "hedera_tx_000001", m["transaction_id"])

	staged, ok := toolCtx.GetState("last_transaction_id")
	require.True(t, ok)
	assert.Equal(t, "hedera_tx_000001", staged)
}

func TestToolsInvalidDestinationBecomesValidationError(t *testing.T) {
	mock := NewMockProvider(NetworkHedera, 1000)
	tools := Tools(map[string]Provider{NetworkHedera: mock})

	transfer := findTool(t, tools, "transfer_hbar")
	_, err := transfer.Call(newToolContext(t), map[string]any{
		"destination": "0xdeadbeef",
		"amount":      1.0,
	})

	var terr *tool.ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.CodeValidation, terr.Code)
}

func TestToolsValidateAddress(t *testing.T) {
	tools := Tools(nil)
	validate := findTool(t, tools, "validate_payment_address")

	result, err := validate.Call(newToolContext(t), map[string]any{
		"address": "0.0.123456",
		"network": "hedera",
	})
	require.NoError(t, err)
	assert.Equal(t, true, result.(map[string]any)["valid"])
}

func TestToolsOnlyForConfiguredNetworks(t *testing.T) {
	tools := Tools(map[string]Provider{NetworkEthereum: NewMockProvider(NetworkEthereum, 10)})

	names := make([]string, 0, len(tools))
	for _, tl := range tools {
		names = append(names, tl.Name())
	}
	assert.Contains(t, names, "transfer_eth")
	assert.NotContains(t, names, "transfer_hbar")
	assert.NotContains(t, names, "transfer_matic")
	assert.Contains(t, names, "validate_payment_address")
}

func findTool(t *testing.T, tools []tool.Tool, name string) tool.Tool {
	t.Helper()
	for _, tl := range tools {
		if tl.Name() == name {
			return tl
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}
