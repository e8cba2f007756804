package payment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is an in-memory Provider for tests and dry-run deployments.
// It validates destinations like a real provider and can be scripted to fail.
type MockProvider struct {
	network string
	balance float64

	mu        sync.Mutex
	seq       int
	transfers []Transfer
	failWith  *Error
	statuses  map[string]string
}

// NewMockProvider creates a mock provider for the given network with a
// starting balance.
func NewMockProvider(network string, balance float64) *MockProvider {
	return &MockProvider{network: network, balance: balance, statuses: map[string]string{}}
}

// FailWith makes every subsequent Transfer return err.
func (m *MockProvider) FailWith(err *Error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
	return m
}

// Transfers returns all transfers executed so far.
func (m *MockProvider) Transfers() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}

// Network implements Provider.
func (m *MockProvider) Network() string { return m.network }

// Transfer implements Provider.
func (m *MockProvider) Transfer(_ context.Context, t Transfer) (*Receipt, error) {
	if !ValidateAddress(t.Destination, m.network) {
		return nil, NewError(KindInvalidDestination, m.network, fmt.Sprintf("invalid destination %q", t.Destination), nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	if t.Amount > m.balance {
		return nil, NewError(KindInsufficientBalance, m.network,
			fmt.Sprintf("balance %.2f below transfer amount %.2f", m.balance, t.Amount), nil)
	}

	m.balance -= t.Amount
	m.seq++
	txID := fmt.Sprintf("%s_tx_%06d", m.network, m.seq)
	m.transfers = append(m.transfers, t)
	m.statuses[txID] = "SUCCESS"

	return &Receipt{
		TransactionID: txID,
		Network:       m.network,
		Destination:   t.Destination,
		Amount:        t.Amount,
		Token:         t.Token,
		Memo:          t.Memo,
		Status:        "SUCCESS",
		Timestamp:     time.Now(),
	}, nil
}

// Balance implements Provider.
func (m *MockProvider) Balance(context.Context, string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

// TransactionStatus implements Provider.
func (m *MockProvider) TransactionStatus(_ context.Context, txID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.statuses[txID]; ok {
		return status, nil
	}
	return "NOT_FOUND", nil
}

var _ Provider = (*MockProvider)(nil)
