// Package payment defines the external payment provider boundary: validated
// destinations, typed failures and a provider-agnostic receipt. Network
// specific providers live in subpackages (hedera, evm).
package payment

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Supported network names.
const (
	NetworkHedera   = "hedera"
	NetworkEthereum = "ethereum"
	NetworkPolygon  = "polygon"
)

var (
	hederaAddressRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	evmAddressRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidateAddress reports whether address is well-formed for the given
// network. Unknown networks are always invalid. Validation happens before
// any external call so a malformed destination never reaches a provider.
func ValidateAddress(address, network string) bool {
	switch network {
	case NetworkHedera:
		return hederaAddressRe.MatchString(address)
	case NetworkEthereum, NetworkPolygon:
		return evmAddressRe.MatchString(address)
	default:
		return false
	}
}

// ErrorKind classifies payment failures.
type ErrorKind string

const (
	// KindInvalidDestination marks a malformed or unknown destination.
	KindInvalidDestination ErrorKind = "invalid_destination"
	// KindInsufficientBalance marks a payer balance too low for the transfer.
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	// KindProviderUnavailable marks network or provider-side failures.
	KindProviderUnavailable ErrorKind = "provider_unavailable"
)

// Error is the typed failure surface of a Provider.
type Error struct {
	Kind    ErrorKind
	Network string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment error (%s) on %s: %s: %v", e.Kind, e.Network, e.Message, e.Err)
	}
	return fmt.Sprintf("payment error (%s) on %s: %s", e.Kind, e.Network, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed payment error.
func NewError(kind ErrorKind, network, message string, err error) *Error {
	return &Error{Kind: kind, Network: network, Message: message, Err: err}
}

// Transfer describes one outbound payment.
type Transfer struct {
	Destination string  `json:"destination"`
	Amount      float64 `json:"amount"`
	Token       string  `json:"token"` // "HBAR", "ETH", "MATIC"
	Memo        string  `json:"memo,omitempty"`
}

// Receipt is the provider-agnostic success result of a transfer.
type Receipt struct {
	TransactionID string    `json:"transaction_id"`
	Network       string    `json:"network"`
	Destination   string    `json:"destination"`
	Amount        float64   `json:"amount"`
	Token         string    `json:"token"`
	Memo          string    `json:"memo,omitempty"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// Provider executes transfers on one network. Implementations validate the
// destination before moving funds and return *Error for every failure.
type Provider interface {
	// Network returns the network this provider serves.
	Network() string

	// Transfer moves funds and returns a receipt carrying the provider
	// specific transaction identifier.
	Transfer(ctx context.Context, t Transfer) (*Receipt, error)

	// Balance returns the account balance in the network's native token.
	Balance(ctx context.Context, account string) (float64, error)

	// TransactionStatus looks up the state of a past transaction
	// ("SUCCESS", "FAILED", "PENDING", "NOT_FOUND").
	TransactionStatus(ctx context.Context, txID string) (string, error)
}
