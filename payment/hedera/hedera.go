// Package hedera implements the payment.Provider interface on the Hedera
// network using the official SDK. Transaction status is resolved through the
// public mirror node REST API.
package hedera

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	hiero "github.com/hiero-ledger/hiero-sdk-go/v2/sdk"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/payment"
)

// Options configure the Hedera provider.
type Options struct {
	// Testnet selects the Hedera testnet (default) over mainnet.
	Testnet bool
	// MirrorBaseURL overrides the mirror node endpoint for status lookups.
	MirrorBaseURL string
	// HTTPClient used for mirror node queries.
	HTTPClient *http.Client
	// Logger receives transfer diagnostics.
	Logger logging.Logger
}

// Provider executes HBAR transfers for one operator account.
type Provider struct {
	client     *hiero.Client
	operatorID hiero.AccountID
	mirrorBase string
	httpClient *http.Client
	logger     logging.Logger
}

// NewProvider creates a Hedera provider for the given operator credentials.
func NewProvider(operatorID, operatorKey string, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Testnet:       true,
		MirrorBaseURL: "https://testnet.mirrornode.hedera.com",
		HTTPClient:    http.DefaultClient,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	accountID, err := hiero.AccountIDFromString(operatorID)
	if err != nil {
		return nil, fmt.Errorf("parse operator account id: %w", err)
	}
	privateKey, err := hiero.PrivateKeyFromString(operatorKey)
	if err != nil {
		return nil, fmt.Errorf("parse operator private key: %w", err)
	}

	var client *hiero.Client
	if opts.Testnet {
		client = hiero.ClientForTestnet()
	} else {
		client = hiero.ClientForMainnet()
	}
	client.SetOperator(accountID, privateKey)

	return &Provider{
		client:     client,
		operatorID: accountID,
		mirrorBase: strings.TrimRight(opts.MirrorBaseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}, nil
}

// Network implements payment.Provider.
func (p *Provider) Network() string { return payment.NetworkHedera }

// Transfer implements payment.Provider. The amount is interpreted as whole
// HBAR; the SDK handles the tinybar conversion.
func (p *Provider) Transfer(ctx context.Context, t payment.Transfer) (*payment.Receipt, error) {
	if !payment.ValidateAddress(t.Destination, payment.NetworkHedera) {
		return nil, payment.NewError(payment.KindInvalidDestination, payment.NetworkHedera,
			fmt.Sprintf("invalid destination %q", t.Destination), nil)
	}

	destination, err := hiero.AccountIDFromString(t.Destination)
	if err != nil {
		return nil, payment.NewError(payment.KindInvalidDestination, payment.NetworkHedera,
			fmt.Sprintf("unparseable destination %q", t.Destination), err)
	}

	amount := hiero.NewHbar(t.Amount)
	tx := hiero.NewTransferTransaction().
		AddHbarTransfer(p.operatorID, amount.Negated()).
		AddHbarTransfer(destination, amount)
	if t.Memo != "" {
		tx = tx.SetTransactionMemo(t.Memo)
	}

	resp, err := tx.Execute(p.client)
	if err != nil {
		return nil, classifyHederaError(err)
	}

	receipt, err := resp.GetReceipt(p.client)
	if err != nil {
		return nil, classifyHederaError(err)
	}

	txID := resp.TransactionID.String()
	p.logger.Info("payment.hedera.transfer", "tx_id", txID, "destination", t.Destination, "amount", t.Amount)

	return &payment.Receipt{
		TransactionID: txID,
		Network:       payment.NetworkHedera,
		Destination:   t.Destination,
		Amount:        t.Amount,
		Token:         "HBAR",
		Memo:          t.Memo,
		Status:        receipt.Status.String(),
		Timestamp:     time.Now(),
	}, nil
}

// Balance implements payment.Provider.
func (p *Provider) Balance(ctx context.Context, account string) (float64, error) {
	if !payment.ValidateAddress(account, payment.NetworkHedera) {
		return 0, payment.NewError(payment.KindInvalidDestination, payment.NetworkHedera,
			fmt.Sprintf("invalid account %q", account), nil)
	}
	accountID, err := hiero.AccountIDFromString(account)
	if err != nil {
		return 0, payment.NewError(payment.KindInvalidDestination, payment.NetworkHedera,
			fmt.Sprintf("unparseable account %q", account), err)
	}

	balance, err := hiero.NewAccountBalanceQuery().SetAccountID(accountID).Execute(p.client)
	if err != nil {
		return 0, classifyHederaError(err)
	}
	return balance.Hbars.As(hiero.HbarUnits.Hbar), nil
}

// TransactionStatus implements payment.Provider via the mirror node REST API.
func (p *Provider) TransactionStatus(ctx context.Context, txID string) (string, error) {
	url := fmt.Sprintf("%s/api/v1/transactions/%s", p.mirrorBase, mirrorTransactionID(txID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", payment.NewError(payment.KindProviderUnavailable, payment.NetworkHedera, "build mirror request", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", payment.NewError(payment.KindProviderUnavailable, payment.NetworkHedera, "mirror node unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "NOT_FOUND", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", payment.NewError(payment.KindProviderUnavailable, payment.NetworkHedera,
			fmt.Sprintf("mirror node status %d", resp.StatusCode), nil)
	}

	var payload struct {
		Transactions []struct {
			Result string `json:"result"`
		} `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", payment.NewError(payment.KindProviderUnavailable, payment.NetworkHedera, "decode mirror response", err)
	}
	if len(payload.Transactions) == 0 {
		return "NOT_FOUND", nil
	}
	if payload.Transactions[0].Result == "SUCCESS" {
		return "SUCCESS", nil
	}
	return "FAILED", nil
}

// mirrorTransactionID rewrites an SDK transaction id (0.0.x@sec.nanos) into
// the mirror node path form (0.0.x-sec-nanos).
func mirrorTransactionID(txID string) string {
	parts := strings.SplitN(txID, "@", 2)
	if len(parts) != 2 {
		return txID
	}
	return parts[0] + "-" + strings.Replace(parts[1], ".", "-", 1)
}

func classifyHederaError(err error) error {
	msg := strings.ToUpper(err.Error())
	if strings.Contains(msg, "INSUFFICIENT_PAYER_BALANCE") || strings.Contains(msg, "INSUFFICIENT_ACCOUNT_BALANCE") {
		return payment.NewError(payment.KindInsufficientBalance, payment.NetworkHedera, "insufficient balance", err)
	}
	if strings.Contains(msg, "INVALID_ACCOUNT_ID") || strings.Contains(msg, "ACCOUNT_ID_DOES_NOT_EXIST") {
		return payment.NewError(payment.KindInvalidDestination, payment.NetworkHedera, "unknown destination account", err)
	}
	return payment.NewError(payment.KindProviderUnavailable, payment.NetworkHedera, "hedera network error", err)
}

var _ payment.Provider = (*Provider)(nil)
