// Package evm implements the payment.Provider interface for EVM compatible
// chains (Ethereum, Polygon) using go-ethereum's ethclient.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/payment"
)

const transferGasLimit = 21000

var weiPerEther = new(big.Float).SetFloat64(1e18)

// Options configure the EVM provider.
type Options struct {
	// Logger receives transfer diagnostics.
	Logger logging.Logger
}

// Provider executes native-token value transfers signed by one private key.
type Provider struct {
	network string
	token   string
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	logger  logging.Logger
}

// NewProvider dials the RPC endpoint and prepares a signer for the given
// network ("ethereum" or "polygon").
func NewProvider(ctx context.Context, network, rpcURL, privateKeyHex string, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	token := "ETH"
	if network == payment.NetworkPolygon {
		token = "MATIC"
	} else if network != payment.NetworkEthereum {
		return nil, fmt.Errorf("unsupported evm network %q", network)
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", network, err)
	}
	eth := ethclient.NewClient(rpcClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query %s chain id: %w", network, err)
	}

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Provider{
		network: network,
		token:   token,
		eth:     eth,
		chainID: chainID,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		logger:  opts.Logger,
	}, nil
}

// Network implements payment.Provider.
func (p *Provider) Network() string { return p.network }

// Transfer implements payment.Provider. The amount is interpreted in whole
// units of the chain's native token.
func (p *Provider) Transfer(ctx context.Context, t payment.Transfer) (*payment.Receipt, error) {
	if !payment.ValidateAddress(t.Destination, p.network) {
		return nil, payment.NewError(payment.KindInvalidDestination, p.network,
			fmt.Sprintf("invalid destination %q", t.Destination), nil)
	}

	value := weiFromEther(t.Amount)

	balance, err := p.eth.BalanceAt(ctx, p.from, nil)
	if err != nil {
		return nil, payment.NewError(payment.KindProviderUnavailable, p.network, "query balance", err)
	}
	if balance.Cmp(value) < 0 {
		return nil, payment.NewError(payment.KindInsufficientBalance, p.network,
			fmt.Sprintf("balance below transfer amount %.6f %s", t.Amount, p.token), nil)
	}

	nonce, err := p.eth.PendingNonceAt(ctx, p.from)
	if err != nil {
		return nil, payment.NewError(payment.KindProviderUnavailable, p.network, "query nonce", err)
	}
	gasPrice, err := p.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, payment.NewError(payment.KindProviderUnavailable, p.network, "query gas price", err)
	}

	// The memo travels in the tx payload for traceability.
	tx := coretypes.NewTransaction(nonce, common.HexToAddress(t.Destination), value,
		transferGasLimit+uint64(len(t.Memo))*16, gasPrice, []byte(t.Memo))

	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return nil, payment.NewError(payment.KindProviderUnavailable, p.network, "sign transaction", err)
	}
	if err := p.eth.SendTransaction(ctx, signed); err != nil {
		return nil, payment.NewError(payment.KindProviderUnavailable, p.network, "broadcast transaction", err)
	}

	txID := signed.Hash().Hex()
	p.logger.Info("payment.evm.transfer", "network", p.network, "tx_id", txID, "destination", t.Destination, "amount", t.Amount)

	return &payment.Receipt{
		TransactionID: txID,
		Network:       p.network,
		Destination:   t.Destination,
		Amount:        t.Amount,
		Token:         p.token,
		Memo:          t.Memo,
		Status:        "PENDING",
		Timestamp:     time.Now(),
	}, nil
}

// Balance implements payment.Provider, returning whole native-token units.
func (p *Provider) Balance(ctx context.Context, account string) (float64, error) {
	if !payment.ValidateAddress(account, p.network) {
		return 0, payment.NewError(payment.KindInvalidDestination, p.network,
			fmt.Sprintf("invalid account %q", account), nil)
	}
	wei, err := p.eth.BalanceAt(ctx, common.HexToAddress(account), nil)
	if err != nil {
		return 0, payment.NewError(payment.KindProviderUnavailable, p.network, "query balance", err)
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return ether, nil
}

// TransactionStatus implements payment.Provider.
func (p *Provider) TransactionStatus(ctx context.Context, txID string) (string, error) {
	receipt, err := p.eth.TransactionReceipt(ctx, common.HexToHash(txID))
	if err != nil {
		if errors.Is(err, gethcore.NotFound) {
			// Still in the mempool, or unknown.
			if _, pending, perr := p.eth.TransactionByHash(ctx, common.HexToHash(txID)); perr == nil && pending {
				return "PENDING", nil
			}
			return "NOT_FOUND", nil
		}
		return "", payment.NewError(payment.KindProviderUnavailable, p.network, "query receipt", err)
	}
	if receipt.Status == coretypes.ReceiptStatusSuccessful {
		return "SUCCESS", nil
	}
	return "FAILED", nil
}

// Close releases the underlying RPC connection.
func (p *Provider) Close() {
	if p.eth != nil {
		p.eth.Close()
	}
}

func weiFromEther(amount float64) *big.Int {
	wei, _ := new(big.Float).Mul(new(big.Float).SetFloat64(amount), weiPerEther).Int(nil)
	return wei
}

var _ payment.Provider = (*Provider)(nil)
