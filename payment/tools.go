package payment

import (
	"errors"
	"fmt"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/tool"
)

type transferArgs struct {
	Destination string  `json:"destination" description:"Destination address on the target network"`
	Amount      float64 `json:"amount" description:"Amount to transfer in whole native token units"`
	Memo        string  `json:"memo,omitempty" description:"Optional memo attached to the transaction"`
}

type validateArgs struct {
	Address string `json:"address" description:"Address to validate"`
	Network string `json:"network" description:"Network name: hedera, ethereum or polygon"`
}

type balanceArgs struct {
	Account string `json:"account" description:"Account address to query"`
}

type statusArgs struct {
	TransactionID string `json:"transaction_id" description:"Transaction identifier returned by a transfer"`
}

// Tools builds the payment agent tool set over the given providers, keyed by
// network name. Providers may be real (hedera, evm) or mocks.
func Tools(providers map[string]Provider) []tool.Tool {
	var tools []tool.Tool

	transferName := map[string]string{
		NetworkHedera:   "transfer_hbar",
		NetworkEthereum: "transfer_eth",
		NetworkPolygon:  "transfer_matic",
	}
	transferToken := map[string]string{
		NetworkHedera:   "HBAR",
		NetworkEthereum: "ETH",
		NetworkPolygon:  "MATIC",
	}

	for _, network := range []string{NetworkHedera, NetworkEthereum, NetworkPolygon} {
		provider, ok := providers[network]
		if !ok {
			continue
		}
		token := transferToken[network]

		tools = append(tools,
			tool.NewFunctionToolFromStruct(transferName[network],
				fmt.Sprintf("Transfer %s on the %s network to a destination address.", token, network),
				transferArgs{}, transferFn(provider, token)),
			tool.NewFunctionToolFromStruct(fmt.Sprintf("get_%s_balance", network),
				fmt.Sprintf("Query an account balance on the %s network.", network),
				balanceArgs{}, balanceFn(provider)),
			tool.NewFunctionToolFromStruct(fmt.Sprintf("get_%s_transaction_status", network),
				fmt.Sprintf("Look up the status of a past %s transaction.", network),
				statusArgs{}, statusFn(provider)),
		)
	}

	tools = append(tools, tool.NewFunctionToolFromStruct("validate_payment_address",
		"Check whether an address is well-formed for a given network before paying it.",
		validateArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			address, _ := args["address"].(string)
			network, _ := args["network"].(string)
			return map[string]any{
				"address": address,
				"network": network,
				"valid":   ValidateAddress(address, network),
			}, nil
		}))

	return tools
}

func transferFn(provider Provider, token string) func(*core.ToolContext, map[string]any) (any, error) {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		destination, _ := args["destination"].(string)
		amount, _ := args["amount"].(float64)
		memo, _ := args["memo"].(string)

		receipt, err := provider.Transfer(toolCtx.Context(), Transfer{
			Destination: destination,
			Amount:      amount,
			Token:       token,
			Memo:        memo,
		})
		if err != nil {
			return nil, asToolError(err)
		}

		toolCtx.SetState("last_transaction_id", receipt.TransactionID)

		return map[string]any{
			"transaction_id": receipt.TransactionID,
			"network":        receipt.Network,
			"destination":    receipt.Destination,
			"amount":         receipt.Amount,
			"token":          receipt.Token,
			"memo":           receipt.Memo,
			"status":         receipt.Status,
		}, nil
	}
}

func balanceFn(provider Provider) func(*core.ToolContext, map[string]any) (any, error) {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		account, _ := args["account"].(string)

		balance, err := provider.Balance(toolCtx.Context(), account)
		if err != nil {
			return nil, asToolError(err)
		}
		return map[string]any{
			"account": account,
			"network": provider.Network(),
			"balance": balance,
		}, nil
	}
}

func statusFn(provider Provider) func(*core.ToolContext, map[string]any) (any, error) {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		txID, _ := args["transaction_id"].(string)

		status, err := provider.TransactionStatus(toolCtx.Context(), txID)
		if err != nil {
			return nil, asToolError(err)
		}
		return map[string]any{
			"transaction_id": txID,
			"network":        provider.Network(),
			"status":         status,
		}, nil
	}
}

// asToolError preserves the payment failure kind in the tool error details so
// the model can distinguish a bad address from a provider outage.
func asToolError(err error) error {
	var perr *Error
	if errors.As(err, &perr) {
		code := tool.CodeExecution
		if perr.Kind == KindInvalidDestination {
			code = tool.CodeValidation
		}
		return &tool.ToolError{
			Message: perr.Message,
			Code:    code,
			Details: map[string]any{"kind": string(perr.Kind), "network": perr.Network},
		}
	}
	return err
}
