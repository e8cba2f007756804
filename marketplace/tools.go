package marketplace

import (
	"errors"
	"fmt"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/tool"
)

type searchArgs struct {
	MaxPrice   float64 `json:"max_price,omitempty" description:"Only return offers at or below this USD price per credit"`
	MinCredits int     `json:"min_credits,omitempty" description:"Only return offers with at least this many credits available"`
}

type resolveArgs struct {
	Company string `json:"company" description:"Company name or id, exact or approximate"`
}

type allocateArgs struct {
	Credits  int     `json:"credits" description:"Total number of credits to plan for"`
	MaxPrice float64 `json:"max_price,omitempty" description:"Optional USD price ceiling per credit"`
}

type purchaseArgs struct {
	CompanyID     string `json:"company_id" description:"Exact company id from a prior search or resolve"`
	Credits       int    `json:"credits" description:"Number of credits to record as purchased"`
	TransactionID string `json:"transaction_id" description:"Payment transaction id backing this purchase"`
}

type historyArgs struct {
	CompanyID string `json:"company_id,omitempty" description:"Restrict history to one company"`
}

// Tools builds the marketplace agent tool set over the given store.
func Tools(store Store) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct("search_offers",
			"List carbon credit offers, cheapest first, optionally filtered by price ceiling and minimum volume.",
			searchArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				maxPrice, _ := args["max_price"].(float64)
				minCredits := intArg(args, "min_credits")

				offers, err := store.Search(toolCtx.Context(), Filter{MaxPrice: maxPrice, MinCredits: minCredits})
				if err != nil {
					return nil, err
				}
				return map[string]any{"offers": offers, "count": len(offers)}, nil
			}),

		tool.NewFunctionToolFromStruct("resolve_company",
			"Find the offer for a company given an exact or approximate name.",
			resolveArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				company, _ := args["company"].(string)

				offer, err := ResolveCompany(toolCtx.Context(), store, company)
				if errors.Is(err, ErrCompanyNotFound) {
					return map[string]any{"found": false, "message": fmt.Sprintf("no company found matching %q", company)}, nil
				}
				if err != nil {
					return nil, err
				}
				return map[string]any{"found": true, "offer": offer}, nil
			}),

		tool.NewFunctionToolFromStruct("allocate_credits",
			"Plan a purchase of N credits across offers, cheapest first. Returns per-company lines, total cost and average price.",
			allocateArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				credits := intArg(args, "credits")
				maxPrice, _ := args["max_price"].(float64)

				plan, err := Allocate(toolCtx.Context(), store, credits, Filter{MaxPrice: maxPrice})
				if err != nil {
					return nil, err
				}
				return plan, nil
			}),

		tool.NewFunctionToolFromStruct("record_purchase",
			"Record a completed credit purchase against a company, decrementing its availability.",
			purchaseArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				companyID, _ := args["company_id"].(string)
				credits := intArg(args, "credits")
				txID, _ := args["transaction_id"].(string)

				purchase, err := store.Purchase(toolCtx.Context(), companyID, credits, txID)
				if errors.Is(err, ErrCompanyNotFound) {
					return nil, tool.NewToolError("record_purchase",
						fmt.Sprintf("no company found with id %q", companyID), tool.CodeValidation)
				}
				if errors.Is(err, ErrInsufficientCredit) {
					return nil, tool.NewToolError("record_purchase",
						fmt.Sprintf("company %q does not have %d credits available", companyID, credits), tool.CodeExecution)
				}
				if err != nil {
					return nil, err
				}
				return purchase, nil
			}),

		tool.NewFunctionToolFromStruct("purchase_history",
			"List recorded credit purchases, newest first.",
			historyArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				companyID, _ := args["company_id"].(string)

				purchases, err := store.Purchases(toolCtx.Context(), companyID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"purchases": purchases, "count": len(purchases)}, nil
			}),
	}
}

// intArg reads an integer tool argument that arrives as JSON float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
