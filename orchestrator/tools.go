package orchestrator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/marketplace"
	"github.com/hupe1980/carbonmesh/tool"
)

// Routing names of the specialist agents.
const (
	PaymentAgentName     = "payment_agent"
	MarketplaceAgentName = "marketplace_agent"
	PrebookingAgentName  = "prebooking_agent"
	IoTAgentName         = "iot_agent"
)

// delegationSessionKey stores the session id used for outbound delegations so
// that all delegations within one conversation correlate on the remote side.
const delegationSessionKey = "delegation_session_id"

type delegateArgs struct {
	AgentName string `json:"agent_name" description:"Routing name of the agent to delegate to, as returned by list_agents"`
	Message   string `json:"message" description:"Instruction to send to the agent"`
}

type buyArgs struct {
	Company string `json:"company" description:"Company name or id to buy credits from"`
	Credits int    `json:"credits" description:"Number of credits to buy"`
}

type prebookArgs struct {
	Company          string  `json:"company" description:"Company name or id to prebook credits from"`
	PredictedCredits int     `json:"predicted_credits" description:"Predicted credit demand"`
	Confidence       float64 `json:"confidence" description:"Prediction confidence between 0 and 1"`
	HorizonHours     int     `json:"horizon_hours" description:"Prediction horizon in hours, at most 168"`
}

type approveArgs struct {
	PrebookingID string `json:"prebooking_id" description:"Prebooking id to approve"`
}

// tools builds the orchestrator tool set.
func (o *Orchestrator) tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct("list_agents",
			"List the specialist agents available for delegation with their skills.",
			struct{}{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				cards := o.registry.Cards()
				return map[string]any{"agents": cards, "count": len(cards)}, nil
			}),

		tool.NewFunctionToolFromStruct("delegate_task",
			"Send an instruction to a specialist agent and return its reply.",
			delegateArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				agentName, _ := args["agent_name"].(string)
				message, _ := args["message"].(string)

				reply, err := o.delegate(toolCtx, agentName, message)
				if err != nil {
					return nil, err
				}
				return map[string]any{"agent": agentName, "reply": reply}, nil
			}),

		tool.NewFunctionToolFromStruct("buy_credits",
			"Buy carbon credits from a company end to end: resolve the offer, pay the company and record the purchase.",
			buyArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				company, _ := args["company"].(string)
				credits := intArg(args, "credits")

				return o.buyCredits(toolCtx, company, credits)
			}),

		tool.NewFunctionToolFromStruct("prebook_credits",
			"Prebook predicted future credit demand from a company at a discount.",
			prebookArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				company, _ := args["company"].(string)
				credits := intArg(args, "predicted_credits")
				confidence, _ := args["confidence"].(float64)
				horizonHours := intArg(args, "horizon_hours")

				message := fmt.Sprintf(
					"Create a prebooking for %d predicted credits from %s with confidence %.2f over the next %d hours.",
					credits, company, confidence, horizonHours)
				reply, err := o.delegate(toolCtx, PrebookingAgentName, message)
				if err != nil {
					return nil, err
				}
				return map[string]any{"agent": PrebookingAgentName, "reply": reply}, nil
			}),

		tool.NewFunctionToolFromStruct("approve_prebooking",
			"Approve a pending prebooking, releasing its prepayment.",
			approveArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				id, _ := args["prebooking_id"].(string)

				reply, err := o.delegate(toolCtx, PrebookingAgentName, "Approve prebooking "+id+".")
				if err != nil {
					return nil, err
				}
				return map[string]any{"agent": PrebookingAgentName, "reply": reply}, nil
			}),
	}
}

// delegate sends message to the named agent under this conversation's
// delegation session id and returns the remote reply text.
func (o *Orchestrator) delegate(toolCtx *core.ToolContext, agentName, message string) (string, error) {
	sender, ok := o.registry.Lookup(agentName)
	if !ok {
		return "", tool.NewToolError("delegate_task",
			fmt.Sprintf("no agent registered under %q", agentName), tool.CodeValidation)
	}

	task, err := sender.SendTask(toolCtx.Context(), message, o.delegationSessionID(toolCtx))
	if err != nil {
		return "", tool.NewToolError("delegate_task",
			fmt.Sprintf("delegation to %s failed: %v", agentName, err), tool.CodeExecution)
	}
	return task.ReplyText(), nil
}

// delegationSessionID returns the stable session id used for delegations in
// this conversation, creating it on first use. The load-or-store is atomic,
// so parallel tool calls within one turn mint a single id.
func (o *Orchestrator) delegationSessionID(toolCtx *core.ToolContext) string {
	v, _ := toolCtx.LoadOrStoreState(delegationSessionKey, uuid.NewString())
	if id, ok := v.(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	toolCtx.SetState(delegationSessionKey, id)
	return id
}

// buyCredits runs the purchase workflow: resolve the company offer locally,
// delegate the payment, then delegate the purchase recording. A recording
// failure after a successful payment is reported as a distinct partial
// outcome carrying the transaction id, never silently swallowed.
func (o *Orchestrator) buyCredits(toolCtx *core.ToolContext, company string, credits int) (any, error) {
	if credits <= 0 {
		return nil, tool.NewToolError("buy_credits", "credits must be positive", tool.CodeValidation)
	}

	offer, err := marketplace.ResolveCompany(toolCtx.Context(), o.store, company)
	if err != nil {
		return map[string]any{
			"status":  "failed",
			"message": fmt.Sprintf("no company found matching %q", company),
		}, nil
	}
	if credits > offer.AvailableCredits {
		return map[string]any{
			"status":  "failed",
			"message": fmt.Sprintf("%s has only %d credits available", offer.CompanyName, offer.AvailableCredits),
		}, nil
	}

	total := float64(credits) * offer.OfferPrice
	memo := fmt.Sprintf("carbon-credit-purchase company=%s credits=%d", offer.CompanyID, credits)

	payMessage := fmt.Sprintf("Transfer %.2f to %s on the %s network with memo %q.",
		total, offer.WalletAddress, offer.Network, memo)
	payReply, err := o.delegate(toolCtx, PaymentAgentName, payMessage)
	if err != nil {
		return map[string]any{
			"status":  "failed",
			"message": fmt.Sprintf("payment failed: %v", err),
		}, nil
	}

	txID := extractTransactionID(payReply, memo)
	toolCtx.SetState("last_transaction_id", txID)

	recordMessage := fmt.Sprintf("Record a purchase of %d credits from company %s with transaction id %s.",
		credits, offer.CompanyID, txID)
	if _, err := o.delegate(toolCtx, MarketplaceAgentName, recordMessage); err != nil {
		o.logger.Warn("orchestrator.buy.record_failed", "company_id", offer.CompanyID, "tx_id", txID, "error", err.Error())
		return map[string]any{
			"status":         "partial",
			"message":        "payment succeeded, recording failed",
			"transaction_id": txID,
			"company_id":     offer.CompanyID,
			"credits":        credits,
			"total_price":    total,
		}, nil
	}

	return map[string]any{
		"status":         "completed",
		"transaction_id": txID,
		"company_id":     offer.CompanyID,
		"company_name":   offer.CompanyName,
		"credits":        credits,
		"unit_price":     offer.OfferPrice,
		"total_price":    total,
		"memo":           memo,
	}, nil
}

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
