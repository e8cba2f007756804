package prebooking

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/marketplace"
	"github.com/hupe1980/carbonmesh/tool"
)

type createArgs struct {
	Company          string  `json:"company" description:"Company name or id to prebook credits from"`
	PredictedCredits int     `json:"predicted_credits" description:"Predicted credit demand to prebook"`
	Confidence       float64 `json:"confidence" description:"Prediction confidence between 0 and 1"`
	HorizonHours     int     `json:"horizon_hours" description:"How many hours ahead the prediction looks, at most 168"`
	PredictionSource string  `json:"prediction_source,omitempty" description:"Where the prediction came from, e.g. iot_extrapolation"`
}

type idArgs struct {
	PrebookingID string `json:"prebooking_id" description:"Prebooking id, e.g. pb_20260827_153000_Eco_Corp"`
}

type listArgs struct {
	Status string `json:"status,omitempty" description:"Filter by status: pending_approval, confirmed, payment_failed or cancelled"`
}

// Tools builds the prebooking agent tool set over the given service.
func Tools(svc *Service) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct("create_prebooking",
			"Prebook predicted credit demand at a discount. Small prepayments are paid and confirmed immediately; larger ones wait for operator approval.",
			createArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				company, _ := args["company"].(string)
				credits := intArg(args, "predicted_credits")
				confidence, _ := args["confidence"].(float64)
				horizonHours := intArg(args, "horizon_hours")
				source, _ := args["prediction_source"].(string)

				rec, err := svc.Create(toolCtx.Context(), CreateRequest{
					Company:          company,
					PredictedCredits: credits,
					Confidence:       confidence,
					Horizon:          time.Duration(horizonHours) * time.Hour,
					PredictionSource: source,
				})
				if err != nil {
					return nil, asToolError("create_prebooking", err)
				}

				toolCtx.SetState("last_prebooking_id", rec.ID)
				return rec, nil
			}),

		tool.NewFunctionToolFromStruct("approve_prebooking",
			"Approve a pending prebooking, triggering the prepayment.",
			idArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				id, _ := args["prebooking_id"].(string)

				rec, err := svc.Approve(toolCtx.Context(), id)
				if err != nil {
					return nil, asToolError("approve_prebooking", err)
				}
				return rec, nil
			}),

		tool.NewFunctionToolFromStruct("cancel_prebooking",
			"Cancel a pending prebooking before any payment happens.",
			idArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				id, _ := args["prebooking_id"].(string)

				rec, err := svc.Cancel(toolCtx.Context(), id)
				if err != nil {
					return nil, asToolError("cancel_prebooking", err)
				}
				return rec, nil
			}),

		tool.NewFunctionToolFromStruct("get_prebooking",
			"Look up one prebooking by id.",
			idArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				id, _ := args["prebooking_id"].(string)

				rec, err := svc.Get(toolCtx.Context(), id)
				if err != nil {
					return nil, asToolError("get_prebooking", err)
				}
				return rec, nil
			}),

		tool.NewFunctionToolFromStruct("list_prebookings",
			"List prebookings in creation order, optionally filtered by status.",
			listArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				status, _ := args["status"].(string)

				records, err := svc.List(toolCtx.Context(), status)
				if err != nil {
					return nil, err
				}
				return map[string]any{"prebookings": records, "count": len(records)}, nil
			}),
	}
}

func asToolError(toolName string, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return tool.NewToolError(toolName, verr.Error(), tool.CodeValidation)
	case errors.Is(err, marketplace.ErrCompanyNotFound):
		return tool.NewToolError(toolName, "no company found", tool.CodeValidation)
	case errors.Is(err, ErrNotFound):
		return tool.NewToolError(toolName, "prebooking not found", tool.CodeValidation)
	case errors.Is(err, ErrNotPending):
		return tool.NewToolError(toolName, fmt.Sprintf("prebooking is no longer pending: %v", err), tool.CodeExecution)
	default:
		return err
	}
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
