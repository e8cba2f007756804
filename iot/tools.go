package iot

import (
	"errors"
	"time"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/tool"
)

type recentArgs struct {
	Limit int `json:"limit,omitempty" description:"Maximum number of readings to return, newest first"`
}

type deviceArgs struct {
	DeviceID string `json:"device_id" description:"Sensor device id"`
}

type predictArgs struct {
	HorizonHours int `json:"horizon_hours" description:"How many hours ahead to predict, at most 168"`
}

// Tools builds the IoT agent tool set over the given cache.
func Tools(cache *Cache) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct("get_sensor_data",
			"Return recent emission sensor readings, newest first.",
			recentArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				limit := intArg(args, "limit")
				readings := cache.Recent(limit)
				return map[string]any{"readings": readings, "count": len(readings)}, nil
			}),

		tool.NewFunctionToolFromStruct("get_device_status",
			"Return the latest reading for one sensor device.",
			deviceArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				deviceID, _ := args["device_id"].(string)

				reading, ok := cache.Latest(deviceID)
				if !ok {
					return map[string]any{"found": false, "device_id": deviceID}, nil
				}
				return map[string]any{"found": true, "reading": reading}, nil
			}),

		tool.NewFunctionToolFromStruct("list_devices",
			"List all sensor devices seen so far.",
			struct{}{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				devices := cache.Devices()
				return map[string]any{"devices": devices, "count": len(devices)}, nil
			}),

		tool.NewFunctionToolFromStruct("predict_credit_demand",
			"Extrapolate carbon credit demand over a future horizon from recent sensor readings.",
			predictArgs{},
			func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
				horizonHours := intArg(args, "horizon_hours")
				if horizonHours <= 0 || horizonHours > 168 {
					return nil, tool.NewToolError("predict_credit_demand",
						"horizon_hours must be within (0, 168]", tool.CodeValidation)
				}

				prediction, err := Predict(cache, time.Duration(horizonHours)*time.Hour)
				if errors.Is(err, ErrNotEnoughData) {
					return nil, tool.NewToolError("predict_credit_demand",
						"not enough sensor data to predict, need at least 3 readings over a time span", tool.CodeExecution)
				}
				if err != nil {
					return nil, err
				}

				toolCtx.SetState("last_prediction_credits", prediction.PredictedCredits)
				toolCtx.SetState("last_prediction_confidence", prediction.Confidence)
				return prediction, nil
			}),
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
