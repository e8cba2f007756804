// The iot-agent binary ingests emission sensor readings over MQTT and
// exposes them, together with credit demand predictions, over the task
// protocol.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/hupe1980/carbonmesh/a2a"
	"github.com/hupe1980/carbonmesh/agent"
	"github.com/hupe1980/carbonmesh/config"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/internal/boot"
	"github.com/hupe1980/carbonmesh/iot"
	"github.com/hupe1980/carbonmesh/logging"
)

const instructions = `You are an IoT specialist monitoring emission sensors.

You report recent sensor readings, device statuses and extrapolated carbon
credit demand predictions. When asked for a prediction, include the
confidence and the number of readings it is based on.`

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(nil).Error("config load failed", "error", err.Error())
		os.Exit(1)
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "iot_agent"
	}

	logger := boot.Logger(cfg, "iot-agent")

	cache := iot.NewCache(cfg.IoT.CacheSize)

	if cfg.IoT.MQTTBroker != "" {
		ingestor, err := iot.NewIngestor(cfg.IoT.MQTTBroker, cache, func(o *iot.IngestorOptions) {
			if cfg.IoT.Topic != "" {
				o.Topic = cfg.IoT.Topic
			}
			o.Logger = logger
		})
		if err != nil {
			logger.Error("mqtt setup failed", "error", err.Error())
			os.Exit(1)
		}
		defer ingestor.Close()
	} else {
		logger.Warn("no mqtt broker configured, sensor cache stays empty")
	}

	m, err := boot.Model(cfg)
	if err != nil {
		logger.Error("model setup failed", "error", err.Error())
		os.Exit(1)
	}

	ag := agent.New(cfg.Agent.Name, instructions, m, func(o *agent.Options) {
		o.Tools = iot.Tools(cache)
		o.Sessions = boot.Sessions(cfg)
		o.ModelTimeout = cfg.Model.Timeout
		o.MaxModelCalls = cfg.Model.MaxCalls
		o.Logger = logger
	})

	card := boot.Card(cfg, []core.AgentSkill{
		{ID: "readings", Name: "Sensor readings", Description: "Recent emission readings and device statuses", Examples: []string{"What are the latest sensor readings?"}},
		{ID: "predict", Name: "Demand prediction", Description: "Extrapolate credit demand from emission trends"},
	})

	handler := a2a.HandlerFunc(func(ctx context.Context, task *core.Task, userText string) (string, error) {
		return ag.Run(ctx, task.SessionID, userText)
	})

	srv := a2a.NewServer(card, a2a.NewTaskManager(logger), handler, func(o *a2a.ServerOptions) {
		o.HandlerTimeout = cfg.Server.HandlerTimeout
		o.Logger = logger
	})
	if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
}
