// Package boot wires shared process infrastructure (logger, oracle model,
// session store, discovery card) from configuration. Each agent binary uses
// it so the fleet behaves uniformly.
package boot

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/carbonmesh/config"
	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/logging"
	"github.com/hupe1980/carbonmesh/model"
	"github.com/hupe1980/carbonmesh/model/anthropic"
	"github.com/hupe1980/carbonmesh/model/openai"
	"github.com/hupe1980/carbonmesh/session"
)

// Logger builds the process logger from config.
func Logger(cfg config.Config, component string) logging.Logger {
	return logging.New(&logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Component: component,
	})
}

// Model builds the oracle from config.
func Model(cfg config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "openai":
		var clientOpts []openaiopt.RequestOption
		if cfg.Model.APIKey != "" {
			clientOpts = append(clientOpts, openaiopt.WithAPIKey(cfg.Model.APIKey))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openai.NewModelFromClient(&client, func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "mock":
		return model.NewMockModel("mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

// Sessions builds the session store from config: Redis when configured,
// in-memory otherwise.
func Sessions(cfg config.Config) core.SessionStore {
	if cfg.Session.RedisAddr == "" {
		return session.NewInMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Session.RedisAddr,
		Password: cfg.Session.RedisPassword,
		DB:       cfg.Session.RedisDB,
	})
	return session.NewRedisStore(client, func(o *session.RedisOptions) {
		if cfg.Session.TTL > 0 {
			o.TTL = cfg.Session.TTL
		}
	})
}

// Card builds this process's discovery card from config.
func Card(cfg config.Config, skills []core.AgentSkill) core.AgentCard {
	return core.AgentCard{
		Name:        cfg.Agent.Name,
		Description: cfg.Agent.Description,
		URL:         cfg.AgentURL(),
		Version:     cfg.Agent.Version,
		Skills:      skills,
	}
}
