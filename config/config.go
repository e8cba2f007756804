// Package config loads agent process configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration of one agent process.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Model       ModelConfig       `yaml:"model"`
	Agent       AgentConfig       `yaml:"agent"`
	Peers       []string          `yaml:"peers"`
	Logging     LoggingConfig     `yaml:"logging"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Session     SessionConfig     `yaml:"session"`
	IoT         IoTConfig         `yaml:"iot"`
	Hedera      HederaConfig      `yaml:"hedera"`
	EVM         EVMConfig         `yaml:"evm"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// ModelConfig selects and configures the oracle.
type ModelConfig struct {
	// Provider is "openai", "anthropic" or "mock".
	Provider string `yaml:"provider"`
	// Name of the model, e.g. "gpt-4o" or a Claude model id.
	Name string `yaml:"name"`
	// APIKey overrides OPENAI_API_KEY / ANTHROPIC_API_KEY.
	APIKey string `yaml:"api_key"`
	// Timeout bounds one oracle invocation.
	Timeout time.Duration `yaml:"timeout"`
	// MaxCalls bounds oracle invocations per turn.
	MaxCalls int `yaml:"max_calls"`
}

// AgentConfig describes the discovery card of this process.
type AgentConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	// URL peers use to reach this agent. Defaults to http://localhost<addr>.
	URL string `yaml:"url"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MarketplaceConfig configures the offer inventory backend.
type MarketplaceConfig struct {
	// MySQLDSN enables the MySQL store; empty means in-memory.
	MySQLDSN string `yaml:"mysql_dsn"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	// RedisAddr enables the Redis store; empty means in-memory.
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// IoTConfig configures sensor ingestion.
type IoTConfig struct {
	MQTTBroker string `yaml:"mqtt_broker"`
	Topic      string `yaml:"topic"`
	CacheSize  int    `yaml:"cache_size"`
}

// HederaConfig configures the Hedera payment provider.
type HederaConfig struct {
	OperatorID  string `yaml:"operator_id"`
	OperatorKey string `yaml:"operator_key"`
	Testnet     bool   `yaml:"testnet"`
}

// EVMConfig configures the EVM payment providers.
type EVMConfig struct {
	EthereumRPC string `yaml:"ethereum_rpc"`
	PolygonRPC  string `yaml:"polygon_rpc"`
	PrivateKey  string `yaml:"private_key"`
}

// WorkflowConfig holds the trading business rules.
type WorkflowConfig struct {
	// AutoApproveLimit in USD below which prebookings pay out immediately.
	AutoApproveLimit float64 `yaml:"auto_approve_limit"`
	// DiscountRate applied to prebooked credits (0.05 = 5%).
	DiscountRate float64 `yaml:"discount_rate"`
	// MinConfidence a prediction needs to be prebookable.
	MinConfidence float64 `yaml:"min_confidence"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", HandlerTimeout: 120 * time.Second},
		Model:  ModelConfig{Provider: "openai", Name: "gpt-4o", Timeout: 60 * time.Second, MaxCalls: 10},
		Agent:  AgentConfig{Version: "0.1.0"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{TTL: 24 * time.Hour},
		IoT:     IoTConfig{Topic: "carbon_credit/sensor_data", CacheSize: 100},
		Hedera:  HederaConfig{Testnet: true},
		Workflow: WorkflowConfig{
			AutoApproveLimit: 300,
			DiscountRate:     0.05,
			MinConfidence:    0.7,
		},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CARBONMESH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case "openai":
			c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if v := os.Getenv("CARBONMESH_MYSQL_DSN"); v != "" {
		c.Marketplace.MySQLDSN = v
	}
	if v := os.Getenv("CARBONMESH_REDIS_ADDR"); v != "" {
		c.Session.RedisAddr = v
	}
	if v := os.Getenv("CARBONMESH_MQTT_BROKER"); v != "" {
		c.IoT.MQTTBroker = v
	}
	if v := os.Getenv("HEDERA_OPERATOR_ID"); v != "" {
		c.Hedera.OperatorID = v
	}
	if v := os.Getenv("HEDERA_OPERATOR_KEY"); v != "" {
		c.Hedera.OperatorKey = v
	}
	if v := os.Getenv("EVM_PRIVATE_KEY"); v != "" {
		c.EVM.PrivateKey = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must not be empty")
	}
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("config: unknown model.provider %q", c.Model.Provider)
	}
	if c.Workflow.DiscountRate < 0 || c.Workflow.DiscountRate >= 1 {
		return fmt.Errorf("config: workflow.discount_rate must be in [0, 1)")
	}
	if c.Workflow.MinConfidence < 0 || c.Workflow.MinConfidence > 1 {
		return fmt.Errorf("config: workflow.min_confidence must be in [0, 1]")
	}
	if c.Workflow.AutoApproveLimit < 0 {
		return fmt.Errorf("config: workflow.auto_approve_limit must not be negative")
	}
	return nil
}

// AgentURL returns the externally reachable URL of this agent.
func (c *Config) AgentURL() string {
	if c.Agent.URL != "" {
		return c.Agent.URL
	}
	return "http://localhost" + c.Server.Addr
}
