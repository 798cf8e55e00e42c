// Package config loads and validates the swapbridge configuration.
package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/crosslane/swapbridge/pkg/policy"
)

// Config represents the relayer process configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Escrow     EscrowConfig     `mapstructure:"escrow"`
	Target     TargetConfig     `mapstructure:"target"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" default:"0.0.0.0"`
	Port int    `mapstructure:"port" default:"8080" validate:"gt=0,lte=65535"`
}

// DatabaseConfig contains PostgreSQL connection settings. When
// disabled, the process runs on the in-memory store.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"swapbridge"`
	SSLMode  string `mapstructure:"ssl_mode" default:"disable"`
}

// EscrowConfig contains escrow ledger settings.
type EscrowConfig struct {
	ChainID      string   `mapstructure:"chain_id" default:"escrow-local" validate:"required"`
	Owner        string   `mapstructure:"owner" validate:"required"`
	FeeCollector string   `mapstructure:"fee_collector"`
	Resolvers    []string `mapstructure:"resolvers"`
}

// TargetConfig contains target-ledger gateway settings.
type TargetConfig struct {
	ChainID        string        `mapstructure:"chain_id" default:"target-local" validate:"required"`
	GatewayURL     string        `mapstructure:"gateway_url" validate:"required,url"`
	Destination    string        `mapstructure:"destination" validate:"required"`
	GasBudget      uint64        `mapstructure:"gas_budget" default:"300000"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" default:"30s"`
}

// BridgeConfig contains the fee and limit policy applied at order
// creation. Amounts are wei-denominated decimal strings.
type BridgeConfig struct {
	FeeBasisPoints    uint32        `mapstructure:"fee_basis_points" validate:"lt=10000"`
	MinAmount         string        `mapstructure:"min_amount" default:"1"`
	MaxAmount         string        `mapstructure:"max_amount" default:"0"`
	MinTimelockOffset time.Duration `mapstructure:"min_timelock_offset" default:"1h"`
	MaxTimelockOffset time.Duration `mapstructure:"max_timelock_offset" default:"720h"`
}

// RelayConfig contains relay pipeline settings.
type RelayConfig struct {
	Workers          int           `mapstructure:"workers" default:"8" validate:"gt=0"`
	MaxAttempts      int           `mapstructure:"max_attempts" default:"5" validate:"gt=0"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay" default:"2s"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay" default:"2m"`
	DeliveryDeadline time.Duration `mapstructure:"delivery_deadline" default:"10m"`
	// ReconcileInterval is how often the relayer scans for deliveries
	// stuck in pending.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" default:"1m"`
}

// MonitoringConfig contains metrics settings.
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled" default:"true"`
	MetricsPort int  `mapstructure:"metrics_port" default:"9090"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
}

// Load reads configuration from the given file and the environment,
// fills defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Limits converts the bridge section into the policy snapshot the
// escrow ledger enforces. A max amount of "0" means unbounded.
func (c *BridgeConfig) Limits() (policy.Limits, error) {
	minAmount, ok := new(big.Int).SetString(c.MinAmount, 10)
	if !ok {
		return policy.Limits{}, fmt.Errorf("invalid min_amount %q", c.MinAmount)
	}
	maxAmount, ok := new(big.Int).SetString(c.MaxAmount, 10)
	if !ok {
		return policy.Limits{}, fmt.Errorf("invalid max_amount %q", c.MaxAmount)
	}
	return policy.Limits{
		FeeBasisPoints:    c.FeeBasisPoints,
		MinAmount:         minAmount,
		MaxAmount:         maxAmount,
		MinTimelockOffset: c.MinTimelockOffset,
		MaxTimelockOffset: c.MaxTimelockOffset,
	}, nil
}
