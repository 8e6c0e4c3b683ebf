package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Validation ValidationConfig `yaml:"validation"`
	Sizing     SizingConfig     `yaml:"sizing"`
	Detection  DetectionConfig  `yaml:"detection"`
	Gas        GasConfig        `yaml:"gas"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Observer   ObserverConfig   `yaml:"observer"`
	Journal    JournalConfig    `yaml:"journal"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type EngineConfig struct {
	SourceRPC   string `yaml:"source_rpc"`
	TargetRPC   string `yaml:"target_rpc"`
	HomeNetwork string `yaml:"home_network"` // network whose trades need no bridge hop
}

type ValidationConfig struct {
	MaxSlippage   float64 `yaml:"max_slippage"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type SizingConfig struct {
	BaseFraction  float64 `yaml:"base_fraction"`
	DiffScale     float64 `yaml:"diff_scale"`
	MinMultiplier float64 `yaml:"min_multiplier"`
	MaxMultiplier float64 `yaml:"max_multiplier"`
}

type DetectionConfig struct {
	MinProfitPct  float64 `yaml:"min_profit_pct"` // percent of the mid price
	MaxPosition   float64 `yaml:"max_position"`
	GasPriceWei   uint64  `yaml:"gas_price_wei"`   // used when no oracle is available
	BridgeFeeRate float64 `yaml:"bridge_fee_rate"` // fraction of the bridged amount
}

type GasConfig struct {
	BaseGas       uint64  `yaml:"base_gas"`
	CrossChainGas uint64  `yaml:"cross_chain_gas"`
	Multiplier    float64 `yaml:"multiplier"`
	MinGasLimit   uint64  `yaml:"min_gas_limit"`
	MaxGasPrice   uint64  `yaml:"max_gas_price"` // wei
}

type ExecutionConfig struct {
	PollInterval        time.Duration `yaml:"poll_interval"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout"`
	MaxConcurrentFlows  int           `yaml:"max_concurrent_flows"`
}

type ObserverConfig struct {
	MinConfirmations  uint64  `yaml:"min_confirmations"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
	CacheSize         int     `yaml:"cache_size"`
}

type JournalConfig struct {
	DSN string `yaml:"dsn"` // empty disables the journal
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

func (c *Config) Validate() error {
	var errors []string

	if c.Engine.HomeNetwork == "" {
		errors = append(errors, "engine.home_network must be specified")
	}
	if err := c.Validation.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("validation config error: %v", err))
	}
	if err := c.Sizing.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("sizing config error: %v", err))
	}
	if err := c.Detection.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("detection config error: %v", err))
	}
	if err := c.Gas.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("gas config error: %v", err))
	}
	if err := c.Execution.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("execution config error: %v", err))
	}
	if err := c.Observer.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("observer config error: %v", err))
	}
	if c.Metrics.Namespace == "" {
		errors = append(errors, "metrics.namespace must be specified")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (v *ValidationConfig) Validate() error {
	if v.MaxSlippage <= 0 || v.MaxSlippage > 1 {
		return fmt.Errorf("max slippage must be in (0, 1]")
	}
	if v.MinConfidence < 0 || v.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0, 1]")
	}
	return nil
}

func (s *SizingConfig) Validate() error {
	if s.BaseFraction <= 0 || s.BaseFraction > 1 {
		return fmt.Errorf("base fraction must be in (0, 1]")
	}
	if s.DiffScale <= 0 {
		return fmt.Errorf("diff scale must be positive")
	}
	if s.MinMultiplier <= 0 || s.MaxMultiplier < s.MinMultiplier {
		return fmt.Errorf("multiplier bounds must satisfy 0 < min <= max")
	}
	return nil
}

func (d *DetectionConfig) Validate() error {
	if d.MinProfitPct < 0 {
		return fmt.Errorf("min profit percent must not be negative")
	}
	if d.MaxPosition <= 0 {
		return fmt.Errorf("max position must be positive")
	}
	if d.BridgeFeeRate < 0 || d.BridgeFeeRate >= 1 {
		return fmt.Errorf("bridge fee rate must be in [0, 1)")
	}
	return nil
}

func (g *GasConfig) Validate() error {
	if g.BaseGas == 0 {
		return fmt.Errorf("base gas must be positive")
	}
	if g.Multiplier <= 0 {
		return fmt.Errorf("gas multiplier must be positive")
	}
	if g.MinGasLimit == 0 {
		return fmt.Errorf("minimum gas limit must be positive")
	}
	if g.MaxGasPrice == 0 {
		return fmt.Errorf("maximum gas price must be positive")
	}
	return nil
}

func (e *ExecutionConfig) Validate() error {
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if e.ConfirmationTimeout < e.PollInterval {
		return fmt.Errorf("confirmation timeout must be at least one poll interval")
	}
	if e.MaxConcurrentFlows <= 0 {
		return fmt.Errorf("max concurrent flows must be positive")
	}
	return nil
}

func (o *ObserverConfig) Validate() error {
	if o.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if o.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if o.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	return nil
}

// LoadConfig reads a YAML config file on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	if cfgFile != "" {
		data, err := os.ReadFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := LoadEnv(); err != nil {
		return nil, err
	}
	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(cfg *Config, cfgFile string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(cfgFile, data, 0o600)
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			SourceRPC:   "https://polygon-rpc.com",
			TargetRPC:   "https://mainnet.base.org",
			HomeNetwork: "polygon",
		},
		Validation: ValidationConfig{
			MaxSlippage:   0.02,
			MinConfidence: 0.7,
		},
		Sizing: SizingConfig{
			BaseFraction:  0.01,
			DiffScale:     10,
			MinMultiplier: 0.5,
			MaxMultiplier: 2.0,
		},
		Detection: DetectionConfig{
			MinProfitPct:  0.5,
			MaxPosition:   1000000,
			GasPriceWei:   30000000000, // 30 Gwei
			BridgeFeeRate: 0.001,
		},
		Gas: GasConfig{
			BaseGas:       150000,
			CrossChainGas: 300000,
			Multiplier:    1.2,
			MinGasLimit:   21000,
			MaxGasPrice:   500000000000, // 500 Gwei
		},
		Execution: ExecutionConfig{
			PollInterval:        10 * time.Second,
			ConfirmationTimeout: 600 * time.Second,
			MaxConcurrentFlows:  4,
		},
		Observer: ObserverConfig{
			MinConfirmations:  12,
			RequestsPerSecond: 5,
			BurstSize:         10,
			CacheSize:         4096,
		},
		Journal: JournalConfig{
			DSN: "",
		},
		Metrics: MetricsConfig{
			Namespace: "xchainarb",
		},
	}
}
