// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and RADAR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"solana-token-radar/internal/discovery"
	"solana-token-radar/internal/fetch"
	"solana-token-radar/internal/gecko"
	"solana-token-radar/internal/holders"
	"solana-token-radar/internal/honeypot"
	"solana-token-radar/internal/jupiter"
	"solana-token-radar/internal/lp"
	"solana-token-radar/internal/refresh"
	"solana-token-radar/internal/rugcheck"
	"solana-token-radar/internal/scheduler"
	"solana-token-radar/internal/solana"
)

// EnvPrefix prefixes every environment override, e.g. RADAR_STORAGE_USE_MEMORY.
const EnvPrefix = "RADAR"

// Config is the full service configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Criteria  CriteriaConfig  `mapstructure:"criteria"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level     string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format    string `mapstructure:"format" validate:"oneof=console json"`
	File      string `mapstructure:"file"` // optional, rotated JSON log
	MaxSizeMB int    `mapstructure:"max_size_mb" validate:"gte=0"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	Debug           bool          `mapstructure:"debug"`
}

// StorageConfig selects the store backends.
type StorageConfig struct {
	UseMemory     bool   `mapstructure:"use_memory"`
	PostgresDSN   string `mapstructure:"postgres_dsn" validate:"required_if=UseMemory false"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"` // optional signal history
}

// UpstreamConfig configures third-party endpoints and the shared retry policy.
type UpstreamConfig struct {
	RPCEndpoint      string        `mapstructure:"rpc_endpoint" validate:"required,url"`
	RPCInterval      time.Duration `mapstructure:"rpc_interval" validate:"gte=0"`
	GeckoBaseURL     string        `mapstructure:"gecko_base_url" validate:"required,url"`
	GeckoInterval    time.Duration `mapstructure:"gecko_interval" validate:"gte=0"`
	JupiterBaseURL   string        `mapstructure:"jupiter_base_url" validate:"required,url"`
	JupiterInterval  time.Duration `mapstructure:"jupiter_interval" validate:"gte=0"`
	RugcheckBaseURL  string        `mapstructure:"rugcheck_base_url" validate:"required,url"`
	RugcheckInterval time.Duration `mapstructure:"rugcheck_interval" validate:"gte=0"`
	PoolInfoTTL      time.Duration `mapstructure:"pool_info_ttl" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay        time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay         time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
}

// RetryPolicy builds the shared retry policy from the configured bounds.
func (u UpstreamConfig) RetryPolicy() fetch.RetryPolicy {
	p := fetch.DefaultRetryPolicy().WithMaxAttempts(u.MaxAttempts)
	p.BaseDelay = u.BaseDelay
	p.MaxDelay = u.MaxDelay
	return p
}

// AnalysisConfig holds analyzer parameters.
type AnalysisConfig struct {
	TopHolderCount      int     `mapstructure:"top_holder_count" validate:"gte=1,lte=20"`
	DumpThreshold       float64 `mapstructure:"dump_threshold" validate:"gt=0,lte=1"`
	LPProbeAmount       uint64  `mapstructure:"lp_probe_amount" validate:"gt=0"`
	LPSlippageBps       int     `mapstructure:"lp_slippage_bps" validate:"gt=0"`
	LPConcurrency       int     `mapstructure:"lp_concurrency" validate:"gte=1"`
	HoneypotNotional    uint64  `mapstructure:"honeypot_notional" validate:"gt=0"`
	HoneypotSlippageBps int     `mapstructure:"honeypot_slippage_bps" validate:"gt=0"`
}

// CriteriaConfig holds the discovery and keep thresholds.
type CriteriaConfig struct {
	Discovery discovery.Criteria     `mapstructure:"discovery"`
	Keep      discovery.KeepCriteria `mapstructure:"keep"`
}

// SchedulerConfig holds pass cadence.
type SchedulerConfig struct {
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval" validate:"gt=0"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval" validate:"gt=0"`
	StaleAfter        time.Duration `mapstructure:"stale_after" validate:"gt=0"`
	Delay             time.Duration `mapstructure:"delay" validate:"gte=0"` // between refreshed tokens
	Autostart         bool          `mapstructure:"autostart"`
}

var defaults = map[string]interface{}{
	"log.level":       "info",
	"log.format":      "console",
	"log.file":        "",
	"log.max_size_mb": 100,

	"http.addr":             ":8000",
	"http.shutdown_timeout": 10 * time.Second,
	"http.debug":            false,

	"storage.use_memory":     false,
	"storage.postgres_dsn":   "",
	"storage.clickhouse_dsn": "",

	"upstream.rpc_endpoint":      "https://api.mainnet-beta.solana.com",
	"upstream.rpc_interval":      100 * time.Millisecond,
	"upstream.gecko_base_url":    gecko.DefaultBaseURL,
	"upstream.gecko_interval":    gecko.DefaultInterval,
	"upstream.jupiter_base_url":  jupiter.DefaultBaseURL,
	"upstream.jupiter_interval":  jupiter.DefaultInterval,
	"upstream.rugcheck_base_url": rugcheck.DefaultBaseURL,
	"upstream.rugcheck_interval": rugcheck.DefaultInterval,
	"upstream.pool_info_ttl":     gecko.DefaultPoolInfoTTL,
	"upstream.timeout":           solana.DefaultTimeout,
	"upstream.max_attempts":      fetch.DefaultMaxAttempts,
	"upstream.base_delay":        fetch.DefaultBaseDelay,
	"upstream.max_delay":         fetch.DefaultMaxDelay,

	"analysis.top_holder_count":      holders.DefaultTopHolderCount,
	"analysis.dump_threshold":        holders.DefaultDumpThreshold,
	"analysis.lp_probe_amount":       lp.DefaultProbeAmount,
	"analysis.lp_slippage_bps":       lp.DefaultSlippageBps,
	"analysis.lp_concurrency":        lp.DefaultConcurrency,
	"analysis.honeypot_notional":     honeypot.DefaultNotional,
	"analysis.honeypot_slippage_bps": honeypot.DefaultSlippageBps,

	"scheduler.discovery_interval": scheduler.DefaultDiscoveryInterval,
	"scheduler.refresh_interval":   scheduler.DefaultRefreshInterval,
	"scheduler.stale_after":        refresh.DefaultStaleAfter,
	"scheduler.delay":              refresh.DefaultDelay,
	"scheduler.autostart":          true,
}

func init() {
	c := discovery.DefaultCriteria()
	defaults["criteria.discovery.min_fdv"] = c.MinFDV
	defaults["criteria.discovery.max_fdv"] = c.MaxFDV
	defaults["criteria.discovery.min_reserve"] = c.MinReserve
	defaults["criteria.discovery.min_transactions"] = c.MinTransactions
	defaults["criteria.discovery.min_volume"] = c.MinVolume
	defaults["criteria.discovery.min_fdv_reserve_ratio"] = c.MinFDVReserveRatio

	k := discovery.DefaultKeepCriteria()
	defaults["criteria.keep.min_fdv"] = k.MinFDV
	defaults["criteria.keep.max_fdv"] = k.MaxFDV
	defaults["criteria.keep.min_reserve"] = k.MinReserve
	defaults["criteria.keep.min_volume"] = k.MinVolume
}

// Load reads configuration. An empty path searches for config.yaml in the
// working directory and ./configs; a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	d := c.Criteria.Discovery
	if d.MinFDV > d.MaxFDV {
		return fmt.Errorf("invalid config: criteria.discovery.min_fdv %.0f exceeds max_fdv %.0f", d.MinFDV, d.MaxFDV)
	}
	k := c.Criteria.Keep
	if k.MinFDV > k.MaxFDV {
		return fmt.Errorf("invalid config: criteria.keep.min_fdv %.0f exceeds max_fdv %.0f", k.MinFDV, k.MaxFDV)
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}
