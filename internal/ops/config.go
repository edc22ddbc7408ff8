package ops

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/router"
	"hft/internal/schema"
	"hft/pkg/exception"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "config/engine.toml"

// Config is the resolved engine configuration.
type Config struct {
	Engine   EngineConfig      `mapstructure:"engine"`
	Gate     router.GateParams `mapstructure:"gate"`
	Risk     schema.RiskLimits `mapstructure:"risk"`
	Universe UniverseConfig    `mapstructure:"universe"`
	Server   ServerConfig      `mapstructure:"server"`
	Models   ModelsConfig      `mapstructure:"models"`
	Venues   VenuesConfig      `mapstructure:"venues"`
	Recorder RecorderConfig    `mapstructure:"recorder"`
	Journal  JournalConfig     `mapstructure:"journal"`
	Alerts   AlertsConfig      `mapstructure:"alerts"`
}

type EngineConfig struct {
	Mode               string   `mapstructure:"mode" validate:"oneof=paper live backtest paused"`
	FeatureWindowSize  int      `mapstructure:"feature_window_size" validate:"min=2"`
	InferenceTimeoutMs int      `mapstructure:"inference_timeout_ms" validate:"gt=0"`
	BatchSize          int      `mapstructure:"batch_size" validate:"gt=0"`
	BatchTimeoutUs     int      `mapstructure:"batch_timeout_us" validate:"gt=0"`
	QueueSize          int      `mapstructure:"queue_size" validate:"gt=0"`
	Symbols            []string `mapstructure:"symbols"`
}

// TradingMode parses Mode. Validation guarantees it is known.
func (c EngineConfig) TradingMode() schema.TradingMode {
	mode, err := schema.ParseTradingMode(c.Mode)
	if err != nil {
		return schema.TradingModePaper
	}
	return mode
}

func (c EngineConfig) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutMs) * time.Millisecond
}

func (c EngineConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutUs) * time.Microsecond
}

type UniverseConfig struct {
	CryptoCount         int     `mapstructure:"crypto_count" validate:"gt=0"`
	EquityCount         int     `mapstructure:"equity_count" validate:"gte=0"`
	TopSelectionCrypto  int     `mapstructure:"top_selection_crypto" validate:"gt=0"`
	TopSelectionEquity  int     `mapstructure:"top_selection_equity" validate:"gte=0"`
	RebuildIntervalMins int     `mapstructure:"rebuild_interval_mins" validate:"gt=0"`
	RefreshIntervalMins int     `mapstructure:"refresh_interval_mins" validate:"gt=0"`
	MinVolumeUSD        float64 `mapstructure:"min_volume_usd" validate:"gte=0"`
	MinLiquidityUSD     float64 `mapstructure:"min_liquidity_usd" validate:"gte=0"`
}

type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr" validate:"required"`
	StreamAddr  string `mapstructure:"stream_addr" validate:"required"`
}

type ModelsConfig struct {
	CryptoDir string `mapstructure:"crypto_dir"`
	EquityDir string `mapstructure:"equity_dir"`
	// RuntimeLib is the onnxruntime shared library; empty uses the platform default.
	RuntimeLib string `mapstructure:"runtime_lib"`
}

type VenuesConfig struct {
	Hyperliquid VenueConfig `mapstructure:"hyperliquid"`
	Binance     VenueConfig `mapstructure:"binance"`
	IBKR        IBKRConfig  `mapstructure:"ibkr"`
}

type VenueConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec" validate:"gte=0"`
	Testnet         bool    `mapstructure:"testnet"`
}

type IBKRConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	GatewayHost string `mapstructure:"gateway_host"`
	GatewayPort int    `mapstructure:"gateway_port" validate:"gte=0,lte=65535"`
}

type RecorderConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Dir          string `mapstructure:"dir" validate:"required_if=Enabled true"`
	SnapshotPath string `mapstructure:"snapshot_path"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

type AlertsConfig struct {
	FCMCredentials string `mapstructure:"fcm_credentials"`
	FCMTopic       string `mapstructure:"fcm_topic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.mode", "paper")
	v.SetDefault("engine.feature_window_size", 100)
	v.SetDefault("engine.inference_timeout_ms", 3)
	v.SetDefault("engine.batch_size", 32)
	v.SetDefault("engine.batch_timeout_us", 500)
	v.SetDefault("engine.queue_size", 4096)
	v.SetDefault("engine.symbols", []string{"BTC", "ETH", "SOL"})

	gate := router.DefaultGateParams()
	v.SetDefault("gate.enabled", gate.Enabled)
	v.SetDefault("gate.min_edge_bps", gate.MinEdgeBps)
	v.SetDefault("gate.min_confidence", gate.MinConfidence)
	v.SetDefault("gate.max_hold_s", gate.MaxHoldS)
	v.SetDefault("gate.max_spread_bps", gate.MaxSpreadBps)

	limits := schema.DefaultRiskLimits()
	v.SetDefault("risk.max_notional_per_symbol", limits.MaxNotionalPerSymbol)
	v.SetDefault("risk.max_total_notional", limits.MaxTotalNotional)
	v.SetDefault("risk.max_leverage", limits.MaxLeverage)
	v.SetDefault("risk.max_loss_per_day", limits.MaxLossPerDay)
	v.SetDefault("risk.max_position_concentration", limits.MaxPositionConcentration)

	v.SetDefault("universe.crypto_count", 20)
	v.SetDefault("universe.equity_count", 10)
	v.SetDefault("universe.top_selection_crypto", 7)
	v.SetDefault("universe.top_selection_equity", 3)
	v.SetDefault("universe.rebuild_interval_mins", 60)
	v.SetDefault("universe.refresh_interval_mins", 5)
	v.SetDefault("universe.min_volume_usd", 1_000_000.0)
	v.SetDefault("universe.min_liquidity_usd", 500_000.0)

	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.stream_addr", ":8081")

	v.SetDefault("models.crypto_dir", "models/crypto")
	v.SetDefault("models.equity_dir", "models/equity")

	v.SetDefault("venues.hyperliquid.enabled", true)
	v.SetDefault("venues.hyperliquid.rate_limit_per_sec", 20.0)
	v.SetDefault("venues.hyperliquid.testnet", false)
	v.SetDefault("venues.binance.enabled", false)
	v.SetDefault("venues.binance.rate_limit_per_sec", 10.0)
	v.SetDefault("venues.binance.testnet", false)
	v.SetDefault("venues.ibkr.enabled", false)
	v.SetDefault("venues.ibkr.gateway_host", "localhost")
	v.SetDefault("venues.ibkr.gateway_port", 5000)

	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.dir", "data/wal")
	v.SetDefault("recorder.snapshot_path", "")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.dsn", "")

	v.SetDefault("alerts.fcm_credentials", "")
	v.SetDefault("alerts.fcm_topic", "hft-alerts")
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error: the defaults describe a paper engine that needs no credentials.
// Every key can be overridden from the environment as HFT_<SECTION>_<KEY>.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrap(exception.ErrConfig, err.Error()).With("path", path)
			}
		} else {
			logs.Warnf("config file %s not found, using defaults", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(exception.ErrConfig, err.Error()).With("path", path)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags of every section.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(exception.ErrConfig, err.Error())
	}
	return nil
}
