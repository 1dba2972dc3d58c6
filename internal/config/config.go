package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Ethereum     EthereumConfig     `mapstructure:"ethereum"`
	Reference    ReferenceConfig    `mapstructure:"reference"`
	Trading      TradingConfig      `mapstructure:"trading"`
	MarketMaking MarketMakingConfig `mapstructure:"market_making"`
	Risk         RiskConfig         `mapstructure:"risk"`
	Volatility   VolatilityConfig   `mapstructure:"volatility"`
	Breaker      BreakerConfig      `mapstructure:"circuit_breaker"`
	Execution    ExecutionConfig    `mapstructure:"execution"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Alerting     AlertingConfig     `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MonitorConfig governs the monitoring loop cadence.
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	MaxTotalErrors  int           `mapstructure:"max_total_errors"`
}

// PoolConfig identifies a tracked Aerodrome pool.
type PoolConfig struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	WETHAddress    string        `mapstructure:"weth_address"`
	USDCAddress    string        `mapstructure:"usdc_address"`
	USDBCAddress   string        `mapstructure:"usdbc_address"`
	Pools          []PoolConfig  `mapstructure:"pools"`
}

// ReferenceConfig captures reference price source connectivity.
type ReferenceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TradingConfig bounds arbitrage detection.
type TradingConfig struct {
	TradeSizeETH         float64 `mapstructure:"trade_size_eth"`
	MinProfitUSD         float64 `mapstructure:"min_profit_usd"`
	GasCostUSD           float64 `mapstructure:"gas_cost_usd"`
	MinDivergencePct     float64 `mapstructure:"min_divergence_pct"`
	MaxPriceDeviationPct float64 `mapstructure:"max_price_deviation_pct"`
	MaxSlippageBps       int     `mapstructure:"max_slippage_bps"`
	EnableSafetyChecks   bool    `mapstructure:"enable_safety_checks"`
}

// MarketMakingConfig parameterises the signal engine.
type MarketMakingConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	BaseSpreadBps        int     `mapstructure:"base_spread_bps"`
	MinSpreadBps         int     `mapstructure:"min_spread_bps"`
	MaxSpreadBps         int     `mapstructure:"max_spread_bps"`
	MaxPositionSizeETH   float64 `mapstructure:"max_position_size_eth"`
	MinTradeSizeETH      float64 `mapstructure:"min_trade_size_eth"`
	InventoryTargetRatio float64 `mapstructure:"inventory_target_ratio"`
	RebalanceThreshold   float64 `mapstructure:"rebalance_threshold"`
}

// RiskConfig exposes the VaR model parameters.
type RiskConfig struct {
	VarDayScaling float64 `mapstructure:"var_day_scaling"`
	VarZScore     float64 `mapstructure:"var_z_score"`
}

// VolatilityConfig tunes the volatility gate.
type VolatilityConfig struct {
	ThresholdPct float64 `mapstructure:"threshold_pct"`
}

// BreakerConfig tunes the global circuit breaker.
type BreakerConfig struct {
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
	Cooldown             time.Duration `mapstructure:"cooldown"`
}

// ExecutionConfig gates the simulated execution path.
type ExecutionConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Network              string        `mapstructure:"network"`
	Timeout              time.Duration `mapstructure:"timeout"`
	SlippageToleranceBps int           `mapstructure:"slippage_tolerance_bps"`
	MaxGasPriceGwei      int           `mapstructure:"max_gas_price_gwei"`
}

// RedisConfig enables the optional signal bus.
type RedisConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Addr               string `mapstructure:"addr"`
	Password           string `mapstructure:"password"`
	DB                 int    `mapstructure:"db"`
	SignalChannel      string `mapstructure:"signal_channel"`
	OpportunityChannel string `mapstructure:"opportunity_channel"`
}

// MetricsConfig enables the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// AlertingConfig defines opportunity alert routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	MinProfitUSD float64        `mapstructure:"min_profit_usd"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert delivery.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARBWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("monitor.interval", "2s")
	v.SetDefault("monitor.health_interval", "30s")
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.advisory_lock_key", int64(0x61657262))
	v.SetDefault("monitor.max_total_errors", 1000)

	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("ethereum.weth_address", "0x4200000000000000000000000000000000000006")
	v.SetDefault("ethereum.usdc_address", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	v.SetDefault("ethereum.usdbc_address", "0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA")
	v.SetDefault("ethereum.pools", []map[string]any{
		{"name": "vAMM-WETH/USDbC", "address": "0xB4885Bc63399BF5518b994c1d0C153334Ee579D0"},
		{"name": "WETH/USDC", "address": "0xcDAC0d6c6C59727a65F871236188350531885C43"},
	})

	v.SetDefault("reference.base_url", "https://api.binance.com")
	v.SetDefault("reference.symbol", "ETHUSDC")
	v.SetDefault("reference.request_timeout", "3s")
	v.SetDefault("reference.user_agent", "arbwatcher/1.0")

	v.SetDefault("trading.trade_size_eth", 0.1)
	v.SetDefault("trading.min_profit_usd", 0.50)
	v.SetDefault("trading.gas_cost_usd", 0.02)
	v.SetDefault("trading.min_divergence_pct", 0.05)
	v.SetDefault("trading.max_price_deviation_pct", 10.0)
	v.SetDefault("trading.max_slippage_bps", 100)
	v.SetDefault("trading.enable_safety_checks", true)

	v.SetDefault("market_making.enabled", true)
	v.SetDefault("market_making.base_spread_bps", 30)
	v.SetDefault("market_making.min_spread_bps", 10)
	v.SetDefault("market_making.max_spread_bps", 200)
	v.SetDefault("market_making.max_position_size_eth", 5.0)
	v.SetDefault("market_making.min_trade_size_eth", 0.01)
	v.SetDefault("market_making.inventory_target_ratio", 0.5)
	v.SetDefault("market_making.rebalance_threshold", 0.1)

	v.SetDefault("risk.var_day_scaling", 4.899)
	v.SetDefault("risk.var_z_score", 1.65)

	v.SetDefault("volatility.threshold_pct", 5.0)

	v.SetDefault("circuit_breaker.max_consecutive_errors", 5)
	v.SetDefault("circuit_breaker.cooldown", "5m")

	v.SetDefault("execution.enabled", false)
	v.SetDefault("execution.network", "base-sepolia")
	v.SetDefault("execution.timeout", "30s")
	v.SetDefault("execution.slippage_tolerance_bps", 50)
	v.SetDefault("execution.max_gas_price_gwei", 50)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.signal_channel", "arbwatcher:signals")
	v.SetDefault("redis.opportunity_channel", "arbwatcher:opportunities")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_profit_usd", 1.0)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Trading.TradeSizeETH < 0.01 || c.Trading.TradeSizeETH > 10.0 {
		return fmt.Errorf("trading.trade_size_eth out of bounds: %v", c.Trading.TradeSizeETH)
	}
	if c.Trading.MinProfitUSD < 0 {
		return fmt.Errorf("trading.min_profit_usd cannot be negative")
	}
	if c.Trading.MinDivergencePct <= 0 {
		return fmt.Errorf("trading.min_divergence_pct must be greater than zero")
	}
	if c.MarketMaking.MinSpreadBps <= 0 || c.MarketMaking.MaxSpreadBps <= c.MarketMaking.MinSpreadBps {
		return fmt.Errorf("market_making spread bounds invalid: [%d, %d]", c.MarketMaking.MinSpreadBps, c.MarketMaking.MaxSpreadBps)
	}
	if c.MarketMaking.BaseSpreadBps < c.MarketMaking.MinSpreadBps || c.MarketMaking.BaseSpreadBps > c.MarketMaking.MaxSpreadBps {
		return fmt.Errorf("market_making.base_spread_bps must lie within spread bounds")
	}
	if c.MarketMaking.InventoryTargetRatio <= 0 || c.MarketMaking.InventoryTargetRatio >= 1 {
		return fmt.Errorf("market_making.inventory_target_ratio must be in (0, 1)")
	}
	if c.MarketMaking.MaxPositionSizeETH <= 0 {
		return fmt.Errorf("market_making.max_position_size_eth must be greater than zero")
	}
	if c.Risk.VarDayScaling <= 0 || c.Risk.VarZScore <= 0 {
		return fmt.Errorf("risk model parameters must be greater than zero")
	}
	if c.Breaker.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("circuit_breaker.max_consecutive_errors must be greater than zero")
	}
	if c.Breaker.Cooldown <= 0 {
		return fmt.Errorf("circuit_breaker.cooldown must be greater than zero")
	}
	if len(c.Ethereum.Pools) == 0 {
		return fmt.Errorf("ethereum.pools must list at least one pool")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}
