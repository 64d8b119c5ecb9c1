// Package config defines the top-level configuration for the simulator and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Run modes.
const (
	ModeHistorical = "historical"
	ModePaper      = "paper"
	ModeCollect    = "collect"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYSIM_* environment
// variables.
type Config struct {
	Simulator  SimulatorConfig  `toml:"simulator"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Analytics  AnalyticsConfig  `toml:"analytics"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SimulatorConfig holds the execution-simulation parameters.
type SimulatorConfig struct {
	// InitialBalance is each strategy's starting cash in dollars.
	InitialBalance float64 `toml:"initial_balance"`
	// FeeRate is the proportional per-fill fee (0.01 = 1%).
	FeeRate float64 `toml:"fee_rate"`
	// EventLogPath is the historical log to replay, or the collect-mode
	// output path.
	EventLogPath string `toml:"event_log_path"`
	// MaxSkew is how long the live merger waits for a quiet feed.
	MaxSkew duration `toml:"max_skew"`
	// QueueSize bounds each live feed's event queue.
	QueueSize int `toml:"queue_size"`
	// DrainTimeout bounds post-cancellation draining in live mode.
	DrainTimeout duration `toml:"drain_timeout"`
	// CollectDuration stops collect mode after this long (0 runs until
	// interrupted).
	CollectDuration duration `toml:"collect_duration"`
	// ArchiveToS3 also uploads collect-mode logs and run reports.
	ArchiveToS3 bool `toml:"archive_to_s3"`
}

// PolymarketConfig holds the Polymarket market-data endpoint and markets.
type PolymarketConfig struct {
	WsHost   string   `toml:"ws_host"`
	AssetIDs []string `toml:"asset_ids"`
}

// KalshiConfig holds the Kalshi market-data endpoint, markets, and API key
// material for the authenticated WebSocket.
type KalshiConfig struct {
	WsHost            string   `toml:"ws_host"`
	MarketTickers     []string `toml:"market_tickers"`
	ApiKeyID          string   `toml:"api_key_id"`
	RsaPrivateKeyPath string   `toml:"rsa_private_key_path"`
	EncryptedKeyPath  string   `toml:"encrypted_key_path"`
	KeyPassword       string   `toml:"key_password"`
}

// StrategyConfig selects and tunes the registered strategies.
type StrategyConfig struct {
	// Active lists the strategies to register, in dispatch order.
	Active []string `toml:"active"`

	CopyTrading  CopyTradingConfig  `toml:"copy_trading"`
	MarketMaking MarketMakingConfig `toml:"market_making"`
	AltData      AltDataConfig      `toml:"alt_data"`
}

// CopyTradingConfig holds config for the copy_trading strategy.
type CopyTradingConfig struct {
	MinTradeSize float64 `toml:"min_trade_size"`
	CopyRatio    float64 `toml:"copy_ratio"`
	MaxOrderSize float64 `toml:"max_order_size"`
}

// MarketMakingConfig holds config for the market_making strategy.
type MarketMakingConfig struct {
	MinSpread    float64 `toml:"min_spread"`
	QuoteSize    float64 `toml:"quote_size"`
	MaxInventory float64 `toml:"max_inventory"`
	Improvement  float64 `toml:"improvement"`
}

// AltDataConfig holds config for the alt_data strategy.
type AltDataConfig struct {
	Window              int     `toml:"window"`
	DriftThreshold      float64 `toml:"drift_threshold"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	OrderSize           float64 `toml:"order_size"`
}

// AnalyticsConfig tunes the performance engine.
type AnalyticsConfig struct {
	// Annualization scales the Sharpe ratio; 0 leaves it per-trade.
	Annualization float64 `toml:"annualization"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// duration wraps time.Duration for TOML decoding from strings like "500ms".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Simulator: SimulatorConfig{
			InitialBalance: 10000,
			FeeRate:        0,
			EventLogPath:   "data/events.json",
			MaxSkew:        duration{500 * time.Millisecond},
			QueueSize:      1024,
			DrainTimeout:   duration{5 * time.Second},
		},
		Polymarket: PolymarketConfig{
			WsHost: "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Kalshi: KalshiConfig{
			WsHost: "wss://api.elections.kalshi.com/trade-api/ws/v2",
		},
		Strategy: StrategyConfig{
			Active: []string{"market_making"},
		},
		Postgres: PostgresConfig{
			SSLMode:       "disable",
			PoolMaxConns:  4,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Mode:     ModeHistorical,
		LogLevel: "info",
	}
}

// Validate checks the configuration, collecting every problem so the
// operator sees them all at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Mode {
	case ModeHistorical, ModePaper, ModeCollect:
	default:
		problems = append(problems, fmt.Sprintf("mode %q is not one of historical, paper, collect", c.Mode))
	}

	if c.Simulator.InitialBalance <= 0 {
		problems = append(problems, "simulator.initial_balance must be positive")
	}
	if c.Simulator.FeeRate < 0 || c.Simulator.FeeRate >= 1 {
		problems = append(problems, "simulator.fee_rate must be in [0, 1)")
	}
	if c.Simulator.QueueSize < 0 {
		problems = append(problems, "simulator.queue_size must not be negative")
	}

	if c.Mode == ModeHistorical && c.Simulator.EventLogPath == "" {
		problems = append(problems, "simulator.event_log_path is required in historical mode")
	}
	if c.Mode != ModeHistorical {
		if len(c.Polymarket.AssetIDs) == 0 && len(c.Kalshi.MarketTickers) == 0 {
			problems = append(problems, "at least one of polymarket.asset_ids or kalshi.market_tickers is required in live modes")
		}
	}

	if c.Mode != ModeCollect && len(c.Strategy.Active) == 0 {
		problems = append(problems, "strategy.active must name at least one strategy")
	}
	for _, name := range c.Strategy.Active {
		switch name {
		case "copy_trading", "market_making", "alt_data":
		default:
			problems = append(problems, fmt.Sprintf("strategy.active contains unknown strategy %q", name))
		}
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		problems = append(problems, "postgres.dsn or postgres.host is required when postgres.enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "redis.addr is required when redis.enabled")
	}
	if c.Simulator.ArchiveToS3 && c.S3.Bucket == "" {
		problems = append(problems, "s3.bucket is required when simulator.archive_to_s3")
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
