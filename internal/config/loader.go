package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Simulator ──
	setFloat64(&cfg.Simulator.InitialBalance, "POLYSIM_SIMULATOR_INITIAL_BALANCE")
	setFloat64(&cfg.Simulator.FeeRate, "POLYSIM_SIMULATOR_FEE_RATE")
	setStr(&cfg.Simulator.EventLogPath, "POLYSIM_SIMULATOR_EVENT_LOG_PATH")
	setDuration(&cfg.Simulator.MaxSkew, "POLYSIM_SIMULATOR_MAX_SKEW")
	setInt(&cfg.Simulator.QueueSize, "POLYSIM_SIMULATOR_QUEUE_SIZE")
	setDuration(&cfg.Simulator.DrainTimeout, "POLYSIM_SIMULATOR_DRAIN_TIMEOUT")
	setDuration(&cfg.Simulator.CollectDuration, "POLYSIM_SIMULATOR_COLLECT_DURATION")
	setBool(&cfg.Simulator.ArchiveToS3, "POLYSIM_SIMULATOR_ARCHIVE_TO_S3")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.WsHost, "POLYSIM_POLYMARKET_WS_HOST")
	setStringSlice(&cfg.Polymarket.AssetIDs, "POLYSIM_POLYMARKET_ASSET_IDS")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.WsHost, "POLYSIM_KALSHI_WS_HOST")
	setStringSlice(&cfg.Kalshi.MarketTickers, "POLYSIM_KALSHI_MARKET_TICKERS")
	setStr(&cfg.Kalshi.ApiKeyID, "POLYSIM_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "POLYSIM_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "POLYSIM_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "POLYSIM_KALSHI_KEY_PASSWORD")

	// ── Strategy ──
	setStringSlice(&cfg.Strategy.Active, "POLYSIM_STRATEGY_ACTIVE")
	setFloat64(&cfg.Strategy.CopyTrading.MinTradeSize, "POLYSIM_STRATEGY_COPY_TRADING_MIN_TRADE_SIZE")
	setFloat64(&cfg.Strategy.CopyTrading.CopyRatio, "POLYSIM_STRATEGY_COPY_TRADING_COPY_RATIO")
	setFloat64(&cfg.Strategy.MarketMaking.MinSpread, "POLYSIM_STRATEGY_MARKET_MAKING_MIN_SPREAD")
	setFloat64(&cfg.Strategy.MarketMaking.QuoteSize, "POLYSIM_STRATEGY_MARKET_MAKING_QUOTE_SIZE")
	setFloat64(&cfg.Strategy.AltData.DriftThreshold, "POLYSIM_STRATEGY_ALT_DATA_DRIFT_THRESHOLD")
	setFloat64(&cfg.Strategy.AltData.ConfidenceThreshold, "POLYSIM_STRATEGY_ALT_DATA_CONFIDENCE_THRESHOLD")

	// ── Analytics ──
	setFloat64(&cfg.Analytics.Annualization, "POLYSIM_ANALYTICS_ANNUALIZATION")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POLYSIM_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYSIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYSIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYSIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYSIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYSIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYSIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYSIM_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYSIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYSIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYSIM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYSIM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSIM_REDIS_DB")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYSIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYSIM_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYSIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYSIM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYSIM_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYSIM_MODE")
	setStr(&cfg.LogLevel, "POLYSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
