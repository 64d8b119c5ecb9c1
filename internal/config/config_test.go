package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValidHistorical(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ModeHistorical, cfg.Mode)
	assert.Equal(t, 10000.0, cfg.Simulator.InitialBalance)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polysim.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "paper"
log_level = "debug"

[simulator]
initial_balance = 5000.0
fee_rate = 0.01
max_skew = "250ms"

[polymarket]
asset_ids = ["0xabc"]

[strategy]
active = ["copy_trading", "market_making"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModePaper, cfg.Mode)
	assert.Equal(t, 5000.0, cfg.Simulator.InitialBalance)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulator.MaxSkew.Duration)
	assert.Equal(t, []string{"copy_trading", "market_making"}, cfg.Strategy.Active)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1024, cfg.Simulator.QueueSize)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("POLYSIM_MODE", "collect")
	t.Setenv("POLYSIM_SIMULATOR_INITIAL_BALANCE", "2500")
	t.Setenv("POLYSIM_KALSHI_MARKET_TICKERS", "KXBTC-26DEC31, KXETH-26DEC31")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeCollect, cfg.Mode)
	assert.Equal(t, 2500.0, cfg.Simulator.InitialBalance)
	assert.Equal(t, []string{"KXBTC-26DEC31", "KXETH-26DEC31"}, cfg.Kalshi.MarketTickers)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Simulator.InitialBalance = -1
	cfg.Simulator.FeeRate = 2
	cfg.Strategy.Active = []string{"momentum_9000"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
	assert.Contains(t, err.Error(), "initial_balance")
	assert.Contains(t, err.Error(), "fee_rate")
	assert.Contains(t, err.Error(), "momentum_9000")
}

func TestPaperModeRequiresMarkets(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = ModePaper

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asset_ids")
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Notify.TelegramToken = "tg-token"

	red := cfg.Redacted()
	assert.Equal(t, redactedPlaceholder, red.Postgres.Password)
	assert.Equal(t, redactedPlaceholder, red.S3.SecretKey)
	assert.Equal(t, redactedPlaceholder, red.Notify.TelegramToken)
	// The original is untouched.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)
}
