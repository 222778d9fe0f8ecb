package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/genome-consensus-bot/internal/champion"
	engerrors "github.com/ducminhle1904/genome-consensus-bot/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, cfg.Engine.Symbols)
	assert.Equal(t, 5*time.Minute, cfg.Engine.CycleInterval)
	assert.Equal(t, 30, cfg.Engine.PoolSize)
	assert.Equal(t, 3, cfg.Population.Groups)
	assert.Equal(t, 0.1, cfg.Population.Mutation.Probability)
	assert.True(t, cfg.Population.Migration)
	assert.Equal(t, 2.0, cfg.Consensus.ZThreshold)
	assert.Equal(t, 0.9, cfg.Consensus.Reliability.Max)
	assert.Equal(t, 0.05, cfg.Risk.CircuitBreakerThreshold)
	assert.Equal(t, 60.0, cfg.Exposure.MaxTotalExposure)
	assert.Equal(t, 0.85, cfg.Exposure.Correlations["BTCUSDT"]["ETHUSDT"])
	assert.Len(t, cfg.Environments, 2)
	assert.Equal(t, "paper", cfg.Exchange.Name)
	assert.Equal(t, 3, cfg.Exchange.Retry.MaxRetries)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  environment: live
  symbols: [XRPUSDT]
  cycle_interval: 1m
population:
  agents_per_group: 4
  migration: false
environments:
  - name: live
    network: mainnet
    leverage_cap: 5
exchange:
  name: bybit
  testnet: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"XRPUSDT"}, cfg.Engine.Symbols)
	assert.Equal(t, time.Minute, cfg.Engine.CycleInterval)
	assert.Equal(t, 6*time.Hour, cfg.Engine.BreedingInterval)
	assert.Equal(t, 4, cfg.Population.AgentsPerGroup)
	assert.False(t, cfg.Population.Migration)

	require.Len(t, cfg.Environments, 1)
	env := cfg.Environments[0]
	assert.Equal(t, champion.NetworkMainnet, env.Network)
	assert.Equal(t, 5, env.LeverageCap)
	assert.Equal(t, 5, env.TopK)
	assert.Equal(t, 0.6, env.MinWinRate)
	assert.Equal(t, "futures", env.TradingType)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKey, "key")
	t.Setenv(EnvAPISecret, "secret")
	t.Setenv(EnvRedisAddr, "redis:6379")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvSymbols, "btcusdt, ethusdt")

	path := writeConfig(t, `
exchange:
  name: bybit
  testnet: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.Exchange.APIKey)
	assert.Equal(t, "secret", cfg.Exchange.APISecret)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Engine.Symbols)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad exchange", "exchange:\n  name: kraken\n"},
		{"pool size", "engine:\n  pool_size: 12\n"},
		{"min above max risk", "risk:\n  min_risk_percent: 6\n  max_risk_percent: 5\n"},
		{"unknown environment", "engine:\n  environment: staging\n"},
		{"duplicate environment", "environments:\n  - name: paper\n  - name: paper\n"},
		{"mainnet without keys", "exchange:\n  name: bybit\n  testnet: false\n"},
		{"bad bracket op", "risk:\n  brackets:\n    drawdown:\n      - {op: eq, threshold: 0.1, multiplier: 0.5}\n"},
		{"not yaml", "engine: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPIKey, "")
			t.Setenv(EnvAPISecret, "")
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, engerrors.IsCategory(err, engerrors.ErrorCategoryConfiguration))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "genome-bot.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Archive.Backend)
	assert.Len(t, cfg.Risk.Brackets["drawdown"], 2)
}
