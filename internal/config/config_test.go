package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainYAML = `
Name: genetix-test
Host: 127.0.0.1
Port: 18080
Env: %s
ResultsDir: out
TTL:
  Short: 10
  Medium: 60
  Long: 300
Telegram:
  Token: ${GX_TG_TOKEN}
  ChatID: "42"
Exchange:
  File: exchange.yaml
Market:
  File: market.yaml
Trading:
  File: trading.yaml
`

const exchangeYAML = `
default: live
providers:
  live:
    type: binance
    api_key: ${GX_API_KEY}
    api_secret: ${GX_API_SECRET}
    testnet: false
    timeout: ${GX_TIMEOUT}
`

const marketYAML = `
candle_interval: 5m
stream:
  enabled: true
  reconnect_min: 2s
`

const tradingYAML = `
symbols: [BTCUSDT]
portfolio_weights: {BTCUSDT: 0.5}
monitoring:
  tick_interval: 10s
`

func writeConfigDir(t *testing.T, env string, withMarket bool) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"genetix.yaml":  fmt.Sprintf(mainYAML, env),
		"exchange.yaml": exchangeYAML,
		"trading.yaml":  tradingYAML,
	}
	if withMarket {
		files["market.yaml"] = marketYAML
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return filepath.Join(dir, "genetix.yaml")
}

func TestLoadHydratesSections(t *testing.T) {
	t.Setenv("GX_API_KEY", "key")
	t.Setenv("GX_API_SECRET", "secret")
	t.Setenv("GX_TIMEOUT", "7s")
	t.Setenv("GX_TG_TOKEN", "123:abc")
	path := writeConfigDir(t, "dev", true)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "genetix-test", cfg.Name)
	assert.Equal(t, 18080, cfg.Port)
	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "out", cfg.ResultsDir)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "42", cfg.Telegram.ChatID)
	assert.Equal(t, 10, cfg.TTL.Short)
	assert.Equal(t, filepath.Dir(path), cfg.BaseDir())
	assert.Equal(t, path, cfg.MainPath())

	require.NotNil(t, cfg.Exchange.Value)
	live := cfg.Exchange.Value.Providers["live"]
	require.NotNil(t, live)
	assert.Equal(t, "key", live.APIKey)
	assert.Equal(t, 7*time.Second, live.Timeout)
	assert.False(t, live.Testnet, "dev keeps the configured network")

	require.NotNil(t, cfg.Market.Value)
	assert.Equal(t, "5m", cfg.Market.Value.CandleInterval)
	assert.Equal(t, 2*time.Second, cfg.Market.Value.Stream.ReconnectMin)

	require.NotNil(t, cfg.Trading.Value)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Trading.Value.Symbols)
	assert.Equal(t, 10*time.Second, cfg.Trading.Value.Monitoring.TickInterval)

	name, provider, err := cfg.DefaultProvider()
	require.NoError(t, err)
	assert.Equal(t, "live", name)
	assert.Same(t, live, provider)
}

func TestLoadTestEnvForcesTestnet(t *testing.T) {
	t.Setenv("GX_API_KEY", "key")
	t.Setenv("GX_API_SECRET", "secret")
	t.Setenv("GX_TIMEOUT", "5s")
	path := writeConfigDir(t, "test", false)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsTestEnv())
	assert.True(t, cfg.Exchange.Value.Providers["live"].Testnet)

	// market section falls back to defaults when not configured
	require.NotNil(t, cfg.Market.Value)
	assert.Equal(t, "1m", cfg.Market.Value.CandleInterval)
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	t.Setenv("GX_API_KEY", "key")
	t.Setenv("GX_API_SECRET", "secret")
	t.Setenv("GX_TIMEOUT", "5s")
	_, err := Load(writeConfigDir(t, "staging", true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env must be one of")
}

func TestLoadRequiresTradingSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genetix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Name: x\nHost: 127.0.0.1\nPort: 1\nTTL: {Short: 1, Medium: 1, Long: 1}\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading section is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{ResultsDir: "results", TTL: CacheTTL{Short: 10, Medium: 60, Long: 300}}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "test", cfg.Env)

	cases := map[string]func(*Config){
		"ttl.short":  func(c *Config) { c.TTL.Short = 0 },
		"ttl.medium": func(c *Config) { c.TTL.Medium = -1 },
		"ttl.long":   func(c *Config) { c.TTL.Long = 0 },
		"resultsDir": func(c *Config) { c.ResultsDir = " " },
		"env":        func(c *Config) { c.Env = "qa" },
	}
	for want, mutate := range cases {
		cfg := valid()
		mutate(cfg)
		err := cfg.Validate()
		require.Error(t, err, want)
		assert.Contains(t, err.Error(), want)
	}
}

func TestDefaultProviderRequiresExchange(t *testing.T) {
	_, _, err := (&Config{}).DefaultProvider()
	require.Error(t, err)
}
