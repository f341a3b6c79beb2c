package svc

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genetix/internal/config"
	exchangepkg "genetix/pkg/exchange"
	"genetix/pkg/exchange/binance"
	"genetix/pkg/exchange/sim"
	"genetix/pkg/manager"
	"genetix/pkg/market"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	var c config.Config
	c.Env = "test"
	c.ResultsDir = t.TempDir()
	c.TTL = config.CacheTTL{Short: 10, Medium: 60, Long: 300}
	trading := &manager.Config{Symbols: []string{"BTCUSDT", "ETHUSDT"}}
	c.Trading.Value = trading
	mkt := market.Defaults()
	mkt.Stream.Enabled = false
	c.Market.Value = mkt
	c.Exchange.Value = &exchangepkg.Config{
		Default: "binance_testnet",
		Providers: map[string]*exchangepkg.ProviderConfig{
			"binance_testnet": {Type: "binance", APIKey: "k", APISecret: "s", Testnet: true},
			"paper":           {Type: "sim", PaperBalance: 2500},
		},
	}
	return c
}

func TestNewDryRunUsesSimProvider(t *testing.T) {
	c := baseConfig(t)
	c.DryRun = true

	svc, err := New(c)
	require.NoError(t, err)

	sp, ok := svc.Provider.(*sim.Provider)
	require.True(t, ok, "dry run trades against the sim exchange")
	assert.Equal(t, "sim", svc.ProviderName)
	require.NoError(t, sp.SetMarkPrice("BTCUSDT", 100))
	balances, err := sp.GetBalances(context.Background())
	require.NoError(t, err)
	assert.True(t, balances[0].WalletBalance.Equal(decimal.NewFromInt(2500)))

	assert.NotNil(t, svc.MarketClient)
	assert.Nil(t, svc.Stream)
	assert.Nil(t, svc.Store)
	assert.Nil(t, svc.DBConn)
	assert.NotNil(t, svc.Scheduler)
	assert.True(t, svc.Manager.DryRun())
	assert.False(t, svc.Notifier.Enabled())
	assert.Equal(t, c.ResultsDir, svc.Journal.Dir())
	_, published := svc.Board.Latest()
	assert.False(t, published)
}

func TestNewLiveSharesBinanceClient(t *testing.T) {
	c := baseConfig(t)
	c.DryRun = false

	svc, err := New(c)
	require.NoError(t, err)
	bp, ok := svc.Provider.(*binance.Provider)
	require.True(t, ok)
	assert.Same(t, svc.MarketClient, bp.Client())
	assert.Equal(t, "binance_testnet", svc.ProviderName)
	assert.False(t, svc.Manager.DryRun())
}

func TestNewLiveRequiresCredentials(t *testing.T) {
	c := baseConfig(t)
	c.DryRun = false
	c.Exchange.Value.Providers["binance_testnet"].APIKey = ""

	_, err := New(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires api_key")
}

func TestNewEnablesStream(t *testing.T) {
	c := baseConfig(t)
	c.DryRun = true
	c.Market.Value.Stream.Enabled = true

	svc, err := New(c)
	require.NoError(t, err)
	require.NotNil(t, svc.Stream)
	assert.Contains(t, svc.Stream.URL(), "btcusdt@ticker/ethusdt@ticker")
}

func TestNewRequiresTrading(t *testing.T) {
	_, err := New(config.Config{})
	require.Error(t, err)
}
