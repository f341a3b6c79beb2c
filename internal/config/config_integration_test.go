package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "genetix/internal/config"
	_ "genetix/pkg/exchange/binance"
	_ "genetix/pkg/exchange/sim"
)

// TestLoadRepositoryConfig loads etc/genetix.yaml as shipped and builds the
// exchange providers from it.
func TestLoadRepositoryConfig(t *testing.T) {
	t.Setenv("GENETIX_ENV", "test")
	t.Setenv("BINANCE_API_KEY", "integration-key")
	t.Setenv("BINANCE_API_SECRET", "integration-secret")

	path, err := filepath.Abs(filepath.Join("..", "..", "etc", "genetix.yaml"))
	require.NoError(t, err)

	cfg, err := appconfig.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "genetix", cfg.Name)
	assert.True(t, cfg.DryRun)
	require.NotNil(t, cfg.Trading.Value)
	assert.NotEmpty(t, cfg.Trading.Value.Symbols)
	for _, sym := range cfg.Trading.Value.Symbols {
		assert.Greater(t, cfg.Trading.Value.Weight(sym), 0.0, sym)
	}

	require.NotNil(t, cfg.Exchange.Value)
	providers, err := cfg.Exchange.Value.BuildProviders()
	require.NoError(t, err)
	assert.Contains(t, providers, "paper")
	assert.Contains(t, providers, cfg.Exchange.Value.Default)
}
