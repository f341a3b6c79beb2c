package binance

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genetix/pkg/market"
)

// Replays public testnet market endpoints through the feed parser.
// It skips if the cassette is absent and RECORD_CASSETTES != 1.
func TestClient_PublicMarket_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "binance_testnet_market")
	mode := recorder.ModeReplaying
	if _, err := os.Stat(cassette + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s.yaml", cassette)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(cassette, mode, nil)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	client := NewClient("", "", true, WithHTTPClient(&http.Client{Transport: r}), WithMaxAttempts(1))
	ctx := context.Background()

	serverTime, err := client.ServerTime(ctx)
	require.NoError(t, err)
	assert.True(t, serverTime.After(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), "server time %s", serverTime)

	feed := market.NewFeed(client)
	price, ok := feed.GetCurrentPrice(ctx, "BTCUSDT")
	require.True(t, ok)
	assert.Greater(t, price, 0.0)

	candles := feed.GetCandles(ctx, "BTCUSDT", "1m", 3)
	require.Len(t, candles, 3)
	for i, c := range candles {
		assert.Greater(t, c.Close, 0.0)
		assert.GreaterOrEqual(t, c.High, c.Low)
		if i > 0 {
			assert.True(t, c.OpenTime.After(candles[i-1].OpenTime))
		}
	}
}
