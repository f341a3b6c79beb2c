package market

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ticker    string
	tickerErr error
	klines    string
	klinesErr error
}

func (f *fakeSource) TickerPrice(ctx context.Context, symbol string) (json.RawMessage, error) {
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	return json.RawMessage(f.ticker), nil
}

func (f *fakeSource) Klines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	if f.klinesErr != nil {
		return nil, f.klinesErr
	}
	return json.RawMessage(f.klines), nil
}

func TestGetCurrentPriceShapes(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		price  float64
		wantOK bool
	}{
		{"object string", `{"symbol":"BTCUSDT","price":"65000.10"}`, 65000.10, true},
		{"object number", `{"symbol":"BTCUSDT","price":123.5}`, 123.5, true},
		{"list", `[{"symbol":"BTCUSDT","price":"10"},{"symbol":"ETHUSDT","price":"20"}]`, 10, true},
		{"empty list", `[]`, 0, false},
		{"zero", `{"price":"0"}`, 0, false},
		{"negative", `{"price":"-1"}`, 0, false},
		{"missing", `{"symbol":"BTCUSDT"}`, 0, false},
		{"garbage", `{"price":"abc"}`, 0, false},
		{"scalar", `42`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			feed := NewFeed(&fakeSource{ticker: tc.body})
			price, ok := feed.GetCurrentPrice(context.Background(), "BTCUSDT")
			require.Equal(t, tc.wantOK, ok)
			require.InDelta(t, tc.price, price, 1e-9)
		})
	}
}

func TestGetCurrentPriceErrorIsAbsent(t *testing.T) {
	feed := NewFeed(&fakeSource{tickerErr: errors.New("boom")})
	_, ok := feed.GetCurrentPrice(context.Background(), "BTCUSDT")
	require.False(t, ok)
}

func TestGetCandlesDropsMalformedRows(t *testing.T) {
	body := `[
		[1700000000000,"100","110","90","105","12.5",1700000059999,"0",10],
		[1700000060000,"105","112","101"],
		[1700000120000,"105","x","101","106","3"],
		[1700000180000,106,108,104,107,4]
	]`
	feed := NewFeed(&fakeSource{klines: body})
	candles := feed.GetCandles(context.Background(), "BTCUSDT", "1m", 4)
	require.Len(t, candles, 2)
	require.InDelta(t, 105.0, candles[0].Close, 1e-9)
	require.InDelta(t, 12.5, candles[0].Volume, 1e-9)
	require.Equal(t, int64(1700000059999), candles[0].CloseTime.UnixMilli())
	require.InDelta(t, 107.0, candles[1].Close, 1e-9)
}

func TestGetCandlesFailureIsEmpty(t *testing.T) {
	feed := NewFeed(&fakeSource{klinesErr: errors.New("down")})
	require.Empty(t, feed.GetCandles(context.Background(), "BTCUSDT", "1m", 10))

	feed = NewFeed(&fakeSource{klines: `{"code":-1}`})
	candles := feed.GetCandles(context.Background(), "BTCUSDT", "1m", 10)
	require.NotNil(t, candles)
	require.Empty(t, candles)
}

func TestBackfillAndAppend(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(
		&fakeSource{klines: `[[1,"1","1","1","100","1",2],[3,"1","1","1","101","1",4]]`},
		WithHistory(NewHistory(3)),
		WithClock(func() time.Time { return now }),
	)

	require.Equal(t, 2, feed.Backfill(context.Background(), "BTCUSDT", "1m", 2))
	require.Equal(t, []float64{100, 101}, feed.Closes("BTCUSDT"))

	feed.Append("btcusdt", 102)
	feed.Append("BTCUSDT", 103)
	require.Equal(t, 3, feed.Len("BTCUSDT"))
	require.Equal(t, []float64{101, 102, 103}, feed.Closes("BTCUSDT"))

	last, ok := feed.LastPrice("BTCUSDT")
	require.True(t, ok)
	require.InDelta(t, 103.0, last, 1e-9)
}

func TestClosesReturnsCopy(t *testing.T) {
	feed := NewFeed(&fakeSource{})
	feed.Append("ETHUSDT", 1)
	closes := feed.Closes("ETHUSDT")
	closes[0] = 99
	require.Equal(t, []float64{1}, feed.Closes("ETHUSDT"))
}

func TestMarkPricePrefersFreshStream(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(&fakeSource{}, WithClock(func() time.Time { return now }))
	feed.Append("BTCUSDT", 100)

	feed.Cache().Set(Ticker{Symbol: "BTCUSDT", Price: 101, UpdatedAt: now.Add(-10 * time.Second)})
	price, ok := feed.MarkPrice("BTCUSDT", 30*time.Second)
	require.True(t, ok)
	require.InDelta(t, 101.0, price, 1e-9)

	feed.Cache().Set(Ticker{Symbol: "BTCUSDT", Price: 102, UpdatedAt: now.Add(-time.Minute)})
	price, ok = feed.MarkPrice("BTCUSDT", 30*time.Second)
	require.True(t, ok)
	require.InDelta(t, 100.0, price, 1e-9)
}

func TestMarkPricePrefersStreamedMark(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(&fakeSource{}, WithClock(func() time.Time { return now }))
	feed.Append("BTCUSDT", 100)
	feed.Cache().Set(Ticker{Symbol: "BTCUSDT", Price: 101, UpdatedAt: now})
	feed.Cache().SetMark("BTCUSDT", 100.8, now.Add(-time.Second))

	price, ok := feed.MarkPrice("BTCUSDT", 30*time.Second)
	require.True(t, ok)
	require.InDelta(t, 100.8, price, 1e-9)

	feed.Cache().SetMark("BTCUSDT", 100.8, now.Add(-time.Minute))
	price, ok = feed.MarkPrice("BTCUSDT", 30*time.Second)
	require.True(t, ok)
	require.InDelta(t, 101.0, price, 1e-9, "stale mark falls back to the last price")
}
