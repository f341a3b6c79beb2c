package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genetix/pkg/exchange"
	"genetix/pkg/manager"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleSnapshot(at time.Time) manager.Snapshot {
	pnl := d("-1.5")
	pct := -0.15
	return manager.Snapshot{
		Timestamp: at,
		Status:    manager.StatusRunning,
		DryRun:    true,
		Account: manager.AccountState{
			Balance:           d("998.5"),
			InitialBalance:    d("1000"),
			DailyPnL:          d("-1.5"),
			DailyStartBalance: d("1000"),
		},
		TotalPnL:        d("-1.5"),
		TotalPnLPercent: -0.15,
		Counters:        manager.RiskCounters{TradesOpened: 2, TradesClosed: 1, Losses: 1, ConsecutiveLosses: 1},
		Positions: []manager.PositionView{{
			Position: manager.Position{Symbol: "ETHUSDT", Side: manager.SideShort, Size: d("0.25"), EntryPrice: d("2000"), EntryTime: at, OrderID: 5, Leverage: 3},
		}},
		RecentTrades: []manager.TradeEntry{
			{Timestamp: at, Symbol: "BTCUSDT", Action: manager.TradeClose, Side: exchange.OrderSideSell, Quantity: d("0.5"), Price: d("97"), PnL: &pnl, PnLPercent: &pct, Reason: "STOP_LOSS"},
		},
	}
}

func TestSaveSnapshotWritesDailyResults(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	at := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)

	require.NoError(t, w.SaveSnapshot(context.Background(), sampleSnapshot(at)))
	path := filepath.Join(w.Dir(), "results_20260314.json")
	res, err := ReadResults(path)
	require.NoError(t, err)

	assert.Equal(t, 998.5, res.AccountBalance)
	assert.Equal(t, 1000.0, res.InitialBalance)
	assert.Equal(t, -1.5, res.TotalPnL)
	assert.Equal(t, 1, res.Statistics.TradesClosed)
	assert.Equal(t, 1, res.OpenPositions)
	require.Contains(t, res.Positions, "ETHUSDT")
	assert.Equal(t, -0.25, res.Positions["ETHUSDT"].Size)
	assert.Equal(t, "SHORT", res.Positions["ETHUSDT"].Side)
	require.Len(t, res.RecentTrades, 1)
	assert.True(t, res.RecentTrades[0].PnL.Equal(d("-1.5")))

	// a second save overwrites the same file
	snap := sampleSnapshot(at.Add(30 * time.Second))
	snap.Account.Balance = d("1001")
	require.NoError(t, w.SaveSnapshot(context.Background(), snap))
	res, err = ReadResults(path)
	require.NoError(t, err)
	assert.Equal(t, 1001.0, res.AccountBalance)

	entries, err := os.ReadDir(w.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildResultsEmptySnapshot(t *testing.T) {
	res := BuildResults(manager.Snapshot{})
	assert.NotNil(t, res.Positions)
	assert.NotNil(t, res.RecentTrades)
	assert.Zero(t, res.OpenPositions)
}

func TestTradeLogAppendsAndTails(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	trades, err := w.ReadTrades(10)
	require.NoError(t, err)
	assert.Empty(t, trades)

	for i := 0; i < 5; i++ {
		ev := manager.PositionEvent{
			Event: manager.PositionEventOpen,
			Trade: manager.TradeEntry{Symbol: "BTCUSDT", Action: manager.TradeOpen, Side: exchange.OrderSideBuy, Quantity: d("0.1"), Price: d("100"), OrderID: int64(i)},
		}
		require.NoError(t, w.RecordPositionEvent(context.Background(), ev))
	}

	all, err := w.ReadTrades(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].Quantity.Equal(d("0.1")))

	tail, err := w.ReadTrades(2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, int64(3), tail[0].OrderID)
	assert.Equal(t, int64(4), tail[1].OrderID)
}
