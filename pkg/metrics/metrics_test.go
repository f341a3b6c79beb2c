package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genetix/pkg/exchange"
	"genetix/pkg/manager"
)

func TestRecorderCounters(t *testing.T) {
	c := New()

	c.OrderSubmitted("BTCUSDT", exchange.OrderSideBuy, false)
	c.OrderSubmitted("BTCUSDT", exchange.OrderSideBuy, false)
	c.OrderSubmitted("BTCUSDT", exchange.OrderSideSell, true)
	c.OrderFailed("BTCUSDT", exchange.KindRateLimited)
	c.PositionOpened("BTCUSDT", manager.SideLong)
	c.PositionClosed("BTCUSDT", manager.ReasonStopLoss, -1.5)
	c.PositionClosed("BTCUSDT", manager.ReasonTakeProfit, 4)
	c.GateRejected("circuit breaker: 3 consecutive losses")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.orders.WithLabelValues("BTCUSDT", "BUY", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.orders.WithLabelValues("BTCUSDT", "SELL", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.orderErrors.WithLabelValues("BTCUSDT", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.positionsOpened.WithLabelValues("BTCUSDT", "LONG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.positionsClosed.WithLabelValues("BTCUSDT", "STOP_LOSS")))
	assert.InDelta(t, 2.5, testutil.ToFloat64(c.realizedPnL.WithLabelValues("BTCUSDT")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.gateRejections.WithLabelValues("circuit_breaker")))
}

func TestObserveSnapshot(t *testing.T) {
	c := New()
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	snap := manager.Snapshot{
		Timestamp: at,
		Account: manager.AccountState{
			Balance:  decimal.RequireFromString("1012.5"),
			DailyPnL: decimal.RequireFromString("12.5"),
		},
		TotalPnL: decimal.RequireFromString("12.5"),
		Counters: manager.RiskCounters{TradesClosed: 4, Wins: 3, Losses: 1, ConsecutiveLosses: 1},
		WinRate:  75,
		Gate:     manager.GateResult{Reason: "max positions reached (1/1)"},
		Positions: []manager.PositionView{{
			Position: manager.Position{Symbol: "ETHUSDT", Side: manager.SideShort},
			PnL:      decimal.RequireFromString("-2"),
		}},
	}

	c.ObserveSnapshot(snap)
	assert.Equal(t, 1012.5, testutil.ToFloat64(c.balance))
	assert.Equal(t, 12.5, testutil.ToFloat64(c.totalPnL))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.openPositions))
	assert.Equal(t, 75.0, testutil.ToFloat64(c.winRate))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.gateBlocked))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(c.lastSnapshot))
	assert.Equal(t, -2.0, testutil.ToFloat64(c.unrealizedPnL.WithLabelValues("ETHUSDT", "SHORT")))

	// closed positions drop out of the unrealised series
	snap.Positions = nil
	snap.Gate = manager.GateResult{Allowed: true}
	c.ObserveSnapshot(snap)
	assert.Equal(t, 0, testutil.CollectAndCount(c.unrealizedPnL))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.gateBlocked))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.PositionOpened("SOLUSDT", manager.SideLong)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `genetix_positions_opened_total{side="LONG",symbol="SOLUSDT"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestGateLabel(t *testing.T) {
	cases := map[string]string{
		"max positions reached (3/3)":           "max_positions_reached",
		"daily loss limit hit (-100.00 USD)":    "daily_loss_limit_hit",
		"daily loss percent limit hit (-5.10%)": "daily_loss_percent_limit_hit",
		"circuit breaker: 3 consecutive losses": "circuit_breaker",
		"":                                      "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, GateLabel(in), in)
	}
}
