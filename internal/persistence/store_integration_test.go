//go:build integration
// +build integration

package persistence_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"genetix/internal/persistence"
	"genetix/pkg/exchange"
	"genetix/pkg/manager"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("GENETIX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GENETIX_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store := persistence.NewStore(persistence.Config{SQLConn: sqlx.NewSqlConn("pgx", dsn)})
	require.NoError(t, store.EnsureSchema(ctx))

	at := time.Now().UTC().Truncate(time.Microsecond)
	symbol := fmt.Sprintf("IT%dUSDT", at.UnixNano()%100000)
	ev := manager.PositionEvent{
		Event: manager.PositionEventOpen,
		Trade: manager.TradeEntry{
			Timestamp: at, Symbol: symbol, Action: manager.TradeOpen, Side: exchange.OrderSideBuy,
			Quantity: decimal.RequireFromString("0.5"), Price: decimal.RequireFromString("100"),
		},
	}
	require.NoError(t, store.RecordPositionEvent(ctx, ev))
	require.NoError(t, store.RecordPositionEvent(ctx, ev), "replay is ignored")

	rows, err := store.RecentTrades(ctx, 20)
	require.NoError(t, err)
	found := 0
	for _, r := range rows {
		if r.Symbol == symbol {
			found++
			assert.Equal(t, "OPEN", r.Action)
		}
	}
	assert.Equal(t, 1, found)

	require.NoError(t, store.SaveSnapshot(ctx, manager.Snapshot{Timestamp: at, Status: manager.StatusRunning}))
}
