// Package persistence mirrors trades and account snapshots to Postgres and
// keeps the latest snapshot in Redis.
package persistence

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "genetix/internal/cache"
	"genetix/pkg/manager"
)

//go:embed schema.sql
var schemaSQL string

// ErrSnapshotNotFound is returned by the cache when no snapshot is stored.
var ErrSnapshotNotFound = errors.New("persistence: snapshot not found")

var _ manager.PersistenceService = (*Store)(nil)

// MustNewRedisCache connects to Redis and wraps it in a go-zero cache node
// whose misses surface as ErrSnapshotNotFound.
func MustNewRedisCache(conf redis.RedisConf) gocache.Cache {
	rds := redis.MustNewRedis(conf)
	return gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat("genetix"), ErrSnapshotNotFound)
}

// Store implements the manager persistence hook and the scheduler snapshot
// sink. Either backend may be absent.
type Store struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet
}

// Config enumerates the optional backends.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache
	TTL     cachekeys.TTLSet
}

// NewStore returns nil when neither backend is configured.
func NewStore(cfg Config) *Store {
	if cfg.SQLConn == nil && cfg.Cache == nil {
		return nil
	}
	return &Store{sqlConn: cfg.SQLConn, cache: cfg.Cache, ttl: cfg.TTL}
}

// EnsureSchema creates the bot tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.sqlConn == nil {
		return nil
	}
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.sqlConn.ExecCtx(ctx, stmt); err != nil {
			return fmt.Errorf("persistence: ensure schema: %w", err)
		}
	}
	return nil
}

const insertTradeSQL = `
INSERT INTO public.bot_trades (
    event, symbol, action, side, quantity, price, pnl, pnl_percent, reason,
    confidence, confluence, order_id, balance, occurred_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
)`

// RecordPositionEvent inserts the event's trade row. Replays of the same
// trade are ignored.
func (s *Store) RecordPositionEvent(ctx context.Context, event manager.PositionEvent) error {
	if s == nil || s.sqlConn == nil {
		return nil
	}
	t := event.Trade
	symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
	if symbol == "" {
		return nil
	}
	occurred := t.Timestamp
	if occurred.IsZero() {
		occurred = event.OccurredAt
	}
	var pnl, pnlPct any
	if t.PnL != nil {
		pnl = t.PnL.String()
	}
	if t.PnLPercent != nil {
		pnlPct = *t.PnLPercent
	}
	_, err := s.sqlConn.ExecCtx(ctx, insertTradeSQL,
		string(event.Event), symbol, string(t.Action), string(t.Side),
		t.Quantity.String(), t.Price.String(), pnl, pnlPct, t.Reason,
		t.Confidence, t.Confluence, t.OrderID, fmt.Sprintf("%.8f", event.Balance), occurred.UTC(),
	)
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("persistence: insert trade %s: %w", symbol, err)
	}
	return nil
}

const upsertSnapshotSQL = `
INSERT INTO public.bot_account_snapshots (
    ts, status, dry_run, balance, initial_balance, daily_pnl, total_pnl,
    total_pnl_percent, open_positions, trades_closed, wins, losses, payload
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (ts) DO UPDATE SET
    status = EXCLUDED.status,
    balance = EXCLUDED.balance,
    daily_pnl = EXCLUDED.daily_pnl,
    total_pnl = EXCLUDED.total_pnl,
    total_pnl_percent = EXCLUDED.total_pnl_percent,
    open_positions = EXCLUDED.open_positions,
    trades_closed = EXCLUDED.trades_closed,
    wins = EXCLUDED.wins,
    losses = EXCLUDED.losses,
    payload = EXCLUDED.payload`

// SaveSnapshot upserts the snapshot row and refreshes the Redis copies.
func (s *Store) SaveSnapshot(ctx context.Context, snap manager.Snapshot) error {
	if s == nil {
		return nil
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	if s.sqlConn != nil {
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("persistence: encode snapshot: %w", err)
		}
		acct := snap.Account
		_, err = s.sqlConn.ExecCtx(ctx, upsertSnapshotSQL,
			ts, snap.Status, snap.DryRun,
			acct.Balance.String(), acct.InitialBalance.String(), acct.DailyPnL.String(), snap.TotalPnL.String(),
			snap.TotalPnLPercent, len(snap.Positions), snap.Counters.TradesClosed,
			snap.Counters.Wins, snap.Counters.Losses, string(payload),
		)
		if err != nil {
			return fmt.Errorf("persistence: upsert snapshot: %w", err)
		}
	}
	s.cacheSnapshot(ctx, ts, snap)
	return nil
}

func (s *Store) cacheSnapshot(ctx context.Context, ts time.Time, snap manager.Snapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, cachekeys.SnapshotLatestKey(), snap, cachekeys.SnapshotTTL(s.ttl)); err != nil {
		logx.WithContext(ctx).Errorf("persistence: cache latest snapshot: %v", err)
	}
	day := ts.Format("20060102")
	if err := s.cache.SetWithExpireCtx(ctx, cachekeys.SnapshotDailyKey(day), snap, cachekeys.SnapshotDailyTTL()); err != nil {
		logx.WithContext(ctx).Errorf("persistence: cache daily snapshot day=%s: %v", day, err)
	}
	if err := s.cache.SetWithExpireCtx(ctx, cachekeys.TradesRecentKey(), snap.RecentTrades, cachekeys.TradesRecentTTL(s.ttl)); err != nil {
		logx.WithContext(ctx).Errorf("persistence: cache recent trades: %v", err)
	}
	for _, p := range snap.Positions {
		if !p.CurrentPrice.IsPositive() {
			continue
		}
		if err := s.cache.SetWithExpireCtx(ctx, cachekeys.PriceLatestKey(p.Symbol), p.CurrentPrice.String(), cachekeys.PriceTTL(s.ttl)); err != nil {
			logx.WithContext(ctx).Errorf("persistence: cache price symbol=%s: %v", p.Symbol, err)
		}
	}
}

// LatestSnapshot reads the cached snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (*manager.Snapshot, error) {
	if s == nil || s.cache == nil {
		return nil, ErrSnapshotNotFound
	}
	var snap manager.Snapshot
	if err := s.cache.GetCtx(ctx, cachekeys.SnapshotLatestKey(), &snap); err != nil {
		if s.cache.IsNotFound(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("persistence: read latest snapshot: %w", err)
	}
	return &snap, nil
}

// CachedTrades returns the trade list stored with the last snapshot, oldest first.
func (s *Store) CachedTrades(ctx context.Context) ([]manager.TradeEntry, error) {
	if s == nil || s.cache == nil {
		return nil, ErrSnapshotNotFound
	}
	var trades []manager.TradeEntry
	if err := s.cache.GetCtx(ctx, cachekeys.TradesRecentKey(), &trades); err != nil {
		if s.cache.IsNotFound(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("persistence: read recent trades: %w", err)
	}
	return trades, nil
}

// TradeRow is one bot_trades record.
type TradeRow struct {
	ID         int64     `db:"id"`
	Event      string    `db:"event"`
	Symbol     string    `db:"symbol"`
	Action     string    `db:"action"`
	Side       string    `db:"side"`
	Quantity   string    `db:"quantity"`
	Price      string    `db:"price"`
	Reason     string    `db:"reason"`
	OrderID    int64     `db:"order_id"`
	OccurredAt time.Time `db:"occurred_at"`
}

// RecentTrades returns the newest trades first.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]TradeRow, error) {
	if s == nil || s.sqlConn == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, event, symbol, action, side, quantity::text AS quantity, price::text AS price, reason, order_id, occurred_at
FROM public.bot_trades
ORDER BY occurred_at DESC, id DESC
LIMIT $1`
	var rows []TradeRow
	if err := s.sqlConn.QueryRowsCtx(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("persistence: recent trades: %w", err)
	}
	return rows, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
