package manager

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"genetix/pkg/strategy"
)

// Status values published with a snapshot.
const (
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusStopped  = "stopped"
)

// PositionView is a position marked to a current price.
type PositionView struct {
	Position
	CurrentPrice    decimal.Decimal `json:"current_price"`
	PnL             decimal.Decimal `json:"pnl"`
	PnLPercent      float64         `json:"pnl_percent"`
	DurationSeconds int64           `json:"duration_seconds"`
}

// Snapshot is an immutable copy of the manager state.
type Snapshot struct {
	Timestamp       time.Time         `json:"timestamp"`
	Status          string            `json:"status"`
	DryRun          bool              `json:"dry_run"`
	Account         AccountState      `json:"account"`
	TotalPnL        decimal.Decimal   `json:"total_pnl"`
	TotalPnLPercent float64           `json:"total_pnl_percent"`
	DailyPnLPercent float64           `json:"daily_pnl_percent"`
	Counters        RiskCounters      `json:"statistics"`
	WinRate         float64           `json:"win_rate"`
	MaxPositions    int               `json:"max_positions"`
	Positions       []PositionView    `json:"positions"`
	RecentTrades    []TradeEntry      `json:"recent_trades"`
	Gate            GateResult        `json:"risk_gate"`
	Signals         []strategy.Signal `json:"signals,omitempty"`
}

// MarkFunc returns a display price for symbol.
type MarkFunc func(symbol string) (float64, bool)

// Snapshot copies the current state. mark may be nil; positions without a
// mark are valued at entry.
func (m *Manager) Snapshot(now time.Time, status string, mark MarkFunc) Snapshot {
	acct := m.account
	snap := Snapshot{
		Timestamp:    now,
		Status:       status,
		DryRun:       m.dryRun,
		Account:      acct,
		TotalPnL:     acct.Balance.Sub(acct.InitialBalance),
		Counters:     m.counters,
		WinRate:      m.counters.WinRate(),
		MaxPositions: m.cfg.Trading.MaxPositions,
		Gate:         m.RiskGate(),
	}
	if acct.InitialBalance.IsPositive() {
		snap.TotalPnLPercent = snap.TotalPnL.Div(acct.InitialBalance).Mul(hundred).InexactFloat64()
	}
	if acct.DailyStartBalance.IsPositive() {
		snap.DailyPnLPercent = acct.DailyPnL.Div(acct.DailyStartBalance).Mul(hundred).InexactFloat64()
	}

	positions := m.Positions()
	snap.Positions = make([]PositionView, 0, len(positions))
	for _, p := range positions {
		current := p.EntryPrice
		if mark != nil {
			if px, ok := mark(p.Symbol); ok && px > 0 && !math.IsInf(px, 0) {
				current = decimal.NewFromFloat(px)
			}
		}
		view := PositionView{
			Position:     p,
			CurrentPrice: current,
			PnL:          p.PnL(current),
			PnLPercent:   p.PnLPercent(current),
		}
		if !p.EntryTime.IsZero() && now.After(p.EntryTime) {
			view.DurationSeconds = int64(now.Sub(p.EntryTime) / time.Second)
		}
		snap.Positions = append(snap.Positions, view)
	}

	limit := m.cfg.Monitoring.RecentTrades
	if limit <= 0 {
		limit = 50
	}
	start := len(m.trades) - limit
	if start < 0 {
		start = 0
	}
	snap.RecentTrades = append([]TradeEntry{}, m.trades[start:]...)
	return snap
}

// SnapshotBoard publishes the latest snapshot to concurrent readers.
type SnapshotBoard struct {
	latest atomic.Pointer[Snapshot]
}

// NewSnapshotBoard returns an empty board.
func NewSnapshotBoard() *SnapshotBoard { return &SnapshotBoard{} }

// Publish replaces the current snapshot. s must not be mutated afterwards.
func (b *SnapshotBoard) Publish(s Snapshot) { b.latest.Store(&s) }

// Latest returns the most recent snapshot, or false before the first publish.
func (b *SnapshotBoard) Latest() (*Snapshot, bool) {
	s := b.latest.Load()
	return s, s != nil
}
