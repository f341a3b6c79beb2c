// Package journal writes the bot's results file and append-only trade log.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"genetix/pkg/manager"
)

const tradesFile = "trades.jsonl"

// Statistics mirrors the manager counters in the results file.
type Statistics struct {
	TradesOpened      int     `json:"trades_opened"`
	TradesClosed      int     `json:"trades_closed"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRate           float64 `json:"win_rate"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
}

// PositionRecord is one open position in the results file. Size is signed.
type PositionRecord struct {
	Size       float64   `json:"size"`
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	OrderID    int64     `json:"order_id,omitempty"`
	Leverage   int       `json:"leverage"`
}

// Results is the daily results document, overwritten on every save.
type Results struct {
	Timestamp         time.Time                 `json:"timestamp"`
	AccountBalance    float64                   `json:"account_balance"`
	InitialBalance    float64                   `json:"initial_balance"`
	DailyPnL          float64                   `json:"daily_pnl"`
	DailyStartBalance float64                   `json:"daily_start_balance"`
	TotalPnL          float64                   `json:"total_pnl"`
	TotalPnLPercent   float64                   `json:"total_pnl_percent"`
	Statistics        Statistics                `json:"statistics"`
	OpenPositions     int                       `json:"open_positions"`
	Positions         map[string]PositionRecord `json:"positions"`
	RecentTrades      []manager.TradeEntry      `json:"recent_trades"`
	Status            string                    `json:"status"`
	DryRun            bool                      `json:"dry_run"`
}

// Writer persists results and trades under one directory.
type Writer struct {
	mu    sync.Mutex
	dir   string
	nowFn func() time.Time
}

// NewWriter constructs a journal writer, creating dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "results"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// ResultsPath returns the results file for the UTC day of t.
func (w *Writer) ResultsPath(t time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("results_%s.json", t.UTC().Format("20060102")))
}

// TradesPath returns the trade log path.
func (w *Writer) TradesPath() string { return filepath.Join(w.dir, tradesFile) }

// BuildResults converts a snapshot into the results document.
func BuildResults(snap manager.Snapshot) Results {
	acct := snap.Account
	res := Results{
		Timestamp:         snap.Timestamp,
		AccountBalance:    acct.Balance.InexactFloat64(),
		InitialBalance:    acct.InitialBalance.InexactFloat64(),
		DailyPnL:          acct.DailyPnL.InexactFloat64(),
		DailyStartBalance: acct.DailyStartBalance.InexactFloat64(),
		TotalPnL:          snap.TotalPnL.InexactFloat64(),
		TotalPnLPercent:   snap.TotalPnLPercent,
		Statistics: Statistics{
			TradesOpened:      snap.Counters.TradesOpened,
			TradesClosed:      snap.Counters.TradesClosed,
			Wins:              snap.Counters.Wins,
			Losses:            snap.Counters.Losses,
			WinRate:           snap.WinRate,
			ConsecutiveLosses: snap.Counters.ConsecutiveLosses,
		},
		OpenPositions: len(snap.Positions),
		Positions:     make(map[string]PositionRecord, len(snap.Positions)),
		RecentTrades:  snap.RecentTrades,
		Status:        snap.Status,
		DryRun:        snap.DryRun,
	}
	if res.RecentTrades == nil {
		res.RecentTrades = []manager.TradeEntry{}
	}
	for _, p := range snap.Positions {
		size := p.Size.InexactFloat64()
		if p.Side == manager.SideShort {
			size = -size
		}
		res.Positions[p.Symbol] = PositionRecord{
			Size:       size,
			Side:       string(p.Side),
			EntryPrice: p.EntryPrice.InexactFloat64(),
			EntryTime:  p.EntryTime,
			OrderID:    p.OrderID,
			Leverage:   p.Leverage,
		}
	}
	return res
}

// SaveSnapshot overwrites the results file for the snapshot's day.
func (w *Writer) SaveSnapshot(ctx context.Context, snap manager.Snapshot) error {
	at := snap.Timestamp
	if at.IsZero() {
		at = w.nowFn()
	}
	data, err := json.MarshalIndent(BuildResults(snap), "", "  ")
	if err != nil {
		return fmt.Errorf("journal: encode results: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	path := w.ResultsPath(at)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("journal: write results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("journal: replace results: %w", err)
	}
	return nil
}

// RecordPositionEvent appends the event's trade to the trade log.
func (w *Writer) RecordPositionEvent(ctx context.Context, event manager.PositionEvent) error {
	line, err := json.Marshal(event.Trade)
	if err != nil {
		return fmt.Errorf("journal: encode trade: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.TradesPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open trade log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("journal: append trade: %w", err)
	}
	return nil
}

// ReadTrades returns the last limit trades from the log, oldest first. A
// limit <= 0 returns everything. A missing log yields no trades.
func (w *Writer) ReadTrades(limit int) ([]manager.TradeEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.Open(w.TradesPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open trade log: %w", err)
	}
	defer f.Close()

	var trades []manager.TradeEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var t manager.TradeEntry
		if err := json.Unmarshal(scanner.Bytes(), &t); err != nil {
			return nil, fmt.Errorf("journal: decode trade: %w", err)
		}
		trades = append(trades, t)
		if limit > 0 && len(trades) > limit {
			trades = trades[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: read trade log: %w", err)
	}
	return trades, nil
}

// ReadResults loads a results file.
func ReadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("journal: read results: %w", err)
	}
	var res Results
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("journal: decode results: %w", err)
	}
	return &res, nil
}
