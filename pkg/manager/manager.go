package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"genetix/pkg/exchange"
	"genetix/pkg/exchange/ratelimit"
)

const (
	quoteAsset = "USDT"

	initAttempts  = 3
	initRetryWait = 5 * time.Second

	tradeHistoryLimit = 1000
)

// ErrNotInitialized is returned by operations that need a known balance.
var ErrNotInitialized = errors.New("manager: not initialized")

// Manager owns positions, balance and risk counters for one account. It is
// driven by a single goroutine and holds no locks; readers use Snapshot.
type Manager struct {
	cfg      *Config
	provider exchange.Provider

	persistence PersistenceService
	notifier    Notifier
	recorder    Recorder
	clock       func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	newID       func() string
	dryRun      bool

	initialized bool
	positions   map[string]*Position
	account     AccountState
	counters    RiskCounters
	trades      []TradeEntry
	gateBlocked bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithPersistence attaches position event sinks.
func WithPersistence(sinks ...PersistenceService) Option {
	return func(m *Manager) {
		var live multiPersistence
		for _, s := range sinks {
			if s != nil {
				live = append(live, s)
			}
		}
		if len(live) > 0 {
			m.persistence = live
		}
	}
}

// WithNotifier attaches an operator notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithClock overrides the time source and sleeper (primarily for testing).
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) {
		if now != nil {
			m.clock = now
		}
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithDryRun marks snapshots as paper trading.
func WithDryRun(dry bool) Option {
	return func(m *Manager) { m.dryRun = dry }
}

// NewManager constructs a Manager trading through provider.
func NewManager(cfg *Config, provider exchange.Provider, opts ...Option) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	m := &Manager{
		cfg:         cfg,
		provider:    provider,
		persistence: noopPersistenceService{},
		notifier:    noopNotifier{},
		recorder:    noopRecorder{},
		clock:       time.Now,
		sleep:       ratelimit.Sleep,
		newID:       newClientOrderID,
		positions:   make(map[string]*Position),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the trading configuration.
func (m *Manager) Config() *Config { return m.cfg }

// Initialized reports whether Initialize has succeeded.
func (m *Manager) Initialized() bool { return m.initialized }

// DryRun reports whether the manager trades against the paper exchange.
func (m *Manager) DryRun() bool { return m.dryRun }

// Initialize loads the wallet balance, opens the trading day and reconciles
// positions with the venue. Network errors are retried; anything else is fatal.
func (m *Manager) Initialize(ctx context.Context) error {
	var (
		balance decimal.Decimal
		err     error
	)
	for attempt := 1; attempt <= initAttempts; attempt++ {
		balance, err = m.walletBalance(ctx)
		if err == nil {
			break
		}
		if !exchange.IsKind(err, exchange.KindNetwork) || attempt == initAttempts {
			return fmt.Errorf("manager: initial balance: %w", err)
		}
		logx.WithContext(ctx).Infof("manager: balance network error, retrying (%d/%d): %v", attempt, initAttempts, err)
		if err := m.sleep(ctx, initRetryWait); err != nil {
			return err
		}
	}

	now := m.clock()
	m.account = AccountState{
		Balance:           balance,
		InitialBalance:    balance,
		DailyStartBalance: balance,
		DailyPnL:          decimal.Zero,
		Day:               dayKey(now),
	}
	m.initialized = true
	logx.WithContext(ctx).Infof("manager: account balance %s %s", balance.StringFixed(2), quoteAsset)

	if err := m.Reconcile(ctx); err != nil {
		return fmt.Errorf("manager: reconcile: %w", err)
	}
	return nil
}

func (m *Manager) walletBalance(ctx context.Context) (decimal.Decimal, error) {
	balances, err := m.provider.GetBalances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	bal, ok := exchange.FindBalance(balances, quoteAsset)
	if !ok {
		return decimal.Zero, exchange.NewError(exchange.KindAPI, 0, fmt.Sprintf("no %s balance reported", quoteAsset), nil)
	}
	return bal.WalletBalance, nil
}

// Reconcile replaces local positions for configured symbols with what the
// venue reports. Positions adopted from the venue get the current time as
// entry time.
func (m *Manager) Reconcile(ctx context.Context) error {
	venue, err := m.provider.GetPositions(ctx)
	if err != nil {
		return err
	}
	tracked := make(map[string]struct{}, len(m.cfg.Symbols))
	for _, s := range m.cfg.Symbols {
		tracked[s] = struct{}{}
	}

	next := make(map[string]*Position, len(venue))
	for _, vp := range venue {
		if _, ok := tracked[vp.Symbol]; !ok || vp.IsFlat() {
			continue
		}
		side := SideLong
		if vp.Amount.IsNegative() {
			side = SideShort
		}
		pos := &Position{
			Symbol:     vp.Symbol,
			Side:       side,
			Size:       vp.Amount.Abs(),
			EntryPrice: vp.EntryPrice,
			EntryTime:  m.clock(),
			Leverage:   vp.Leverage,
			Reconciled: true,
		}
		if local, ok := m.positions[vp.Symbol]; ok && local.Side == side {
			pos.EntryTime = local.EntryTime
			pos.OrderID = local.OrderID
			pos.ClientOrderID = local.ClientOrderID
			pos.Confidence = local.Confidence
			pos.Reconciled = local.Reconciled
		}
		next[vp.Symbol] = pos
	}

	for sym := range m.positions {
		if _, ok := next[sym]; !ok {
			logx.WithContext(ctx).Infof("manager: reconcile dropped local position symbol=%s", sym)
		}
	}
	for sym, p := range next {
		if _, ok := m.positions[sym]; !ok {
			logx.WithContext(ctx).Infof("manager: reconcile adopted position symbol=%s side=%s size=%s entry=%s", sym, p.Side, p.Size, p.EntryPrice)
		}
	}
	m.positions = next
	return nil
}

// RefreshBalance re-reads the wallet balance. It doubles as the API health probe.
func (m *Manager) RefreshBalance(ctx context.Context) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	balance, err := m.walletBalance(ctx)
	if err != nil {
		return fmt.Errorf("manager: health check: %w", err)
	}
	m.account.Balance = balance
	return nil
}

// RollDay resets the daily counters when the UTC date changes. It reports
// whether a rollover happened.
func (m *Manager) RollDay(now time.Time) bool {
	if !m.initialized {
		return false
	}
	day := dayKey(now)
	if day == m.account.Day {
		return false
	}
	m.account.Day = day
	m.account.DailyStartBalance = m.account.Balance
	m.account.DailyPnL = decimal.Zero
	return true
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// HasPosition reports whether symbol has an open position.
func (m *Manager) HasPosition(symbol string) bool {
	_, ok := m.positions[symbol]
	return ok
}

// Position returns a copy of the open position on symbol.
func (m *Manager) Position(symbol string) (Position, bool) {
	p, ok := m.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions ordered by symbol.
func (m *Manager) Positions() []Position {
	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Account returns the account state.
func (m *Manager) Account() AccountState { return m.account }

// Counters returns the trade statistics.
func (m *Manager) Counters() RiskCounters { return m.counters }

// Trades returns a copy of the in-memory trade log, oldest first.
func (m *Manager) Trades() []TradeEntry {
	return append([]TradeEntry(nil), m.trades...)
}

func (m *Manager) appendTrade(t TradeEntry) {
	m.trades = append(m.trades, t)
	if over := len(m.trades) - tradeHistoryLimit; over > 0 {
		m.trades = append(m.trades[:0:0], m.trades[over:]...)
	}
}

func (m *Manager) notify(ctx context.Context, text string) {
	if err := m.notifier.Notify(ctx, text); err != nil {
		logx.WithContext(ctx).Errorf("manager: notify: %v", err)
	}
}
