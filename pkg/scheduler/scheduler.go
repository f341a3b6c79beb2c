// Package scheduler drives the trading loop: it polls prices, scores
// signals, lets the manager open or manage positions, and runs the periodic
// save and health tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/pkg/manager"
	"genetix/pkg/market"
	"genetix/pkg/strategy"
)

const finalSaveTimeout = 10 * time.Second

// ErrNoPrices is returned by an iteration in which no symbol produced a price.
var ErrNoPrices = errors.New("scheduler: no prices available")

// SnapshotSink persists published snapshots.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snap manager.Snapshot) error
}

// SnapshotObserver is told about every published snapshot.
type SnapshotObserver interface {
	ObserveSnapshot(snap manager.Snapshot)
}

// Runner is a background task bound to the scheduler's lifetime.
type Runner interface {
	Run(ctx context.Context) error
}

// Settings are the loop timings and warmup sizes.
type Settings struct {
	TickInterval   time.Duration
	ErrorBackoff   time.Duration
	SaveInterval   time.Duration
	HealthInterval time.Duration
	CandleInterval string
	InitialCandles int
	WarmupSamples  int
	MarkMaxAge     time.Duration
}

// SettingsFrom combines the trading and market configuration.
func SettingsFrom(trading *manager.Config, mkt *market.Config) Settings {
	s := Settings{
		TickInterval:   trading.Monitoring.TickInterval,
		ErrorBackoff:   trading.Monitoring.ErrorBackoff,
		SaveInterval:   trading.Monitoring.SaveInterval,
		HealthInterval: trading.Monitoring.HealthInterval,
	}
	if mkt != nil {
		s.CandleInterval = mkt.CandleInterval
		s.InitialCandles = mkt.InitialCandles
		s.WarmupSamples = mkt.WarmupSamples
		s.MarkMaxAge = mkt.Stream.StaleAfter
	}
	return s
}

func (s *Settings) applyDefaults() {
	if s.TickInterval <= 0 {
		s.TickInterval = 30 * time.Second
	}
	if s.ErrorBackoff <= 0 {
		s.ErrorBackoff = 60 * time.Second
	}
	if s.SaveInterval <= 0 {
		s.SaveInterval = 5 * time.Minute
	}
	if s.HealthInterval <= 0 {
		s.HealthInterval = 60 * time.Second
	}
	if s.CandleInterval == "" {
		s.CandleInterval = market.DefaultCandleInterval
	}
	if s.InitialCandles <= 0 {
		s.InitialCandles = market.DefaultInitialCandles
	}
	if s.WarmupSamples <= 0 {
		s.WarmupSamples = market.DefaultWarmupSamples
	}
	if s.MarkMaxAge <= 0 {
		s.MarkMaxAge = 30 * time.Second
	}
}

// SleepFunc waits for d, returning early when wake fires or ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration, wake <-chan struct{})

// Scheduler owns the manager for the lifetime of Run.
type Scheduler struct {
	mgr      *manager.Manager
	feed     *market.Feed
	scorer   *strategy.Scorer
	board    *manager.SnapshotBoard
	symbols  []string
	settings Settings

	sinks    []SnapshotSink
	observer SnapshotObserver
	notifier manager.Notifier
	stream   Runner

	clock func() time.Time
	sleep SleepFunc

	shutdown     atomic.Bool
	wake         chan struct{}
	iterations   atomic.Int64
	lastSave     time.Time
	lastHealth   time.Time
	signals      map[string]strategy.Signal
	stopStream   context.CancelFunc
	streamDone   chan struct{}
	bootstrapped bool
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithSinks adds snapshot sinks used by the save task.
func WithSinks(sinks ...SnapshotSink) Option {
	return func(s *Scheduler) {
		for _, sink := range sinks {
			if sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// WithObserver attaches a snapshot observer such as the metrics exporter.
func WithObserver(o SnapshotObserver) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithNotifier sends start and stop messages.
func WithNotifier(n manager.Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithStream runs r in the background between Bootstrap and shutdown.
func WithStream(r Runner) Option {
	return func(s *Scheduler) { s.stream = r }
}

// WithClock overrides the time source and sleeper (primarily for testing).
func WithClock(now func() time.Time, sleep SleepFunc) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.clock = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New constructs a scheduler over the configured symbols.
func New(mgr *manager.Manager, feed *market.Feed, scorer *strategy.Scorer, board *manager.SnapshotBoard, settings Settings, opts ...Option) *Scheduler {
	settings.applyDefaults()
	if board == nil {
		board = manager.NewSnapshotBoard()
	}
	s := &Scheduler{
		mgr:      mgr,
		feed:     feed,
		scorer:   scorer,
		board:    board,
		symbols:  append([]string(nil), mgr.Config().Symbols...),
		settings: settings,
		clock:    time.Now,
		sleep:    interruptibleSleep,
		wake:     make(chan struct{}, 1),
		signals:  make(map[string]strategy.Signal),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Board returns the snapshot board readers subscribe to.
func (s *Scheduler) Board() *manager.SnapshotBoard { return s.board }

// Iterations reports how many loop iterations have completed.
func (s *Scheduler) Iterations() int64 { return s.iterations.Load() }

// Bootstrap initializes the manager, seeds price history and starts the
// stream. Errors here are fatal to the bot.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	if err := s.mgr.Initialize(ctx); err != nil {
		return err
	}
	for _, sym := range s.symbols {
		n := s.feed.Backfill(ctx, sym, s.settings.CandleInterval, s.settings.InitialCandles)
		logx.WithContext(ctx).Infof("scheduler: backfilled %d candles symbol=%s interval=%s", n, sym, s.settings.CandleInterval)
	}

	if s.stream != nil {
		streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.stopStream = cancel
		s.streamDone = make(chan struct{})
		go func() {
			defer close(s.streamDone)
			if err := s.stream.Run(streamCtx); err != nil && !errors.Is(err, context.Canceled) {
				logx.WithContext(ctx).Errorf("scheduler: stream stopped: %v", err)
			}
		}()
	}

	now := s.clock()
	s.lastSave = now
	s.lastHealth = now
	s.bootstrapped = true
	snap := s.publish(now, manager.StatusStarting)

	mode := "LIVE"
	if s.mgr.DryRun() {
		mode = "DRY RUN"
	}
	s.notify(ctx, fmt.Sprintf("bot started (%s) balance %s USDT symbols %s",
		mode, snap.Account.Balance.StringFixed(2), strings.Join(s.symbols, ",")))
	return nil
}

// RequestShutdown asks Run to stop after the current iteration. It is safe to
// call from any goroutine.
func (s *Scheduler) RequestShutdown() {
	s.shutdown.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run iterates until shutdown is requested or ctx is done, then publishes
// and saves a final snapshot.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.bootstrapped {
		return errors.New("scheduler: run before bootstrap")
	}
	for !s.shutdown.Load() && ctx.Err() == nil {
		wait := s.settings.TickInterval
		if err := s.safeIteration(ctx); err != nil {
			logx.WithContext(ctx).Errorf("scheduler: iteration failed, backing off %s: %v", s.settings.ErrorBackoff, err)
			wait = s.settings.ErrorBackoff
		}
		s.iterations.Add(1)
		if s.shutdown.Load() || ctx.Err() != nil {
			break
		}
		s.sleep(ctx, wait, s.wake)
	}
	s.finish(ctx)
	return nil
}

func (s *Scheduler) safeIteration(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: panic: %v", r)
		}
	}()
	return s.iterate(ctx)
}

func (s *Scheduler) iterate(ctx context.Context) error {
	now := s.clock()
	if s.mgr.RollDay(now) {
		logx.WithContext(ctx).Infof("scheduler: new trading day %s, daily counters reset", s.mgr.Account().Day)
	}

	priced := 0
	for _, sym := range s.symbols {
		ok, err := s.processSymbol(ctx, sym)
		if ok {
			priced++
		}
		if err != nil {
			logx.WithContext(ctx).Errorf("scheduler: symbol=%s: %v", sym, err)
		}
	}

	snap := s.publish(now, manager.StatusRunning)
	acct := snap.Account
	logx.WithContext(ctx).Infof("scheduler: balance=%s daily_pnl=%s total_pnl=%s positions=%d/%d trades=%d win_rate=%.1f%%",
		acct.Balance.StringFixed(2), acct.DailyPnL.StringFixed(2), snap.TotalPnL.StringFixed(2),
		len(snap.Positions), snap.MaxPositions, snap.Counters.TradesClosed, snap.WinRate)

	if now.Sub(s.lastSave) >= s.settings.SaveInterval {
		s.save(ctx, snap)
		s.lastSave = now
	}
	if now.Sub(s.lastHealth) >= s.settings.HealthInterval {
		if err := s.mgr.RefreshBalance(ctx); err != nil {
			logx.WithContext(ctx).Errorf("scheduler: health check: %v", err)
		}
		s.lastHealth = now
	}

	if priced == 0 && len(s.symbols) > 0 {
		return ErrNoPrices
	}
	return nil
}

// processSymbol handles one symbol for one tick. ok reports whether a price
// was obtained.
func (s *Scheduler) processSymbol(ctx context.Context, sym string) (bool, error) {
	price, ok := s.feed.GetCurrentPrice(ctx, sym)
	if !ok {
		return false, nil
	}
	s.feed.Append(sym, price)

	// Exits need only the tick price, so open positions skip warmup.
	if s.mgr.HasPosition(sym) {
		_, err := s.mgr.Manage(ctx, sym, price)
		return true, err
	}
	if n := s.feed.Len(sym); n < s.settings.WarmupSamples {
		logx.WithContext(ctx).Debugf("scheduler: warming up symbol=%s samples=%d/%d", sym, n, s.settings.WarmupSamples)
		return true, nil
	}

	sig := s.scorer.Score(sym, price, s.feed.Closes(sym))
	s.signals[sym] = sig
	if sig.Actionable() {
		logx.WithContext(ctx).Infof("scheduler: signal symbol=%s action=%s confidence=%.2f confluence=%.2f reason=%s",
			sym, sig.Action, sig.Confidence, sig.Confluence, sig.Reason)
	}
	_, err := s.mgr.Evaluate(ctx, sym, sig, price)
	return true, err
}

func (s *Scheduler) publish(now time.Time, status string) manager.Snapshot {
	snap := s.mgr.Snapshot(now, status, func(symbol string) (float64, bool) {
		return s.feed.MarkPrice(symbol, s.settings.MarkMaxAge)
	})
	for _, sym := range s.symbols {
		if sig, ok := s.signals[sym]; ok {
			snap.Signals = append(snap.Signals, sig)
		}
	}
	s.board.Publish(snap)
	if s.observer != nil {
		s.observer.ObserveSnapshot(snap)
	}
	return snap
}

func (s *Scheduler) save(ctx context.Context, snap manager.Snapshot) {
	for _, sink := range s.sinks {
		if err := sink.SaveSnapshot(ctx, snap); err != nil {
			logx.WithContext(ctx).Errorf("scheduler: save snapshot (%T): %v", sink, err)
		}
	}
}

func (s *Scheduler) finish(ctx context.Context) {
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
	defer cancel()

	if s.stopStream != nil {
		s.stopStream()
		<-s.streamDone
	}

	snap := s.publish(s.clock(), manager.StatusStopped)
	s.save(finalCtx, snap)

	logx.WithContext(finalCtx).Infof("scheduler: stopped after %d iterations balance=%s total_pnl=%s (%+.2f%%) open_positions=%d",
		s.iterations.Load(), snap.Account.Balance.StringFixed(2), snap.TotalPnL.StringFixed(2), snap.TotalPnLPercent, len(snap.Positions))
	s.notify(finalCtx, fmt.Sprintf("bot stopped balance %s USDT total pnl %s (%+.2f%%) open positions %d",
		snap.Account.Balance.StringFixed(2), snap.TotalPnL.StringFixed(2), snap.TotalPnLPercent, len(snap.Positions)))
}

func (s *Scheduler) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		logx.WithContext(ctx).Errorf("scheduler: notify: %v", err)
	}
}

func interruptibleSleep(ctx context.Context, d time.Duration, wake <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-wake:
	case <-ctx.Done():
	}
}
