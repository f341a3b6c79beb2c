package svc

import (
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "genetix/internal/cache"
	"genetix/internal/config"
	"genetix/internal/persistence"
	exchangepkg "genetix/pkg/exchange"
	"genetix/pkg/exchange/binance"
	"genetix/pkg/exchange/sim"
	"genetix/pkg/journal"
	"genetix/pkg/manager"
	"genetix/pkg/market"
	"genetix/pkg/market/stream"
	"genetix/pkg/metrics"
	"genetix/pkg/notify"
	"genetix/pkg/scheduler"
	"genetix/pkg/strategy"
)

const defaultPaperBalance = 10000.0

type ServiceContext struct {
	Config config.Config

	TradingConfig  *manager.Config
	MarketConfig   *market.Config
	ExchangeConfig *exchangepkg.Config

	// MarketClient serves public market data in both live and dry-run mode.
	MarketClient *binance.Client
	Provider     exchangepkg.Provider
	ProviderName string

	marketProvider    *binance.Provider
	marketProviderCfg *exchangepkg.ProviderConfig

	Feed      *market.Feed
	Stream    *stream.Stream
	Scorer    *strategy.Scorer
	Manager   *manager.Manager
	Board     *manager.SnapshotBoard
	Scheduler *scheduler.Scheduler

	Journal  *journal.Writer
	Notifier *notify.Telegram
	Metrics  *metrics.Collector

	// Optional stores, nil unless configured.
	DBConn sqlx.SqlConn
	Cache  gocache.Cache
	Store  *persistence.Store
}

// NewServiceContext wires every component and exits the process on failure.
func NewServiceContext(c config.Config) *ServiceContext {
	svc, err := New(c)
	logx.Must(err)
	return svc
}

// New wires every component described by c.
func New(c config.Config) (*ServiceContext, error) {
	if c.Trading.Value == nil {
		return nil, fmt.Errorf("svc: trading config is required")
	}
	svc := &ServiceContext{
		Config:         c,
		TradingConfig:  c.Trading.Value,
		MarketConfig:   c.Market.Value,
		ExchangeConfig: c.Exchange.Value,
		Board:          manager.NewSnapshotBoard(),
		Metrics:        metrics.New(),
		Notifier:       notify.New(c.Telegram),
	}
	if svc.MarketConfig == nil {
		svc.MarketConfig = market.Defaults()
	}

	svc.buildMarketClient()
	svc.Feed = market.NewFeed(svc.MarketClient, market.WithHistory(market.NewHistory(svc.MarketConfig.HistoryCapacity)))
	if svc.MarketConfig.Stream.Enabled {
		svc.Stream = stream.New(svc.MarketConfig.Stream, svc.TradingConfig.Symbols, svc.Feed.Cache())
	}

	if err := svc.buildProvider(); err != nil {
		return nil, err
	}

	writer, err := journal.NewWriter(c.ResultsDir)
	if err != nil {
		return nil, err
	}
	svc.Journal = writer
	svc.buildStores()

	persist := []manager.PersistenceService{svc.Journal}
	sinks := []scheduler.SnapshotSink{svc.Journal}
	if svc.Store != nil {
		persist = append(persist, svc.Store)
		sinks = append(sinks, svc.Store)
	}

	svc.Scorer = strategy.NewScorer(svc.TradingConfig.Strategy)
	svc.Manager = manager.NewManager(svc.TradingConfig, svc.Provider,
		manager.WithPersistence(persist...),
		manager.WithNotifier(svc.Notifier),
		manager.WithRecorder(svc.Metrics),
		manager.WithDryRun(c.DryRun),
	)

	opts := []scheduler.Option{
		scheduler.WithSinks(sinks...),
		scheduler.WithObserver(svc.Metrics),
		scheduler.WithNotifier(svc.Notifier),
	}
	if svc.Stream != nil {
		opts = append(opts, scheduler.WithStream(svc.Stream))
	}
	svc.Scheduler = scheduler.New(svc.Manager, svc.Feed, svc.Scorer, svc.Board,
		scheduler.SettingsFrom(svc.TradingConfig, svc.MarketConfig), opts...)
	return svc, nil
}

// buildMarketClient prefers the default provider's Binance settings, then any
// Binance provider, then an unauthenticated testnet client.
func (s *ServiceContext) buildMarketClient() {
	var chosen *exchangepkg.ProviderConfig
	if s.ExchangeConfig != nil {
		if p, ok := s.ExchangeConfig.Providers[s.ExchangeConfig.Default]; ok && isBinance(p) {
			chosen = p
		} else {
			for _, name := range sortedProviderNames(s.ExchangeConfig) {
				if p := s.ExchangeConfig.Providers[name]; isBinance(p) {
					chosen = p
					break
				}
			}
		}
	}
	if chosen == nil {
		s.MarketClient = binance.NewClient("", "", true)
		return
	}
	s.marketProvider = binance.NewProviderFromConfig(chosen)
	s.marketProviderCfg = chosen
	s.MarketClient = s.marketProvider.Client()
}

func sortedProviderNames(cfg *exchangepkg.Config) []string {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isBinance(p *exchangepkg.ProviderConfig) bool {
	return p != nil && strings.EqualFold(p.Type, "binance")
}

// buildProvider selects the order venue: the sim exchange filling at the
// feed's last price in dry-run mode, otherwise the configured default.
func (s *ServiceContext) buildProvider() error {
	if s.Config.DryRun {
		balance := defaultPaperBalance
		if s.ExchangeConfig != nil {
			for _, name := range sortedProviderNames(s.ExchangeConfig) {
				if p := s.ExchangeConfig.Providers[name]; p != nil && strings.EqualFold(p.Type, "sim") && p.PaperBalance > 0 {
					balance = p.PaperBalance
					break
				}
			}
		}
		s.Provider = sim.New(sim.WithInitialBalance(decimal.NewFromFloat(balance)), sim.WithPriceSource(s.Feed))
		s.ProviderName = "sim"
		return nil
	}

	if s.ExchangeConfig == nil {
		return fmt.Errorf("svc: exchange config is required for live trading")
	}
	name, providerCfg, err := s.Config.DefaultProvider()
	if err != nil {
		return err
	}
	if isBinance(providerCfg) && (providerCfg.APIKey == "" || providerCfg.APISecret == "") {
		return fmt.Errorf("svc: provider %s requires api_key and api_secret for live trading", name)
	}
	if providerCfg == s.marketProviderCfg && s.marketProvider != nil {
		// market data and orders share one limiter
		s.Provider, s.ProviderName = s.marketProvider, name
		return nil
	}
	provider, err := exchangepkg.GetProvider(providerCfg.Type, providerCfg)
	if err != nil {
		return fmt.Errorf("svc: build provider %s: %w", name, err)
	}
	if sp, ok := provider.(*sim.Provider); ok {
		sp.SetPriceSource(s.Feed)
	}
	s.Provider, s.ProviderName = provider, name
	return nil
}

// buildStores connects Postgres and Redis when configured.
func (s *ServiceContext) buildStores() {
	c := s.Config
	if c.Postgres.DSN != "" {
		s.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		if raw, err := s.DBConn.RawDB(); err == nil {
			raw.SetMaxOpenConns(c.Postgres.MaxOpen)
			raw.SetMaxIdleConns(c.Postgres.MaxIdle)
		}
	}
	if strings.TrimSpace(c.Redis.Host) != "" {
		s.Cache = persistence.MustNewRedisCache(c.Redis)
	}
	s.Store = persistence.NewStore(persistence.Config{
		SQLConn: s.DBConn,
		Cache:   s.Cache,
		TTL:     cachekeys.NewTTLSet(c.TTL),
	})
}
