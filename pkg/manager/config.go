package manager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"genetix/pkg/confkit"
	"genetix/pkg/strategy"
)

const (
	defaultWeight            = 0.05
	defaultQuantityPrecision = 3
)

// Config is the trading.yaml schema.
type Config struct {
	Symbols          []string                   `yaml:"symbols"`
	Precision        map[string]PrecisionConfig `yaml:"precision"`
	PortfolioWeights map[string]float64         `yaml:"portfolio_weights"`
	Trading          TradingConfig              `yaml:"trading"`
	Risk             RiskConfig                 `yaml:"risk"`
	Strategy         strategy.Config            `yaml:"strategy"`
	Monitoring       MonitoringConfig           `yaml:"monitoring"`
}

// PrecisionConfig holds the venue's decimal places for a symbol.
type PrecisionConfig struct {
	Quantity int32 `yaml:"quantity"`
	Price    int32 `yaml:"price"`
}

type TradingConfig struct {
	BasePositionPercent float64 `yaml:"base_position_percent"`
	Leverage            int     `yaml:"leverage"`
	StopLossPercent     float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent   float64 `yaml:"take_profit_percent"`
	MaxPositions        int     `yaml:"max_positions"`
	MaxPositionUSD      float64 `yaml:"max_position_usd"`
	MinPositionUSD      float64 `yaml:"min_position_usd"`
}

type RiskConfig struct {
	MaxDailyLossUSD     float64              `yaml:"max_daily_loss_usd"`
	MaxDailyLossPercent float64              `yaml:"max_daily_loss_percent"`
	MinConfidence       float64              `yaml:"min_confidence"`
	MinConfluence       float64              `yaml:"min_confluence"`
	CircuitBreaker      CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled              bool `yaml:"enabled"`
	MaxConsecutiveLosses int  `yaml:"max_consecutive_losses"`
}

type MonitoringConfig struct {
	TickInterval   time.Duration `yaml:"-"`
	ErrorBackoff   time.Duration `yaml:"-"`
	SaveInterval   time.Duration `yaml:"-"`
	HealthInterval time.Duration `yaml:"-"`
	RecentTrades   int           `yaml:"recent_trades"`

	TickIntervalRaw   string `yaml:"tick_interval"`
	ErrorBackoffRaw   string `yaml:"error_backoff"`
	SaveIntervalRaw   string `yaml:"save_interval"`
	HealthIntervalRaw string `yaml:"health_interval"`
}

// LoadConfig reads trading configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trading config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from YAML.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read trading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal trading config: %w", err)
	}
	cfg.normalise()
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() {
	seen := make(map[string]struct{}, len(c.Symbols))
	symbols := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	c.Symbols = symbols

	if len(c.Precision) > 0 {
		out := make(map[string]PrecisionConfig, len(c.Precision))
		for k, v := range c.Precision {
			out[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		c.Precision = out
	}
	if len(c.PortfolioWeights) > 0 {
		out := make(map[string]float64, len(c.PortfolioWeights))
		for k, v := range c.PortfolioWeights {
			out[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		c.PortfolioWeights = out
	}
}

func (c *Config) applyDefaults() {
	t := &c.Trading
	if t.BasePositionPercent == 0 {
		t.BasePositionPercent = 10
	}
	if t.Leverage == 0 {
		t.Leverage = 1
	}
	if t.StopLossPercent == 0 {
		t.StopLossPercent = 2.5
	}
	if t.TakeProfitPercent == 0 {
		t.TakeProfitPercent = 5
	}
	if t.MaxPositions == 0 {
		t.MaxPositions = 3
	}
	if t.MaxPositionUSD == 0 {
		t.MaxPositionUSD = 1000
	}
	if t.MinPositionUSD == 0 {
		t.MinPositionUSD = 10
	}

	r := &c.Risk
	if r.MaxDailyLossUSD == 0 {
		r.MaxDailyLossUSD = 100
	}
	if r.MaxDailyLossPercent == 0 {
		r.MaxDailyLossPercent = 5
	}
	if r.MinConfidence == 0 {
		r.MinConfidence = 0.65
	}
	if r.MinConfluence == 0 {
		r.MinConfluence = 6
	}
	if r.CircuitBreaker.MaxConsecutiveLosses == 0 {
		r.CircuitBreaker.MaxConsecutiveLosses = 3
	}

	c.Strategy.MinConfluence = r.MinConfluence
	c.Strategy.ApplyDefaults()

	m := &c.Monitoring
	if strings.TrimSpace(m.TickIntervalRaw) == "" {
		m.TickIntervalRaw = "30s"
	}
	if strings.TrimSpace(m.ErrorBackoffRaw) == "" {
		m.ErrorBackoffRaw = "60s"
	}
	if strings.TrimSpace(m.SaveIntervalRaw) == "" {
		m.SaveIntervalRaw = "5m"
	}
	if strings.TrimSpace(m.HealthIntervalRaw) == "" {
		m.HealthIntervalRaw = "60s"
	}
	if m.RecentTrades == 0 {
		m.RecentTrades = 50
	}
}

func (c *Config) parseDurations() error {
	var err error
	if c.Monitoring.TickInterval, err = confkit.PositiveDuration("trading config", "monitoring.tick_interval", c.Monitoring.TickIntervalRaw, 0); err != nil {
		return err
	}
	if c.Monitoring.ErrorBackoff, err = confkit.PositiveDuration("trading config", "monitoring.error_backoff", c.Monitoring.ErrorBackoffRaw, 0); err != nil {
		return err
	}
	if c.Monitoring.SaveInterval, err = confkit.PositiveDuration("trading config", "monitoring.save_interval", c.Monitoring.SaveIntervalRaw, 0); err != nil {
		return err
	}
	if c.Monitoring.HealthInterval, err = confkit.PositiveDuration("trading config", "monitoring.health_interval", c.Monitoring.HealthIntervalRaw, 0); err != nil {
		return err
	}
	return nil
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("trading config: at least one symbol is required")
	}
	for sym, p := range c.Precision {
		if p.Quantity < 0 || p.Price < 0 {
			return fmt.Errorf("trading config: precision.%s cannot be negative", sym)
		}
	}
	for sym, w := range c.PortfolioWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("trading config: portfolio_weights.%s must be between 0 and 1", sym)
		}
	}

	t := c.Trading
	switch {
	case t.BasePositionPercent <= 0 || t.BasePositionPercent > 100:
		return errors.New("trading config: trading.base_position_percent must be in (0, 100]")
	case t.Leverage < 1 || t.Leverage > 125:
		return errors.New("trading config: trading.leverage must be between 1 and 125")
	case t.StopLossPercent <= 0:
		return errors.New("trading config: trading.stop_loss_percent must be positive")
	case t.TakeProfitPercent <= 0:
		return errors.New("trading config: trading.take_profit_percent must be positive")
	case t.MaxPositions <= 0:
		return errors.New("trading config: trading.max_positions must be positive")
	case t.MinPositionUSD < 0 || t.MaxPositionUSD <= 0:
		return errors.New("trading config: trading position bounds must be positive")
	case t.MinPositionUSD > t.MaxPositionUSD:
		return fmt.Errorf("trading config: min_position_usd %.2f exceeds max_position_usd %.2f", t.MinPositionUSD, t.MaxPositionUSD)
	}

	r := c.Risk
	switch {
	case r.MaxDailyLossUSD <= 0:
		return errors.New("trading config: risk.max_daily_loss_usd must be positive")
	case r.MaxDailyLossPercent <= 0 || r.MaxDailyLossPercent > 100:
		return errors.New("trading config: risk.max_daily_loss_percent must be in (0, 100]")
	case r.MinConfidence < 0 || r.MinConfidence > 1:
		return errors.New("trading config: risk.min_confidence must be between 0 and 1")
	case r.CircuitBreaker.Enabled && r.CircuitBreaker.MaxConsecutiveLosses <= 0:
		return errors.New("trading config: risk.circuit_breaker.max_consecutive_losses must be positive")
	}

	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("trading config: %w", err)
	}
	if c.Monitoring.RecentTrades < 0 {
		return errors.New("trading config: monitoring.recent_trades cannot be negative")
	}
	return nil
}

// Weight returns the portfolio weight for symbol, defaulting to 0.05.
func (c *Config) Weight(symbol string) float64 {
	if w, ok := c.PortfolioWeights[symbol]; ok {
		return w
	}
	return defaultWeight
}

// QuantityPrecision returns the quantity decimals for symbol.
func (c *Config) QuantityPrecision(symbol string) int32 {
	if p, ok := c.Precision[symbol]; ok {
		return p.Quantity
	}
	return defaultQuantityPrecision
}

// SortedSymbols returns the configured symbols in a stable order.
func (c *Config) SortedSymbols() []string {
	out := append([]string(nil), c.Symbols...)
	sort.Strings(out)
	return out
}
