package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"genetix/pkg/confkit"
)

const (
	DefaultHistoryCapacity = 500
	DefaultCandleInterval  = "1m"
	DefaultInitialCandles  = 200
	DefaultWarmupSamples   = 200
	DefaultStreamURL       = "wss://fstream.binancefuture.com/stream"
)

// Config describes price history sizing and the optional ticker stream.
type Config struct {
	HistoryCapacity int          `yaml:"history_capacity"`
	CandleInterval  string       `yaml:"candle_interval"`
	InitialCandles  int          `yaml:"initial_candles"`
	WarmupSamples   int          `yaml:"warmup_samples"`
	Stream          StreamConfig `yaml:"stream"`
}

// StreamConfig configures the combined ticker websocket.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`

	ReconnectMinRaw string        `yaml:"reconnect_min"`
	ReconnectMin    time.Duration `yaml:"-"`
	ReconnectMaxRaw string        `yaml:"reconnect_max"`
	ReconnectMax    time.Duration `yaml:"-"`
	StaleAfterRaw   string        `yaml:"stale_after"`
	StaleAfter      time.Duration `yaml:"-"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	cfg := &Config{}
	_ = cfg.normalise()
	return cfg
}

func (c *Config) normalise() error {
	c.CandleInterval = strings.TrimSpace(os.ExpandEnv(c.CandleInterval))
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.CandleInterval == "" {
		c.CandleInterval = DefaultCandleInterval
	}
	if c.InitialCandles == 0 {
		c.InitialCandles = DefaultInitialCandles
	}
	if c.WarmupSamples == 0 {
		c.WarmupSamples = DefaultWarmupSamples
	}

	s := &c.Stream
	s.URL = strings.TrimRight(strings.TrimSpace(os.ExpandEnv(s.URL)), "/")
	if s.URL == "" {
		s.URL = DefaultStreamURL
	}
	var err error
	if s.ReconnectMin, err = confkit.PositiveDuration("market config", "reconnect_min", s.ReconnectMinRaw, time.Second); err != nil {
		return err
	}
	if s.ReconnectMax, err = confkit.PositiveDuration("market config", "reconnect_max", s.ReconnectMaxRaw, time.Minute); err != nil {
		return err
	}
	if s.StaleAfter, err = confkit.PositiveDuration("market config", "stale_after", s.StaleAfterRaw, 30*time.Second); err != nil {
		return err
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("market config: history_capacity must be positive")
	}
	if c.WarmupSamples < 1 {
		return fmt.Errorf("market config: warmup_samples must be positive")
	}
	if c.WarmupSamples > c.HistoryCapacity {
		return fmt.Errorf("market config: warmup_samples %d exceeds history_capacity %d", c.WarmupSamples, c.HistoryCapacity)
	}
	if c.InitialCandles < 0 || c.InitialCandles > 1500 {
		return fmt.Errorf("market config: initial_candles must be within [0,1500]")
	}
	if c.Stream.ReconnectMin > c.Stream.ReconnectMax {
		return fmt.Errorf("market config: stream reconnect_min exceeds reconnect_max")
	}
	if c.Stream.Enabled && !strings.HasPrefix(c.Stream.URL, "ws") {
		return fmt.Errorf("market config: stream url must be a websocket url")
	}
	return nil
}
