package strategy

import "fmt"

// Config holds indicator periods and thresholds.
type Config struct {
	SMAShort      int     `yaml:"sma_short"`
	SMALong       int     `yaml:"sma_long"`
	RSIPeriod     int     `yaml:"rsi_period"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	BBPeriod      int     `yaml:"bb_period"`
	BBStd         float64 `yaml:"bb_std"`
	// MinConfluence is filled from the risk section of the trading config.
	MinConfluence float64 `yaml:"-"`
	// MinSamples is the warmup floor; the scorer requires max(MinSamples, SMALong).
	MinSamples int `yaml:"-"`
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() Config {
	return Config{
		SMAShort:      20,
		SMALong:       50,
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
		BBPeriod:      20,
		BBStd:         2,
		MinConfluence: 6,
		MinSamples:    200,
	}
}

// ApplyDefaults fills zero fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.SMAShort == 0 {
		c.SMAShort = d.SMAShort
	}
	if c.SMALong == 0 {
		c.SMALong = d.SMALong
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.RSIOversold == 0 {
		c.RSIOversold = d.RSIOversold
	}
	if c.RSIOverbought == 0 {
		c.RSIOverbought = d.RSIOverbought
	}
	if c.BBPeriod == 0 {
		c.BBPeriod = d.BBPeriod
	}
	if c.BBStd == 0 {
		c.BBStd = d.BBStd
	}
	if c.MinConfluence == 0 {
		c.MinConfluence = d.MinConfluence
	}
	if c.MinSamples == 0 {
		c.MinSamples = d.MinSamples
	}
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	switch {
	case c.SMAShort < 1 || c.SMALong < 1:
		return fmt.Errorf("strategy config: sma periods must be positive")
	case c.SMAShort >= c.SMALong:
		return fmt.Errorf("strategy config: sma_short (%d) must be below sma_long (%d)", c.SMAShort, c.SMALong)
	case c.RSIPeriod < 1:
		return fmt.Errorf("strategy config: rsi_period must be positive")
	case c.RSIOversold <= 0 || c.RSIOverbought >= 100 || c.RSIOversold >= c.RSIOverbought:
		return fmt.Errorf("strategy config: rsi thresholds must satisfy 0 < oversold < overbought < 100")
	case c.BBPeriod < 2 || c.BBStd <= 0:
		return fmt.Errorf("strategy config: bollinger period must be >= 2 and std positive")
	case c.MinConfluence < 0 || c.MinConfluence > 10:
		return fmt.Errorf("strategy config: min_confluence must be within [0,10]")
	}
	return nil
}
