// Package strategy scores BUY/SELL/HOLD signals from a fixed weighted vote of
// SMA trend, RSI, Bollinger position and price versus the short SMA.
package strategy

import (
	"fmt"
	"math"

	"genetix/pkg/market/indicators"
)

const (
	weightTrend    = 2.0
	weightRSI      = 1.5
	weightBands    = 1.0
	weightMomentum = 1.5
)

// Scorer is stateless; it may be shared.
type Scorer struct {
	cfg Config
}

// NewScorer constructs a scorer; zero config fields take defaults.
func NewScorer(cfg Config) *Scorer {
	cfg.ApplyDefaults()
	return &Scorer{cfg: cfg}
}

// Config returns the effective parameters.
func (s *Scorer) Config() Config { return s.cfg }

// RequiredSamples is the history length below which every signal is HOLD.
func (s *Scorer) RequiredSamples() int {
	if s.cfg.SMALong > s.cfg.MinSamples {
		return s.cfg.SMALong
	}
	return s.cfg.MinSamples
}

// Score evaluates closes (oldest first) at price.
func (s *Scorer) Score(symbol string, price float64, closes []float64) Signal {
	sig := Signal{Symbol: symbol, Action: ActionHold}
	if len(closes) < s.RequiredSamples() {
		sig.Reason = "insufficient data"
		return sig
	}

	smaShort, okShort := indicators.SMA(closes, s.cfg.SMAShort)
	smaLong, okLong := indicators.SMA(closes, s.cfg.SMALong)
	rsi, okRSI := indicators.RSI(closes, s.cfg.RSIPeriod)
	bands, okBands := indicators.Bollinger(closes, s.cfg.BBPeriod, s.cfg.BBStd)
	if !okShort || !okLong || !okRSI || !okBands || math.IsNaN(price) || price <= 0 {
		sig.Reason = "indicator calculation failed"
		return sig
	}

	snap := &IndicatorSnapshot{
		SMAShort: smaShort,
		SMALong:  smaLong,
		RSI:      rsi,
		BBUpper:  bands.Upper,
		BBMid:    bands.Middle,
		BBLower:  bands.Lower,
		Price:    price,
	}
	if _, _, hist := indicators.MACD(closes); len(hist) > 0 {
		if v, ok := indicators.LastValid(hist); ok {
			snap.MACDHist = &v
		}
	}
	sig.Indicators = snap

	var bull, bear, total float64

	if smaShort > smaLong {
		bull += weightTrend
	} else {
		bear += weightTrend
	}
	total += weightTrend

	switch {
	case rsi < s.cfg.RSIOversold:
		bull += weightRSI
	case rsi > s.cfg.RSIOverbought:
		bear += weightRSI
	}
	total += weightRSI

	switch {
	case price < bands.Lower:
		bull += weightBands
	case price > bands.Upper:
		bear += weightBands
	}
	total += weightBands

	if price > smaShort {
		bull += weightMomentum
	} else {
		bear += weightMomentum
	}
	total += weightMomentum

	var winning float64
	switch {
	case bull > bear:
		sig.Action, winning = ActionBuy, bull
	case bear > bull:
		sig.Action, winning = ActionSell, bear
	default:
		sig.Action = ActionHold
		sig.Confidence = 0.5
		sig.Confluence = 5
		sig.Reason = "neutral signals"
		return sig
	}

	sig.Confluence = winning / total * 10
	sig.Confidence = math.Min(sig.Confluence/10, 1)

	if sig.Confluence < s.cfg.MinConfluence {
		sig.Action = ActionHold
		sig.Reason = fmt.Sprintf("low confluence (%.2f < %.2f)", sig.Confluence, s.cfg.MinConfluence)
		return sig
	}
	sig.Reason = fmt.Sprintf("confluence %.2f, rsi %.1f", sig.Confluence, rsi)
	return sig
}
