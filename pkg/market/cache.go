package market

import (
	"math"
	"sync"
	"time"
)

// PriceCache holds the latest streamed ticker per symbol.
type PriceCache struct {
	mu      sync.RWMutex
	tickers map[string]Ticker
}

// NewPriceCache constructs an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{tickers: make(map[string]Ticker)}
}

// Set replaces the ticker fields for t.Symbol. A cached mark price survives
// unless t carries its own.
func (c *PriceCache) Set(t Ticker) {
	t.Symbol = normaliseSymbol(t.Symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.tickers[t.Symbol]; ok && t.MarkPrice == 0 {
		t.MarkPrice, t.MarkUpdatedAt = prev.MarkPrice, prev.MarkUpdatedAt
	}
	c.tickers[t.Symbol] = t
}

// SetMark records a mark price without touching the ticker fields.
func (c *PriceCache) SetMark(symbol string, price float64, at time.Time) {
	symbol = normaliseSymbol(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tickers[symbol]
	t.Symbol = symbol
	t.MarkPrice, t.MarkUpdatedAt = price, at
	c.tickers[symbol] = t
}

// Get returns the cached ticker.
func (c *PriceCache) Get(symbol string) (Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickers[normaliseSymbol(symbol)]
	return t, ok
}

// Fresh returns the cached last price when it was updated within maxAge of now.
func (c *PriceCache) Fresh(symbol string, maxAge time.Duration, now time.Time) (float64, bool) {
	t, ok := c.Get(symbol)
	if !ok || !usable(t.Price) || now.Sub(t.UpdatedAt) > maxAge {
		return 0, false
	}
	return t.Price, true
}

// FreshMark returns the cached mark price when it was updated within maxAge of now.
func (c *PriceCache) FreshMark(symbol string, maxAge time.Duration, now time.Time) (float64, bool) {
	t, ok := c.Get(symbol)
	if !ok || !usable(t.MarkPrice) || now.Sub(t.MarkUpdatedAt) > maxAge {
		return 0, false
	}
	return t.MarkPrice, true
}

func usable(price float64) bool { return price > 0 && !math.IsInf(price, 0) }

// All returns a copy of every cached ticker.
func (c *PriceCache) All() map[string]Ticker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Ticker, len(c.tickers))
	for k, v := range c.tickers {
		out[k] = v
	}
	return out
}
