package market

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// Source is the REST surface the feed polls.
type Source interface {
	TickerPrice(ctx context.Context, symbol string) (json.RawMessage, error)
	Klines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error)
}

// Feed turns raw exchange payloads into prices and candles and owns the
// per-symbol history. Lookups never return errors; failures are logged.
type Feed struct {
	source  Source
	history *History
	cache   *PriceCache
	clock   func() time.Time
}

// FeedOption customises a Feed.
type FeedOption func(*Feed)

// WithHistory injects a pre-built history.
func WithHistory(h *History) FeedOption {
	return func(f *Feed) {
		if h != nil {
			f.history = h
		}
	}
}

// WithPriceCache attaches the streamed price cache.
func WithPriceCache(c *PriceCache) FeedOption {
	return func(f *Feed) {
		if c != nil {
			f.cache = c
		}
	}
}

// WithClock overrides the time source (primarily for testing).
func WithClock(clock func() time.Time) FeedOption {
	return func(f *Feed) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// NewFeed constructs a feed over source.
func NewFeed(source Source, opts ...FeedOption) *Feed {
	f := &Feed{
		source:  source,
		history: NewHistory(DefaultHistoryCapacity),
		cache:   NewPriceCache(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// History exposes the underlying history.
func (f *Feed) History() *History { return f.history }

// Cache exposes the streamed price cache.
func (f *Feed) Cache() *PriceCache { return f.cache }

type tickerEntry struct {
	Symbol string          `json:"symbol"`
	Price  json.RawMessage `json:"price"`
}

// GetCurrentPrice polls the ticker endpoint. ok is false unless the payload
// carries a finite positive price.
func (f *Feed) GetCurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	raw, err := f.source.TickerPrice(ctx, symbol)
	if err != nil {
		logx.WithContext(ctx).Errorf("market: ticker symbol=%s err=%v", symbol, err)
		return 0, false
	}
	price, ok := parseTickerPrice(raw)
	if !ok {
		logx.WithContext(ctx).Errorf("market: ticker symbol=%s unusable payload=%s", symbol, truncate(raw))
	}
	return price, ok
}

func parseTickerPrice(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false
	}
	var entry tickerEntry
	switch trimmed[0] {
	case '{':
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			return 0, false
		}
	case '[':
		var list []tickerEntry
		if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
			return 0, false
		}
		entry = list[0]
	default:
		return 0, false
	}
	price, ok := parseNumber(entry.Price)
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

// GetCandles fetches klines and drops malformed entries. It returns an empty
// slice on any request or decode failure.
func (f *Feed) GetCandles(ctx context.Context, symbol, interval string, limit int) []Candle {
	raw, err := f.source.Klines(ctx, symbol, interval, limit)
	if err != nil {
		logx.WithContext(ctx).Errorf("market: klines symbol=%s err=%v", symbol, err)
		return []Candle{}
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		logx.WithContext(ctx).Errorf("market: decode klines symbol=%s err=%v", symbol, err)
		return []Candle{}
	}
	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if c, ok := parseCandle(row); ok {
			candles = append(candles, c)
		}
	}
	return candles
}

func parseCandle(row []json.RawMessage) (Candle, bool) {
	if len(row) < 6 {
		return Candle{}, false
	}
	var fields [5]float64
	for i := range fields {
		v, ok := parseNumber(row[i+1])
		if !ok {
			return Candle{}, false
		}
		fields[i] = v
	}
	c := Candle{Open: fields[0], High: fields[1], Low: fields[2], Close: fields[3], Volume: fields[4]}
	if ms, ok := parseNumber(row[0]); ok {
		c.OpenTime = time.UnixMilli(int64(ms)).UTC()
	}
	if len(row) > 6 {
		if ms, ok := parseNumber(row[6]); ok {
			c.CloseTime = time.UnixMilli(int64(ms)).UTC()
		}
	}
	return c, true
}

// Backfill seeds history with candle closes and returns how many were added.
func (f *Feed) Backfill(ctx context.Context, symbol, interval string, limit int) int {
	candles := f.GetCandles(ctx, symbol, interval, limit)
	for _, c := range candles {
		at := c.CloseTime
		if at.IsZero() {
			at = c.OpenTime
		}
		f.history.Append(symbol, PriceSample{Price: c.Close, Volume: c.Volume, Time: at})
	}
	return len(candles)
}

// Append records a polled price for symbol.
func (f *Feed) Append(symbol string, price float64) {
	sample := PriceSample{Price: price, Time: f.clock()}
	if t, ok := f.cache.Get(symbol); ok {
		sample.Volume = t.Volume
	}
	f.history.Append(symbol, sample)
}

// Closes returns the stored prices for symbol, oldest first.
func (f *Feed) Closes(symbol string) []float64 { return f.history.Closes(symbol) }

// Len reports the stored sample count.
func (f *Feed) Len(symbol string) int { return f.history.Len(symbol) }

// LastPrice returns the newest polled price. The sim exchange fills at it.
func (f *Feed) LastPrice(symbol string) (float64, bool) {
	s, ok := f.history.Last(symbol)
	if !ok || s.Price <= 0 {
		return 0, false
	}
	return s.Price, true
}

// MarkPrice prefers a streamed mark price younger than maxAge, then a fresh
// streamed last price, then the last polled sample. It is for display only.
func (f *Feed) MarkPrice(symbol string, maxAge time.Duration) (float64, bool) {
	now := f.clock()
	if price, ok := f.cache.FreshMark(symbol, maxAge, now); ok {
		return price, true
	}
	if price, ok := f.cache.Fresh(symbol, maxAge, now); ok {
		return price, true
	}
	return f.LastPrice(symbol)
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func truncate(raw []byte) string {
	const max = 256
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
