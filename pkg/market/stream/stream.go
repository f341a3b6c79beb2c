// Package stream consumes the Binance futures combined ticker and mark price
// websockets and writes the latest values per symbol into a market.PriceCache.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"genetix/pkg/exchange/ratelimit"
	"genetix/pkg/market"
)

const defaultReadTimeout = 90 * time.Second

// Stream maintains one combined-stream connection and reconnects until its
// context is cancelled.
type Stream struct {
	baseURL     string
	symbols     []string
	cache       *market.PriceCache
	dialer      *websocket.Dialer
	minBackoff  time.Duration
	maxBackoff  time.Duration
	readTimeout time.Duration
	clock       func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	messages atomic.Int64
}

// Option customises a Stream.
type Option func(*Stream)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Stream) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithReadTimeout bounds the wait for each frame before reconnecting.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithClock overrides the time source and sleeper (primarily for testing).
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Stream) {
		if now != nil {
			s.clock = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New constructs a stream for symbols using the market stream configuration.
func New(cfg market.StreamConfig, symbols []string, cache *market.PriceCache, opts ...Option) *Stream {
	s := &Stream{
		baseURL:     cfg.URL,
		symbols:     append([]string(nil), symbols...),
		cache:       cache,
		dialer:      websocket.DefaultDialer,
		minBackoff:  cfg.ReconnectMin,
		maxBackoff:  cfg.ReconnectMax,
		readTimeout: defaultReadTimeout,
		clock:       time.Now,
		sleep:       ratelimit.Sleep,
	}
	if s.baseURL == "" {
		s.baseURL = market.DefaultStreamURL
	}
	if s.minBackoff <= 0 {
		s.minBackoff = time.Second
	}
	if s.maxBackoff < s.minBackoff {
		s.maxBackoff = s.minBackoff
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the combined stream endpoint, e.g.
// .../stream?streams=btcusdt@ticker/ethusdt@ticker/btcusdt@markPrice@1s/ethusdt@markPrice@1s.
func (s *Stream) URL() string {
	names := make([]string, 0, 2*len(s.symbols))
	for _, suffix := range []string{"@ticker", "@markPrice@1s"} {
		for _, sym := range s.symbols {
			names = append(names, strings.ToLower(strings.TrimSpace(sym))+suffix)
		}
	}
	return s.baseURL + "?streams=" + strings.Join(names, "/")
}

// Messages reports how many ticker and mark price frames have been applied.
func (s *Stream) Messages() int64 { return s.messages.Load() }

// Run keeps the stream connected until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("stream: no symbols")
	}
	backoff := s.minBackoff
	for {
		received, err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received > 0 {
			backoff = s.minBackoff
		}
		logx.WithContext(ctx).Errorf("stream: disconnected after %d messages, reconnecting in %s: %v", received, backoff, err)
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) (int, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.URL(), nil)
	if err != nil {
		return 0, fmt.Errorf("stream: dial: %w", err)
	}
	defer conn.Close()
	logx.WithContext(ctx).Infof("stream: connected symbols=%s", strings.Join(s.symbols, ","))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	received := 0
	for {
		if err := conn.SetReadDeadline(s.clock().Add(s.readTimeout)); err != nil {
			return received, err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return received, errors.New("stream: closed by server")
			}
			return received, err
		}
		ticker, ok := decodeMessage(data, s.clock())
		if !ok {
			continue
		}
		if ticker.Price > 0 {
			s.cache.Set(ticker)
		} else {
			s.cache.SetMark(ticker.Symbol, ticker.MarkPrice, ticker.MarkUpdatedAt)
		}
		s.messages.Add(1)
		received++
	}
}

const (
	eventTicker    = "24hrTicker"
	eventMarkPrice = "markPriceUpdate"
)

// Both payloads carry keys differing only in case ("c"/"C", "p"/"P",
// "e"/"E"). Every one is declared so encoding/json never folds an
// uppercase key onto its lowercase twin.
type envelope struct {
	Stream string `json:"stream"`
	Data   struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		Close     string `json:"c"`
		CloseTime int64  `json:"C"`
		Volume    string `json:"v"`
		Price     string `json:"p"` // 24h change on tickers, mark price on markPriceUpdate
		Percent   string `json:"P"` // 24h change percent on tickers, estimated settle price on markPriceUpdate
	} `json:"data"`
}

// decodeMessage turns one frame into a Ticker. Mark price frames come back
// with only MarkPrice and MarkUpdatedAt set.
func decodeMessage(data []byte, now time.Time) (market.Ticker, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Data.Symbol == "" {
		return market.Ticker{}, false
	}
	if env.Data.Event == eventMarkPrice || strings.Contains(env.Stream, "@markPrice") {
		mark, ok := parsePrice(env.Data.Price)
		if !ok {
			return market.Ticker{}, false
		}
		return market.Ticker{Symbol: env.Data.Symbol, MarkPrice: mark, MarkUpdatedAt: now}, true
	}
	if env.Data.Event != "" && env.Data.Event != eventTicker {
		return market.Ticker{}, false
	}
	price, ok := parsePrice(env.Data.Close)
	if !ok {
		return market.Ticker{}, false
	}
	return market.Ticker{
		Symbol:      env.Data.Symbol,
		Price:       price,
		Volume:      parseFinite(env.Data.Volume),
		PriceChange: parseFinite(env.Data.Price),
		UpdatedAt:   now,
	}, true
}

func parsePrice(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseFinite(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
