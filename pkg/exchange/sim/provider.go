package sim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"genetix/pkg/exchange"
)

const (
	defaultInitialBalance = 10000.0
	quoteAsset            = "USDT"
)

// PriceSource supplies the last traded price used to fill market orders.
type PriceSource interface {
	LastPrice(symbol string) (float64, bool)
}

// Provider is a paper-trading exchange that fills every order immediately and
// keeps the wallet, positions and leverage in memory.
type Provider struct {
	mu sync.Mutex

	source    PriceSource
	markPx    map[string]decimal.Decimal
	positions map[string]*positionState
	leverage  map[string]int
	filled    map[string]exchange.OrderResult // client order id -> result

	wallet      decimal.Decimal
	nextOrderID int64
	clock       func() time.Time
}

type positionState struct {
	Symbol string
	Qty    decimal.Decimal // positive long, negative short
	Entry  decimal.Decimal
}

// Option customises the simulator.
type Option func(*Provider)

// WithInitialBalance seeds the USDT wallet.
func WithInitialBalance(balance decimal.Decimal) Option {
	return func(p *Provider) {
		if balance.IsPositive() {
			p.wallet = balance
		}
	}
}

// WithPriceSource fills market orders at the source's last price.
func WithPriceSource(src PriceSource) Option {
	return func(p *Provider) { p.source = src }
}

// WithClock overrides the time source (primarily for testing).
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New constructs a simulator with a default paper balance.
func New(opts ...Option) *Provider {
	p := &Provider{
		markPx:      make(map[string]decimal.Decimal),
		positions:   make(map[string]*positionState),
		leverage:    make(map[string]int),
		filled:      make(map[string]exchange.OrderResult),
		wallet:      decimal.NewFromFloat(defaultInitialBalance),
		nextOrderID: 1,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func init() {
	exchange.RegisterProvider("sim", func(name string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		opts := []Option{}
		if cfg != nil && cfg.PaperBalance > 0 {
			opts = append(opts, WithInitialBalance(decimal.NewFromFloat(cfg.PaperBalance)))
		}
		return New(opts...), nil
	})
}

func canonical(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// SetPriceSource attaches the price source after construction.
func (p *Provider) SetPriceSource(src PriceSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = src
}

// SetMarkPrice records a reference price used when no price source is attached.
func (p *Provider) SetMarkPrice(symbol string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("sim: mark price must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markPx[canonical(symbol)] = decimal.NewFromFloat(price)
	return nil
}

// PlaceOrder fills the order in full at the limit price or the current mark.
// Resubmitting a client order id returns the original fill.
func (p *Provider) PlaceOrder(ctx context.Context, order exchange.Order) (*exchange.OrderResult, error) {
	if !order.Quantity.IsPositive() {
		return nil, fmt.Errorf("sim: order quantity must be positive")
	}
	if order.Side != exchange.OrderSideBuy && order.Side != exchange.OrderSideSell {
		return nil, fmt.Errorf("sim: invalid side %q", order.Side)
	}
	symbol := canonical(order.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("sim: order symbol is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if order.ClientOrderID != "" {
		if prev, ok := p.filled[order.ClientOrderID]; ok {
			return &prev, nil
		}
	}

	price := order.Price
	if order.Type != exchange.OrderTypeLimit || !price.IsPositive() {
		var ok bool
		price, ok = p.resolveMarkPriceLocked(symbol)
		if !ok {
			return nil, exchange.NewError(exchange.KindInvalidOrder, 0, fmt.Sprintf("no price for %s", symbol), nil)
		}
	}

	realized, filled, err := p.applyOrderLocked(symbol, price, order.Quantity, order.Side == exchange.OrderSideBuy, order.ReduceOnly)
	if err != nil {
		return nil, err
	}
	p.wallet = p.wallet.Add(realized)
	if filled.IsPositive() {
		p.markPx[symbol] = price
	}

	orderType := order.Type
	if orderType == "" {
		orderType = exchange.OrderTypeMarket
	}
	result := exchange.OrderResult{
		OrderID:       p.nextOrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        symbol,
		Status:        "FILLED",
		Side:          order.Side,
		Type:          orderType,
		OrigQty:       order.Quantity,
		ExecutedQty:   filled,
		AvgPrice:      price,
		ReduceOnly:    order.ReduceOnly,
		UpdateTime:    p.clock(),
	}
	p.nextOrderID++
	if order.ClientOrderID != "" {
		p.filled[order.ClientOrderID] = result
	}
	return &result, nil
}

func (p *Provider) applyOrderLocked(symbol string, price, size decimal.Decimal, isBuy, reduceOnly bool) (decimal.Decimal, decimal.Decimal, error) {
	zero := decimal.Zero
	state := p.positions[symbol]
	if reduceOnly {
		if state == nil || state.Qty.IsZero() {
			return zero, zero, nil
		}
	} else if state == nil {
		state = &positionState{Symbol: symbol}
		p.positions[symbol] = state
	}

	delta := size
	if !isBuy {
		delta = size.Neg()
	}

	if reduceOnly {
		if state.Qty.Mul(delta).IsPositive() {
			return zero, zero, exchange.NewError(exchange.KindInvalidOrder, 0, "reduce-only order would increase position", nil)
		}
		if size.GreaterThan(state.Qty.Abs()) {
			size = state.Qty.Abs()
		}
		delta = size
		if !isBuy {
			delta = size.Neg()
		}
	}

	oldQty := state.Qty
	newQty := oldQty.Add(delta)

	realized := zero
	if !oldQty.IsZero() && oldQty.Mul(delta).IsNegative() {
		closeQty := decimal.Min(oldQty.Abs(), delta.Abs())
		realized = closeQty.Mul(price.Sub(state.Entry))
		if oldQty.IsNegative() {
			realized = realized.Neg()
		}
	}

	switch {
	case oldQty.IsZero():
		state.Entry = price
	case oldQty.Mul(delta).IsPositive():
		state.Entry = oldQty.Mul(state.Entry).Add(delta.Mul(price)).Div(newQty)
	case oldQty.Mul(newQty).IsNegative():
		state.Entry = price
	}

	state.Qty = newQty
	if state.Qty.IsZero() {
		delete(p.positions, symbol)
	}
	return realized, delta.Abs(), nil
}

// CancelOrder is a no-op; orders fill immediately.
func (p *Provider) CancelOrder(ctx context.Context, symbol string, orderID int64) error { return nil }

// CancelAllOrders is a no-op; orders fill immediately.
func (p *Provider) CancelAllOrders(ctx context.Context, symbol string) error { return nil }

// GetOpenOrders always returns an empty slice because fills are synchronous.
func (p *Provider) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	return nil, nil
}

// GetPositions returns open positions marked to the latest price.
func (p *Provider) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	positions, _, _ := p.snapshotLocked()
	return positions, nil
}

// ClosePosition flattens symbol at the current mark.
func (p *Provider) ClosePosition(ctx context.Context, symbol string) (*exchange.OrderResult, error) {
	symbol = canonical(symbol)
	p.mu.Lock()
	state := p.positions[symbol]
	if state == nil || state.Qty.IsZero() {
		p.mu.Unlock()
		return nil, nil
	}
	side := exchange.OrderSideSell
	if state.Qty.IsNegative() {
		side = exchange.OrderSideBuy
	}
	qty := state.Qty.Abs()
	p.mu.Unlock()

	return p.PlaceOrder(ctx, exchange.Order{
		Symbol:     symbol,
		Side:       side,
		Type:       exchange.OrderTypeMarket,
		Quantity:   qty,
		ReduceOnly: true,
	})
}

// SetLeverage stores leverage used for margin figures.
func (p *Provider) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage <= 0 {
		return fmt.Errorf("sim: leverage must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leverage[canonical(symbol)] = leverage
	return nil
}

// GetBalances reports the USDT wallet, unrealised PnL and free margin.
func (p *Provider) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, unrealized, margin := p.snapshotLocked()
	return []exchange.Balance{{
		Asset:            quoteAsset,
		WalletBalance:    p.wallet,
		AvailableBalance: p.wallet.Add(unrealized).Sub(margin),
		UnrealizedProfit: unrealized,
	}}, nil
}

func (p *Provider) resolveMarkPriceLocked(symbol string) (decimal.Decimal, bool) {
	if p.source != nil {
		if price, ok := p.source.LastPrice(symbol); ok && price > 0 {
			return decimal.NewFromFloat(price), true
		}
	}
	if price, ok := p.markPx[symbol]; ok && price.IsPositive() {
		return price, true
	}
	if state, ok := p.positions[symbol]; ok && state.Entry.IsPositive() {
		return state.Entry, true
	}
	return decimal.Zero, false
}

func (p *Provider) snapshotLocked() ([]exchange.Position, decimal.Decimal, decimal.Decimal) {
	positions := make([]exchange.Position, 0, len(p.positions))
	totalUnreal := decimal.Zero
	totalMargin := decimal.Zero

	for symbol, state := range p.positions {
		mark, ok := p.resolveMarkPriceLocked(symbol)
		if !ok {
			mark = state.Entry
		}
		unreal := state.Qty.Mul(mark.Sub(state.Entry))
		lev := p.leverage[symbol]
		if lev <= 0 {
			lev = 1
		}
		notional := state.Qty.Mul(mark).Abs()
		totalUnreal = totalUnreal.Add(unreal)
		totalMargin = totalMargin.Add(notional.Div(decimal.NewFromInt(int64(lev))))

		positions = append(positions, exchange.Position{
			Symbol:           symbol,
			Amount:           state.Qty,
			EntryPrice:       state.Entry,
			MarkPrice:        mark,
			UnrealizedProfit: unreal,
			Leverage:         lev,
			MarginType:       "cross",
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, totalUnreal, totalMargin
}
