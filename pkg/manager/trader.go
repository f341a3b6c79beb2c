package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"genetix/pkg/exchange"
	"genetix/pkg/strategy"
)

const (
	openAttempts  = 2
	rateLimitWait = 10 * time.Second
	networkWait   = 3 * time.Second
)

// Evaluate opens a position on symbol when sig is actionable, confident
// enough and the risk gate allows it. It reports whether a position was
// opened. On error no state changes.
func (m *Manager) Evaluate(ctx context.Context, symbol string, sig strategy.Signal, price float64) (bool, error) {
	if !m.initialized {
		return false, ErrNotInitialized
	}
	if m.HasPosition(symbol) || !sig.Actionable() || sig.Confidence < m.cfg.Risk.MinConfidence {
		return false, nil
	}
	gate := m.RiskGate()
	m.observeGate(ctx, gate)
	if !gate.Allowed {
		m.recorder.GateRejected(gate.Reason)
		logx.WithContext(ctx).Infof("manager: risk gate blocked %s %s: %s", symbol, sig.Action, gate.Reason)
		return false, nil
	}

	px := decimal.NewFromFloat(price)
	if !px.IsPositive() {
		return false, fmt.Errorf("manager: invalid price %v for %s", price, symbol)
	}
	qty := m.PositionSize(symbol, px)
	if !qty.IsPositive() {
		logx.WithContext(ctx).Infof("manager: position too small symbol=%s price=%s", symbol, px)
		return false, nil
	}

	if lev := m.cfg.Trading.Leverage; lev > 0 {
		if err := m.provider.SetLeverage(ctx, symbol, lev); err != nil {
			logx.WithContext(ctx).Infof("manager: set leverage symbol=%s leverage=%d: %v", symbol, lev, err)
		}
	}

	side := exchange.OrderSideBuy
	if sig.Action == strategy.ActionSell {
		side = exchange.OrderSideSell
	}
	order := exchange.Order{
		Symbol:        symbol,
		Side:          side,
		Type:          exchange.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: m.newID(),
	}
	result, err := m.submitOpen(ctx, order)
	if err != nil {
		return false, fmt.Errorf("manager: open %s %s: %w", symbol, side, err)
	}

	now := m.clock()
	pos := &Position{
		Symbol:        symbol,
		Side:          sideFor(side),
		Size:          qty,
		EntryPrice:    px,
		EntryTime:     now,
		ClientOrderID: order.ClientOrderID,
		Leverage:      m.cfg.Trading.Leverage,
		Confidence:    sig.Confidence,
	}
	if result != nil {
		pos.OrderID = result.OrderID
	}
	m.positions[symbol] = pos
	m.counters.TradesOpened++

	trade := TradeEntry{
		Timestamp:  now,
		Symbol:     symbol,
		Action:     TradeOpen,
		Side:       side,
		Quantity:   qty,
		Price:      px,
		Confidence: sig.Confidence,
		Confluence: sig.Confluence,
		OrderID:    pos.OrderID,
	}
	m.appendTrade(trade)

	logx.WithContext(ctx).Infof("manager: position opened %s %s %s @ %s conf=%.2f confluence=%.2f",
		symbol, side, qty, px.StringFixed(2), sig.Confidence, sig.Confluence)
	m.recorder.PositionOpened(symbol, pos.Side)
	m.emit(ctx, PositionEvent{Event: PositionEventOpen, Position: *pos, Trade: trade, OccurredAt: now})
	m.notify(ctx, fmt.Sprintf("OPEN %s %s %s @ %s (confidence %.0f%%, confluence %.2f)",
		symbol, pos.Side, qty, px.StringFixed(2), sig.Confidence*100, sig.Confluence))
	return true, nil
}

// submitOpen places order, waiting and retrying once on rate limits and
// network errors. The client order id is reused so the venue can dedupe.
func (m *Manager) submitOpen(ctx context.Context, order exchange.Order) (*exchange.OrderResult, error) {
	for attempt := 1; ; attempt++ {
		m.recorder.OrderSubmitted(order.Symbol, order.Side, order.ReduceOnly)
		result, err := m.provider.PlaceOrder(ctx, order)
		if err == nil {
			return result, nil
		}
		kind := exchange.KindOf(err)
		m.recorder.OrderFailed(order.Symbol, kind)

		var wait time.Duration
		switch kind {
		case exchange.KindRateLimited:
			wait = rateLimitWait
		case exchange.KindNetwork:
			wait = networkWait
		default:
			return nil, err
		}
		if attempt >= openAttempts {
			return nil, err
		}
		logx.WithContext(ctx).Infof("manager: open %s %s failed (%s), retrying in %s", order.Symbol, order.Side, kind, wait)
		if err := m.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// Manage closes the position on symbol when price crosses the stop-loss or
// take-profit threshold. It reports whether a close was attempted.
func (m *Manager) Manage(ctx context.Context, symbol string, price float64) (bool, error) {
	pos, ok := m.positions[symbol]
	if !ok {
		return false, nil
	}
	px := decimal.NewFromFloat(price)
	if !px.IsPositive() {
		return false, fmt.Errorf("manager: invalid price %v for %s", price, symbol)
	}
	pct := pos.PnLPercent(px)
	switch {
	case pct <= -m.cfg.Trading.StopLossPercent:
		logx.WithContext(ctx).Infof("manager: stop loss %s pnl=%.2f%%", symbol, pct)
		return true, m.Close(ctx, symbol, price, ReasonStopLoss)
	case pct >= m.cfg.Trading.TakeProfitPercent:
		logx.WithContext(ctx).Infof("manager: take profit %s pnl=%.2f%%", symbol, pct)
		return true, m.Close(ctx, symbol, price, ReasonTakeProfit)
	}
	return false, nil
}

// Close flattens the position on symbol with one reduce-only market order
// and books the realised PnL at price. On error no state changes.
func (m *Manager) Close(ctx context.Context, symbol string, price float64, reason CloseReason) error {
	pos, ok := m.positions[symbol]
	if !ok {
		return fmt.Errorf("manager: no open position on %s", symbol)
	}
	px := decimal.NewFromFloat(price)
	if !px.IsPositive() {
		return fmt.Errorf("manager: invalid price %v for %s", price, symbol)
	}

	order := exchange.Order{
		Symbol:        symbol,
		Side:          pos.Side.closingSide(),
		Type:          exchange.OrderTypeMarket,
		Quantity:      pos.Size,
		ReduceOnly:    true,
		ClientOrderID: m.newID(),
	}
	m.recorder.OrderSubmitted(symbol, order.Side, true)
	result, err := m.provider.PlaceOrder(ctx, order)
	if err != nil {
		m.recorder.OrderFailed(symbol, exchange.KindOf(err))
		return fmt.Errorf("manager: close %s: %w", symbol, err)
	}

	pnl := pos.PnL(px)
	before := m.account.Balance
	pnlPct := 0.0
	if before.IsPositive() {
		pnlPct = pnl.Div(before).Mul(hundred).InexactFloat64()
	}
	m.account.Balance = before.Add(pnl)
	m.account.DailyPnL = m.account.DailyPnL.Add(pnl)

	m.counters.TradesClosed++
	if pnl.IsPositive() {
		m.counters.Wins++
		m.counters.ConsecutiveLosses = 0
	} else {
		m.counters.Losses++
		m.counters.ConsecutiveLosses++
	}

	now := m.clock()
	trade := TradeEntry{
		Timestamp:  now,
		Symbol:     symbol,
		Action:     TradeClose,
		Side:       order.Side,
		Quantity:   pos.Size,
		Price:      px,
		PnL:        &pnl,
		PnLPercent: &pnlPct,
		Reason:     string(reason),
	}
	if result != nil {
		trade.OrderID = result.OrderID
	}
	m.appendTrade(trade)
	closed := *pos
	delete(m.positions, symbol)

	logx.WithContext(ctx).Infof("manager: position closed %s %s pnl=%s (%+.2f%%) entry=%s exit=%s",
		symbol, reason, pnl.StringFixed(2), pnlPct, closed.EntryPrice.StringFixed(2), px.StringFixed(2))
	m.recorder.PositionClosed(symbol, reason, pnl.InexactFloat64())
	m.emit(ctx, PositionEvent{
		Event:      PositionEventClose,
		Position:   closed,
		Trade:      trade,
		Reason:     reason,
		Balance:    m.account.Balance.InexactFloat64(),
		OccurredAt: now,
	})
	m.notify(ctx, fmt.Sprintf("CLOSE %s %s pnl %s USDT (%+.2f%%), balance %s",
		symbol, reason, pnl.StringFixed(2), pnlPct, m.account.Balance.StringFixed(2)))
	m.observeGate(ctx, m.RiskGate())
	return nil
}

func (m *Manager) emit(ctx context.Context, ev PositionEvent) {
	err := m.persistence.RecordPositionEvent(ctx, ev)
	logPersistenceError(ctx, err, "record position event", map[string]any{
		"symbol": ev.Position.Symbol,
		"event":  ev.Event,
	})
}

// observeGate notifies when the gate starts blocking for a reason other than
// a full book, and again when it clears.
func (m *Manager) observeGate(ctx context.Context, gate GateResult) {
	blocked := !gate.Allowed && len(m.positions) < m.cfg.Trading.MaxPositions
	switch {
	case blocked && !m.gateBlocked:
		m.gateBlocked = true
		m.notify(ctx, "RISK GATE: "+gate.Reason)
	case !blocked && m.gateBlocked && gate.Allowed:
		m.gateBlocked = false
		m.notify(ctx, "RISK GATE cleared")
	}
}
