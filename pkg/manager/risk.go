package manager

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RiskGate decides whether a new position may be opened. It has no side
// effects.
func (m *Manager) RiskGate() GateResult {
	t, r := m.cfg.Trading, m.cfg.Risk
	if len(m.positions) >= t.MaxPositions {
		return GateResult{Reason: fmt.Sprintf("max positions reached (%d/%d)", len(m.positions), t.MaxPositions)}
	}
	daily := m.account.DailyPnL
	if daily.LessThanOrEqual(decimal.NewFromFloat(-r.MaxDailyLossUSD)) {
		return GateResult{Reason: fmt.Sprintf("daily loss limit hit (%s USD)", daily.StringFixed(2))}
	}
	if start := m.account.DailyStartBalance; start.IsPositive() {
		pct := daily.Div(start).Mul(hundred).InexactFloat64()
		if pct <= -r.MaxDailyLossPercent {
			return GateResult{Reason: fmt.Sprintf("daily loss percent limit hit (%.2f%%)", pct)}
		}
	}
	if r.CircuitBreaker.Enabled && m.counters.ConsecutiveLosses >= r.CircuitBreaker.MaxConsecutiveLosses {
		return GateResult{Reason: fmt.Sprintf("circuit breaker: %d consecutive losses", m.counters.ConsecutiveLosses)}
	}
	return GateResult{Allowed: true}
}

// PositionSize returns the order quantity for symbol at price, rounded down to
// the symbol's quantity precision. Zero means the position would be below
// min_position_usd.
func (m *Manager) PositionSize(symbol string, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	t := m.cfg.Trading
	prec := m.cfg.QuantityPrecision(symbol)

	alloc := m.account.Balance.
		Mul(decimal.NewFromFloat(t.BasePositionPercent)).Div(hundred).
		Mul(decimal.NewFromFloat(m.cfg.Weight(symbol)))
	qty := alloc.Div(price).Truncate(prec)

	notional := qty.Mul(price)
	switch {
	case notional.GreaterThan(decimal.NewFromFloat(t.MaxPositionUSD)):
		qty = decimal.NewFromFloat(t.MaxPositionUSD).Div(price).Truncate(prec)
	case notional.LessThan(decimal.NewFromFloat(t.MinPositionUSD)):
		return decimal.Zero
	}
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return qty
}
