package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Core trading domain types shared across exchange implementations.
// Quantities and prices are decimals because they feed account accounting.

// OrderSide represents order direction.
type OrderSide string

const (
	// OrderSideBuy executes a buy.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell executes a sell.
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the side that reduces a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType enumerates the futures order types the bot can submit.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStop       OrderType = "STOP"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

// Order describes a normalized order request.
type Order struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal // LIMIT / STOP only
	StopPrice     decimal.Decimal // STOP / STOP_MARKET only
	ReduceOnly    bool
	ClientOrderID string // reused across retries of one attempt for venue-side dedupe
}

// OrderResult is the acknowledgement returned after submitting an order.
type OrderResult struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Status        string
	Side          OrderSide
	Type          OrderType
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	AvgPrice      decimal.Decimal
	ReduceOnly    bool
	UpdateTime    time.Time
}

// Position captures a live position as reported by the venue.
type Position struct {
	Symbol           string
	Amount           decimal.Decimal // signed: positive long, negative short
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	UnrealizedProfit decimal.Decimal
	Leverage         int
	MarginType       string
}

// IsFlat reports whether the position carries no exposure.
func (p Position) IsFlat() bool { return p.Amount.IsZero() }

// Balance describes one asset of the futures wallet.
type Balance struct {
	Asset            string
	WalletBalance    decimal.Decimal
	AvailableBalance decimal.Decimal
	UnrealizedProfit decimal.Decimal
}

// SymbolInfo carries the trading rules needed to size orders.
type SymbolInfo struct {
	Symbol            string
	Status            string
	BaseAsset         string
	QuoteAsset        string
	PricePrecision    int
	QuantityPrecision int
}

// FundingRate is the current perpetual funding state for a symbol.
type FundingRate struct {
	Symbol          string
	Rate            decimal.Decimal
	MarkPrice       decimal.Decimal
	NextFundingTime time.Time
}
