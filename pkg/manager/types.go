package manager

import (
	"time"

	"github.com/shopspring/decimal"

	"genetix/pkg/exchange"
)

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// sideFor maps an opening order side to the resulting position side.
func sideFor(s exchange.OrderSide) Side {
	if s == exchange.OrderSideBuy {
		return SideLong
	}
	return SideShort
}

// closingSide is the order side that flattens p.
func (s Side) closingSide() exchange.OrderSide {
	if s == SideLong {
		return exchange.OrderSideSell
	}
	return exchange.OrderSideBuy
}

// CloseReason labels why a position was flattened.
type CloseReason string

const (
	ReasonStopLoss   CloseReason = "STOP_LOSS"
	ReasonTakeProfit CloseReason = "TAKE_PROFIT"
	ReasonManual     CloseReason = "MANUAL"
)

// Position is the bot's view of one open position. Size is unsigned.
type Position struct {
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Size          decimal.Decimal `json:"size"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	EntryTime     time.Time       `json:"entry_time"`
	OrderID       int64           `json:"order_id,omitempty"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Leverage      int             `json:"leverage"`
	Confidence    float64         `json:"confidence,omitempty"`
	Reconciled    bool            `json:"reconciled,omitempty"`
}

// PnL returns the unrealised profit at price.
func (p Position) PnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Side == SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(p.Size)
}

// PnLPercent returns the move from entry in percent, signed for the side.
func (p Position) PnLPercent(price decimal.Decimal) float64 {
	if p.EntryPrice.IsZero() {
		return 0
	}
	pct := price.Sub(p.EntryPrice).Div(p.EntryPrice).InexactFloat64() * 100
	if p.Side == SideShort {
		pct = -pct
	}
	return pct
}

// AccountState tracks balances in quote currency.
type AccountState struct {
	Balance           decimal.Decimal `json:"balance"`
	InitialBalance    decimal.Decimal `json:"initial_balance"`
	DailyPnL          decimal.Decimal `json:"daily_pnl"`
	DailyStartBalance decimal.Decimal `json:"daily_start_balance"`
	Day               string          `json:"day"`
}

// RiskCounters are lifetime trade statistics.
type RiskCounters struct {
	TradesOpened      int `json:"trades_opened"`
	TradesClosed      int `json:"trades_closed"`
	Wins              int `json:"wins"`
	Losses            int `json:"losses"`
	ConsecutiveLosses int `json:"consecutive_losses"`
}

// WinRate returns wins / closed in percent.
func (c RiskCounters) WinRate() float64 {
	if c.TradesClosed == 0 {
		return 0
	}
	return float64(c.Wins) / float64(c.TradesClosed) * 100
}

// TradeAction distinguishes entries from exits in the trade log.
type TradeAction string

const (
	TradeOpen  TradeAction = "OPEN"
	TradeClose TradeAction = "CLOSE"
)

// TradeEntry is one append-only trade log record.
type TradeEntry struct {
	Timestamp  time.Time          `json:"timestamp"`
	Symbol     string             `json:"symbol"`
	Action     TradeAction        `json:"action"`
	Side       exchange.OrderSide `json:"side"`
	Quantity   decimal.Decimal    `json:"quantity"`
	Price      decimal.Decimal    `json:"price"`
	PnL        *decimal.Decimal   `json:"pnl,omitempty"`
	PnLPercent *float64           `json:"pnl_percent,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	Confluence float64            `json:"confluence,omitempty"`
	OrderID    int64              `json:"order_id,omitempty"`
}

// GateResult is the outcome of the pre-trade risk gate.
type GateResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
