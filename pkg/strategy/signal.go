package strategy

import "strings"

// Action is the scorer's recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction normalises s, defaulting to HOLD.
func ParseAction(s string) Action {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy
	case ActionSell:
		return ActionSell
	default:
		return ActionHold
	}
}

// IndicatorSnapshot records the values a signal was scored from.
type IndicatorSnapshot struct {
	SMAShort float64  `json:"sma_short"`
	SMALong  float64  `json:"sma_long"`
	RSI      float64  `json:"rsi"`
	BBUpper  float64  `json:"bb_upper"`
	BBMid    float64  `json:"bb_middle"`
	BBLower  float64  `json:"bb_lower"`
	Price    float64  `json:"price"`
	MACDHist *float64 `json:"macd_hist,omitempty"`
}

// Signal is the scored outcome for one symbol at one price.
type Signal struct {
	Symbol     string             `json:"symbol"`
	Action     Action             `json:"action"`
	Confidence float64            `json:"confidence"` // [0,1]
	Confluence float64            `json:"confluence"` // [0,10]
	Reason     string             `json:"reason"`
	Indicators *IndicatorSnapshot `json:"indicators,omitempty"`
}

// Actionable reports whether the signal asks for a trade.
func (s Signal) Actionable() bool { return s.Action == ActionBuy || s.Action == ActionSell }
