package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatsResponse struct {
	Balance           float64 `json:"balance"`
	InitialBalance    float64 `json:"initial_balance"`
	DailyPnL          float64 `json:"daily_pnl"`
	DailyPnLPercent   float64 `json:"daily_pnl_percent"`
	TotalPnL          float64 `json:"total_pnl"`
	TotalPnLPercent   float64 `json:"total_pnl_percent"`
	Positions         int     `json:"positions"`
	MaxPositions      int     `json:"max_positions"`
	TradesOpened      int     `json:"trades_opened"`
	TradesClosed      int     `json:"trades_closed"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRate           float64 `json:"win_rate"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	TradingAllowed    bool    `json:"trading_allowed"`
	GateReason        string  `json:"gate_reason,omitempty"`
	Status            string  `json:"status"`
	DryRun            bool    `json:"dry_run"`
	UpdatedAt         string  `json:"updated_at"`
}

type PositionItem struct {
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	EntryPrice      float64 `json:"entry_price"`
	CurrentPrice    float64 `json:"current_price"`
	Quantity        float64 `json:"quantity"`
	Leverage        int     `json:"leverage"`
	PnL             float64 `json:"pnl"`
	PnLPercent      float64 `json:"pnl_percent"`
	EntryTime       string  `json:"entry_time"`
	DurationSeconds int64   `json:"duration_seconds"`
}

type PositionsResponse struct {
	Count     int            `json:"count"`
	Positions []PositionItem `json:"positions"`
}

type ActivityItem struct {
	Timestamp string   `json:"timestamp"`
	Symbol    string   `json:"symbol"`
	Action    string   `json:"action"`
	Side      string   `json:"side"`
	Quantity  float64  `json:"quantity"`
	Price     float64  `json:"price"`
	PnL       *float64 `json:"pnl,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Message   string   `json:"message"`
}

type ActivityResponse struct {
	Activity []ActivityItem `json:"activity"`
}
