package market

import "time"

// PriceSample is one observed price for a symbol.
type PriceSample struct {
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	Time   time.Time `json:"time"`
}

// Candle is a parsed kline.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Ticker is the latest pushed state for a symbol: last price and volume from
// the 24h ticker stream, mark price from the mark price stream.
type Ticker struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Volume        float64   `json:"volume"`
	PriceChange   float64   `json:"price_change"` // 24h absolute change
	UpdatedAt     time.Time `json:"updated_at"`
	MarkPrice     float64   `json:"mark_price,omitempty"`
	MarkUpdatedAt time.Time `json:"mark_updated_at"`
}
