package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"genetix/pkg/exchange"
)

// ServerTime returns the exchange clock; used as the connectivity check.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	raw, err := c.Execute(ctx, http.MethodGet, "/v1/time", nil, false, 1)
	if err != nil {
		return time.Time{}, err
	}
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := decodeObject("time", raw, &out); err != nil {
		return time.Time{}, err
	}
	return millisToTime(out.ServerTime), nil
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		BaseAsset         string `json:"baseAsset"`
		QuoteAsset        string `json:"quoteAsset"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
	} `json:"symbols"`
}

// ExchangeInfo lists trading rules for every symbol.
func (c *Client) ExchangeInfo(ctx context.Context) ([]exchange.SymbolInfo, error) {
	raw, err := c.Execute(ctx, http.MethodGet, "/v1/exchangeInfo", nil, false, 1)
	if err != nil {
		return nil, err
	}
	var resp exchangeInfoResponse
	if err := decodeObject("exchangeInfo", raw, &resp); err != nil {
		return nil, err
	}
	out := make([]exchange.SymbolInfo, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		out = append(out, exchange.SymbolInfo{
			Symbol:            s.Symbol,
			Status:            s.Status,
			BaseAsset:         s.BaseAsset,
			QuoteAsset:        s.QuoteAsset,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		})
	}
	return out, nil
}

// SymbolInfo returns the trading rules for one symbol.
func (c *Client) SymbolInfo(ctx context.Context, symbol string) (*exchange.SymbolInfo, error) {
	infos, err := c.ExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	for i := range infos {
		if infos[i].Symbol == symbol {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("binance: symbol %s not listed", symbol)
}

// TickerPrice returns the raw /v1/ticker/price payload. The body may be an
// object or a list depending on whether symbol is set.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (json.RawMessage, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", strings.ToUpper(symbol))
	}
	return c.Execute(ctx, http.MethodGet, "/v1/ticker/price", params, false, 1)
}

// Klines returns the raw candle array for symbol.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return c.Execute(ctx, http.MethodGet, "/v1/klines", params, false, 1)
}

// FundingRate reads the premium index for symbol.
func (c *Client) FundingRate(ctx context.Context, symbol string) (*exchange.FundingRate, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	raw, err := c.Execute(ctx, http.MethodGet, "/v1/premiumIndex", params, false, 1)
	if err != nil {
		return nil, err
	}
	var out struct {
		Symbol          string          `json:"symbol"`
		MarkPrice       decimal.Decimal `json:"markPrice"`
		LastFundingRate decimal.Decimal `json:"lastFundingRate"`
		NextFundingTime int64           `json:"nextFundingTime"`
	}
	if err := decodeObject("premiumIndex", raw, &out); err != nil {
		return nil, err
	}
	return &exchange.FundingRate{
		Symbol:          out.Symbol,
		Rate:            out.LastFundingRate,
		MarkPrice:       out.MarkPrice,
		NextFundingTime: millisToTime(out.NextFundingTime),
	}, nil
}
