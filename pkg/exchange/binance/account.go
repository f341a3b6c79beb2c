package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"genetix/pkg/exchange"
)

type accountAsset struct {
	Asset            string          `json:"asset"`
	WalletBalance    decimal.Decimal `json:"walletBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	UnrealizedProfit decimal.Decimal `json:"unrealizedProfit"`
}

// AccountInfo is the subset of /v2/account the bot consumes.
type AccountInfo struct {
	TotalWalletBalance decimal.Decimal `json:"totalWalletBalance"`
	AvailableBalance   decimal.Decimal `json:"availableBalance"`
	Assets             []accountAsset  `json:"assets"`
}

// Balances converts the asset list into exchange balances.
func (a *AccountInfo) Balances() []exchange.Balance {
	out := make([]exchange.Balance, 0, len(a.Assets))
	for _, asset := range a.Assets {
		out = append(out, exchange.Balance{
			Asset:            asset.Asset,
			WalletBalance:    asset.WalletBalance,
			AvailableBalance: asset.AvailableBalance,
			UnrealizedProfit: asset.UnrealizedProfit,
		})
	}
	return out
}

// Account fetches wallet information.
func (c *Client) Account(ctx context.Context) (*AccountInfo, error) {
	raw, err := c.Execute(ctx, http.MethodGet, "/v2/account", nil, true, 5)
	if err != nil {
		return nil, err
	}
	var out AccountInfo
	if err := decodeObject("account", raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type positionRiskEntry struct {
	Symbol           string          `json:"symbol"`
	PositionAmt      decimal.Decimal `json:"positionAmt"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	UnRealizedProfit decimal.Decimal `json:"unRealizedProfit"`
	Leverage         string          `json:"leverage"`
	MarginType       string          `json:"marginType"`
}

// PositionRisk returns position entries, optionally for a single symbol.
// Flat entries are included; callers filter with Position.IsFlat.
func (c *Client) PositionRisk(ctx context.Context, symbol string) ([]exchange.Position, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", strings.ToUpper(symbol))
	}
	raw, err := c.Execute(ctx, http.MethodGet, "/v2/positionRisk", params, true, 5)
	if err != nil {
		return nil, err
	}
	var entries []positionRiskEntry
	if err := decodeArray("positionRisk", raw, &entries); err != nil {
		return nil, err
	}
	out := make([]exchange.Position, 0, len(entries))
	for _, e := range entries {
		leverage, _ := strconv.Atoi(e.Leverage)
		out = append(out, exchange.Position{
			Symbol:           e.Symbol,
			Amount:           e.PositionAmt,
			EntryPrice:       e.EntryPrice,
			MarkPrice:        e.MarkPrice,
			UnrealizedProfit: e.UnRealizedProfit,
			Leverage:         leverage,
			MarginType:       e.MarginType,
		})
	}
	return out, nil
}

// SetLeverage changes the initial leverage for symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("leverage", strconv.Itoa(leverage))
	_, err := c.Execute(ctx, http.MethodPost, "/v1/leverage", params, true, 1)
	return err
}

// SetMarginType switches symbol between ISOLATED and CROSSED margin.
func (c *Client) SetMarginType(ctx context.Context, symbol, marginType string) error {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("marginType", strings.ToUpper(marginType))
	_, err := c.Execute(ctx, http.MethodPost, "/v1/marginType", params, true, 1)
	return err
}
