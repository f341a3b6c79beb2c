package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"genetix/pkg/exchange"
)

type orderResponse struct {
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Status        string          `json:"status"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	ReduceOnly    bool            `json:"reduceOnly"`
	UpdateTime    int64           `json:"updateTime"`
}

func (o orderResponse) toResult() exchange.OrderResult {
	return exchange.OrderResult{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Status:        o.Status,
		Side:          exchange.OrderSide(o.Side),
		Type:          exchange.OrderType(o.Type),
		OrigQty:       o.OrigQty,
		ExecutedQty:   o.ExecutedQty,
		AvgPrice:      o.AvgPrice,
		ReduceOnly:    o.ReduceOnly,
		UpdateTime:    millisToTime(o.UpdateTime),
	}
}

func orderParams(order exchange.Order) (url.Values, error) {
	if order.Symbol == "" {
		return nil, fmt.Errorf("binance: order symbol is required")
	}
	if !order.Quantity.IsPositive() {
		return nil, fmt.Errorf("binance: order quantity must be positive")
	}
	orderType := order.Type
	if orderType == "" {
		orderType = exchange.OrderTypeMarket
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(order.Symbol))
	params.Set("side", string(order.Side))
	params.Set("type", string(orderType))
	params.Set("quantity", order.Quantity.String())

	switch orderType {
	case exchange.OrderTypeLimit:
		if !order.Price.IsPositive() {
			return nil, fmt.Errorf("binance: limit order requires price")
		}
		params.Set("price", order.Price.String())
		params.Set("timeInForce", "GTC")
	case exchange.OrderTypeStop:
		if !order.Price.IsPositive() || !order.StopPrice.IsPositive() {
			return nil, fmt.Errorf("binance: stop order requires price and stop price")
		}
		params.Set("price", order.Price.String())
		params.Set("stopPrice", order.StopPrice.String())
	case exchange.OrderTypeStopMarket:
		if !order.StopPrice.IsPositive() {
			return nil, fmt.Errorf("binance: stop market order requires stop price")
		}
		params.Set("stopPrice", order.StopPrice.String())
	}
	if order.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if order.ClientOrderID != "" {
		params.Set("newClientOrderId", order.ClientOrderID)
	}
	return params, nil
}

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, order exchange.Order) (*exchange.OrderResult, error) {
	params, err := orderParams(order)
	if err != nil {
		return nil, err
	}
	raw, err := c.Execute(ctx, http.MethodPost, "/v1/order", params, true, 1)
	if err != nil {
		return nil, err
	}
	var resp orderResponse
	if err := decodeObject("order", raw, &resp); err != nil {
		return nil, err
	}
	result := resp.toResult()
	return &result, nil
}

// CancelOrder cancels a single order by exchange id.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	_, err := c.Execute(ctx, http.MethodDelete, "/v1/order", params, true, 1)
	return err
}

// CancelAllOrders cancels every open order on symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	_, err := c.Execute(ctx, http.MethodDelete, "/v1/allOpenOrders", params, true, 1)
	return err
}

// OpenOrders lists resting orders. An empty symbol queries every symbol at a higher weight.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	params := url.Values{}
	weight := 40
	if symbol != "" {
		params.Set("symbol", strings.ToUpper(symbol))
		weight = 1
	}
	raw, err := c.Execute(ctx, http.MethodGet, "/v1/openOrders", params, true, weight)
	if err != nil {
		return nil, err
	}
	return decodeOrders("openOrders", raw)
}

// OrderHistory lists recent orders for symbol.
func (c *Client) OrderHistory(ctx context.Context, symbol string, limit int) ([]exchange.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	raw, err := c.Execute(ctx, http.MethodGet, "/v1/allOrders", params, true, 5)
	if err != nil {
		return nil, err
	}
	return decodeOrders("allOrders", raw)
}

func decodeOrders(endpoint string, raw []byte) ([]exchange.OrderResult, error) {
	var entries []orderResponse
	if err := decodeArray(endpoint, raw, &entries); err != nil {
		return nil, err
	}
	out := make([]exchange.OrderResult, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toResult())
	}
	return out, nil
}

// ClosePosition flattens the live position on symbol with a reduce-only market
// order. It returns nil, nil when there is nothing to close.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (*exchange.OrderResult, error) {
	positions, err := c.PositionRisk(ctx, symbol)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	for _, pos := range positions {
		if pos.Symbol != symbol || pos.IsFlat() {
			continue
		}
		side := exchange.OrderSideSell
		if pos.Amount.IsNegative() {
			side = exchange.OrderSideBuy
		}
		return c.PlaceOrder(ctx, exchange.Order{
			Symbol:     symbol,
			Side:       side,
			Type:       exchange.OrderTypeMarket,
			Quantity:   pos.Amount.Abs(),
			ReduceOnly: true,
		})
	}
	return nil, nil
}
