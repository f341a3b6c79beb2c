package binance

import (
	"context"
	"net/http"

	"genetix/pkg/exchange"
	"genetix/pkg/exchange/ratelimit"
)

// Provider wraps Client to satisfy the exchange.Provider interface.
type Provider struct {
	client *Client
}

// NewProvider constructs a Binance futures provider.
func NewProvider(apiKey, apiSecret string, isTestnet bool, opts ...ClientOption) *Provider {
	return &Provider{client: NewClient(apiKey, apiSecret, isTestnet, opts...)}
}

// NewProviderFromConfig builds a provider from exchange.yaml settings.
func NewProviderFromConfig(cfg *exchange.ProviderConfig) *Provider {
	return NewProvider(cfg.APIKey, cfg.APISecret, cfg.Testnet, optionsFromConfig(cfg)...)
}

// Client exposes the underlying REST client for market data and diagnostics.
func (p *Provider) Client() *Client { return p.client }

func init() {
	exchange.RegisterProvider("binance", func(name string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		return NewProviderFromConfig(cfg), nil
	})
}

func optionsFromConfig(cfg *exchange.ProviderConfig) []ClientOption {
	opts := []ClientOption{}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.RecvWindow > 0 {
		opts = append(opts, WithRecvWindow(cfg.RecvWindow))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.RateLimit.MaxRequests > 0 || cfg.RateLimit.MaxWeight > 0 {
		opts = append(opts, WithLimiter(ratelimit.New(ratelimit.WithCaps(cfg.RateLimit.MaxRequests, cfg.RateLimit.MaxWeight))))
	}
	return opts
}

// PlaceOrder delegates to the underlying client.
func (p *Provider) PlaceOrder(ctx context.Context, order exchange.Order) (*exchange.OrderResult, error) {
	return p.client.PlaceOrder(ctx, order)
}

// CancelOrder cancels a single order.
func (p *Provider) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return p.client.CancelOrder(ctx, symbol, orderID)
}

// CancelAllOrders cancels every resting order on symbol.
func (p *Provider) CancelAllOrders(ctx context.Context, symbol string) error {
	return p.client.CancelAllOrders(ctx, symbol)
}

// GetOpenOrders returns currently resting orders.
func (p *Provider) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	return p.client.OpenOrders(ctx, symbol)
}

// GetPositions returns non-flat positions across all symbols.
func (p *Provider) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	all, err := p.client.PositionRisk(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]exchange.Position, 0, len(all))
	for _, pos := range all {
		if !pos.IsFlat() {
			out = append(out, pos)
		}
	}
	return out, nil
}

// ClosePosition flattens the position on symbol.
func (p *Provider) ClosePosition(ctx context.Context, symbol string) (*exchange.OrderResult, error) {
	return p.client.ClosePosition(ctx, symbol)
}

// SetLeverage updates leverage configuration.
func (p *Provider) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return p.client.SetLeverage(ctx, symbol, leverage)
}

// GetBalances returns wallet balances from the account endpoint.
func (p *Provider) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	info, err := p.client.Account(ctx)
	if err != nil {
		return nil, err
	}
	return info.Balances(), nil
}
