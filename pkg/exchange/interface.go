package exchange

import "context"

// Provider exposes trading capabilities in an exchange-agnostic fashion.
type Provider interface {
	// Order management.
	PlaceOrder(ctx context.Context, order Order) (*OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	CancelAllOrders(ctx context.Context, symbol string) error
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error)

	// Position management.
	GetPositions(ctx context.Context) ([]Position, error)
	ClosePosition(ctx context.Context, symbol string) (*OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// Account information.
	GetBalances(ctx context.Context) ([]Balance, error)
}

// FindBalance returns the balance entry for asset, if present.
func FindBalance(balances []Balance, asset string) (Balance, bool) {
	for _, b := range balances {
		if b.Asset == asset {
			return b, true
		}
	}
	return Balance{}, false
}
