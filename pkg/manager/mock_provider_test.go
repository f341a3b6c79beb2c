package manager

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"genetix/pkg/exchange"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) PlaceOrder(ctx context.Context, order exchange.Order) (*exchange.OrderResult, error) {
	args := m.Called(ctx, order)
	res, _ := args.Get(0).(*exchange.OrderResult)
	return res, args.Error(1)
}

func (m *mockProvider) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return m.Called(ctx, symbol, orderID).Error(0)
}

func (m *mockProvider) CancelAllOrders(ctx context.Context, symbol string) error {
	return m.Called(ctx, symbol).Error(0)
}

func (m *mockProvider) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	args := m.Called(ctx, symbol)
	res, _ := args.Get(0).([]exchange.OrderResult)
	return res, args.Error(1)
}

func (m *mockProvider) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]exchange.Position)
	return res, args.Error(1)
}

func (m *mockProvider) ClosePosition(ctx context.Context, symbol string) (*exchange.OrderResult, error) {
	args := m.Called(ctx, symbol)
	res, _ := args.Get(0).(*exchange.OrderResult)
	return res, args.Error(1)
}

func (m *mockProvider) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return m.Called(ctx, symbol, leverage).Error(0)
}

func (m *mockProvider) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]exchange.Balance)
	return res, args.Error(1)
}

type recordingPersistence struct {
	events []PositionEvent
	err    error
}

func (r *recordingPersistence) RecordPositionEvent(ctx context.Context, event PositionEvent) error {
	r.events = append(r.events, event)
	return r.err
}

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) Notify(ctx context.Context, text string) error {
	r.messages = append(r.messages, text)
	return nil
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func usdt(balance string) []exchange.Balance {
	return []exchange.Balance{
		{Asset: "BNB", WalletBalance: dec("3")},
		{Asset: "USDT", WalletBalance: dec(balance), AvailableBalance: dec(balance)},
	}
}
