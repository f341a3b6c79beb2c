package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genetix/pkg/exchange"
	"genetix/pkg/exchange/ratelimit"
)

const (
	testKey    = "test-key"
	testSecret = "test-secret"
)

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *recordingSleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) (*Client, *recordingSleeper) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sleeper := &recordingSleeper{}
	base := []ClientOption{
		WithBaseURL(srv.URL),
		WithSleeper(sleeper.Sleep),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	}
	return NewClient(testKey, testSecret, true, append(base, opts...)...), sleeper
}

func expectedSignature(payload string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestExecuteSignsQueryAndSendsAPIKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testKey, r.Header.Get("X-MBX-APIKEY"))
		raw := r.URL.RawQuery
		idx := strings.LastIndex(raw, "&signature=")
		if assert.Positive(t, idx) {
			assert.Equal(t, expectedSignature(raw[:idx]), raw[idx+len("&signature="):])
		}
		assert.Equal(t, "1700000000000", r.URL.Query().Get("timestamp"))
		assert.Equal(t, "5000", r.URL.Query().Get("recvWindow"))
		_, _ = w.Write([]byte(`{"assets":[{"asset":"USDT","walletBalance":"1000.50"}]}`))
	}, WithRecvWindow(5*time.Second))

	info, err := client.Account(context.Background())
	require.NoError(t, err)
	bal, ok := exchange.FindBalance(info.Balances(), "USDT")
	require.True(t, ok)
	require.True(t, decimal.RequireFromString("1000.50").Equal(bal.WalletBalance))
}

func TestExecuteUnsignedOmitsSignature(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("signature"))
		assert.Empty(t, r.URL.Query().Get("timestamp"))
		assert.Equal(t, "/v1/time", r.URL.Path)
		_, _ = w.Write([]byte(`{"serverTime":1700000000123}`))
	})

	ts, err := client.ServerTime(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1700000000123), ts.UnixMilli())
}

func TestExecuteRateLimitedHonoursRetryAfter(t *testing.T) {
	var calls int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Execute(context.Background(), http.MethodGet, "/v1/time", nil, false, 1)
	require.Error(t, err)
	require.True(t, exchange.IsKind(err, exchange.KindRateLimited))

	var exErr *exchange.Error
	require.ErrorAs(t, err, &exErr)
	require.Equal(t, 7*time.Second, exErr.RetryAfter)
	require.Equal(t, []time.Duration{7 * time.Second}, sleeper.Calls())
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExecuteRateLimitedDefaultWait(t *testing.T) {
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Execute(context.Background(), http.MethodGet, "/v1/time", nil, false, 1)
	require.True(t, exchange.IsKind(err, exchange.KindRateLimited))
	require.Equal(t, []time.Duration{time.Minute}, sleeper.Calls())
}

func TestExecuteTeapotIsImmediateRateLimit(t *testing.T) {
	var calls int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTeapot)
	})

	_, err := client.Execute(context.Background(), http.MethodGet, "/v1/time", nil, false, 1)
	require.True(t, exchange.IsKind(err, exchange.KindRateLimited))
	require.Empty(t, sleeper.Calls())
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExecuteClassifiesClientErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   exchange.ErrorKind
	}{
		{"insufficient balance", http.StatusBadRequest, `{"code":-1000,"msg":"Account has insufficient balance for requested action."}`, exchange.KindInsufficientBalance},
		{"margin insufficient code", http.StatusBadRequest, `{"code":-2019,"msg":"Margin is insufficient."}`, exchange.KindInsufficientBalance},
		{"invalid quantity", http.StatusBadRequest, `{"code":-1111,"msg":"Precision is over the maximum defined for this asset. quantity"}`, exchange.KindInvalidOrder},
		{"order rejected", http.StatusBadRequest, `{"code":-2010,"msg":"Order would immediately trigger."}`, exchange.KindInvalidOrder},
		{"bad api key", http.StatusUnauthorized, `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`, exchange.KindAPI},
		{"forbidden non json", http.StatusForbidden, `forbidden`, exchange.KindAPI},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Execute(context.Background(), http.MethodPost, "/v1/order", nil, true, 1)
			require.Error(t, err)
			require.Equal(t, tc.kind, exchange.KindOf(err), err.Error())
			require.EqualValues(t, 1, atomic.LoadInt32(&calls), "client errors must not be retried")
			require.Empty(t, sleeper.Calls())
		})
	}
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	var calls int32
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"serverTime":1}`))
	})

	raw, err := client.Execute(context.Background(), http.MethodGet, "/v1/time", nil, false, 1)
	require.NoError(t, err)
	require.JSONEq(t, `{"serverTime":1}`, string(raw))
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.Calls())
}

func TestExecuteExhaustedServerErrorsIsNetwork(t *testing.T) {
	var calls int32
	limiter := ratelimit.New()
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithLimiter(limiter))

	_, err := client.Execute(context.Background(), http.MethodGet, "/v1/time", nil, false, 3)
	require.True(t, exchange.IsKind(err, exchange.KindNetwork))
	require.True(t, exchange.IsTransient(err))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
	require.Len(t, sleeper.Calls(), 2)

	requests, weight := limiter.Usage()
	require.Equal(t, 1, requests, "limiter admits once per call, not per attempt")
	require.Equal(t, 3, weight)
}

func TestExecuteTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	sleeper := &recordingSleeper{}
	client := NewClient(testKey, testSecret, true, WithBaseURL(base), WithSleeper(sleeper.Sleep), WithMaxAttempts(2))
	_, err := client.Execute(context.Background(), http.MethodGet, "/v1/time", nil, false, 1)
	require.True(t, exchange.IsKind(err, exchange.KindNetwork))
	require.Equal(t, []time.Duration{time.Second}, sleeper.Calls())
}

func TestExecuteOtherStatusIsAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`not found`))
	})
	_, err := client.Execute(context.Background(), http.MethodGet, "/v1/nope", nil, false, 1)
	require.Equal(t, exchange.KindAPI, exchange.KindOf(err))
}

func TestAccountRejectsWrongShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := client.Account(context.Background())
	require.ErrorIs(t, err, exchange.ErrUnexpectedShape)
}

func TestPlaceOrderEncodesParameters(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "SELL", q.Get("side"))
		assert.Equal(t, "LIMIT", q.Get("type"))
		assert.Equal(t, "0.005", q.Get("quantity"))
		assert.Equal(t, "65000.5", q.Get("price"))
		assert.Equal(t, "GTC", q.Get("timeInForce"))
		assert.Equal(t, "true", q.Get("reduceOnly"))
		assert.Equal(t, "gx-1", q.Get("newClientOrderId"))
		_, _ = w.Write([]byte(`{"orderId":42,"clientOrderId":"gx-1","symbol":"BTCUSDT","status":"NEW","side":"SELL","type":"LIMIT","origQty":"0.005","executedQty":"0","avgPrice":"0","reduceOnly":true,"updateTime":1700000000000}`))
	})

	res, err := client.PlaceOrder(context.Background(), exchange.Order{
		Symbol:        "btcusdt",
		Side:          exchange.OrderSideSell,
		Type:          exchange.OrderTypeLimit,
		Quantity:      decimal.RequireFromString("0.005"),
		Price:         decimal.RequireFromString("65000.5"),
		ReduceOnly:    true,
		ClientOrderID: "gx-1",
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), res.OrderID)
	require.Equal(t, exchange.OrderSideSell, res.Side)
	require.True(t, res.ReduceOnly)
}

func TestPlaceOrderValidatesLocally(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	_, err := client.PlaceOrder(context.Background(), exchange.Order{Symbol: "BTCUSDT", Side: exchange.OrderSideBuy})
	require.Error(t, err)
	_, err = client.PlaceOrder(context.Background(), exchange.Order{
		Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Type: exchange.OrderTypeLimit, Quantity: decimal.NewFromInt(1),
	})
	require.Error(t, err)
}

func TestPositionRiskAndClosePosition(t *testing.T) {
	var placed int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/positionRisk":
			_, _ = w.Write([]byte(`[{"symbol":"ETHUSDT","positionAmt":"-0.250","entryPrice":"3000.0","markPrice":"2990.0","unRealizedProfit":"2.5","leverage":"10","marginType":"cross"}]`))
		case "/v1/order":
			atomic.AddInt32(&placed, 1)
			q := r.URL.Query()
			assert.Equal(t, "BUY", q.Get("side"))
			assert.Equal(t, "MARKET", q.Get("type"))
			assert.Equal(t, "0.25", q.Get("quantity"))
			assert.Equal(t, "true", q.Get("reduceOnly"))
			_, _ = w.Write([]byte(`{"orderId":7,"symbol":"ETHUSDT","status":"FILLED","side":"BUY","type":"MARKET"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	positions, err := client.PositionRisk(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, 10, positions[0].Leverage)
	require.True(t, positions[0].Amount.IsNegative())

	res, err := client.ClosePosition(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.Equal(t, int64(7), res.OrderID)
	require.EqualValues(t, 1, atomic.LoadInt32(&placed))
}

func TestFundingRate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","markPrice":"65000.1","lastFundingRate":"0.0001","nextFundingTime":1700000000000}`))
	})
	fr, err := client.FundingRate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, "0.0001", fr.Rate.String())
	require.Equal(t, int64(1700000000000), fr.NextFundingTime.UnixMilli())
}

func TestProviderRegisteredWithConfig(t *testing.T) {
	p, err := exchange.GetProvider("binance", &exchange.ProviderConfig{APIKey: "k", APISecret: "s", Testnet: true})
	require.NoError(t, err)
	bp, ok := p.(*Provider)
	require.True(t, ok)
	require.Equal(t, testnetBaseURL, bp.Client().BaseURL())

	_, err = exchange.GetProvider("binance", &exchange.ProviderConfig{})
	require.Error(t, err)
}
