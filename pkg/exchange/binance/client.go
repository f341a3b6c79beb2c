package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/pkg/exchange"
	"genetix/pkg/exchange/ratelimit"
)

const (
	testnetBaseURL = "https://testnet.binancefuture.com/fapi"
	mainnetBaseURL = "https://fapi.binance.com/fapi"

	defaultHTTPTimeout     = 10 * time.Second
	defaultMaxAttempts     = 3
	defaultRateLimitWait   = 60 * time.Second
	apiKeyHeader           = "X-MBX-APIKEY"
	insufficientMarginCode = -2019
)

// Client executes rate-limited, signed requests against the futures REST API.
type Client struct {
	apiKey      string
	apiSecret   []byte
	baseURL     string
	recvWindow  time.Duration
	maxAttempts int

	httpClient *http.Client
	limiter    *ratelimit.Limiter
	clock      func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientOption customises the Binance client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL points the client at a different REST root (including the /fapi prefix).
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithLimiter shares a limiter between clients.
func WithLimiter(l *ratelimit.Limiter) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithMaxAttempts bounds retries of transport failures and 5xx responses.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRecvWindow sets the recvWindow sent with signed requests.
func WithRecvWindow(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.recvWindow = d
		}
	}
}

// WithClock overrides the time source used for request timestamps (primarily for testing).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSleeper overrides how the client waits between attempts (primarily for testing).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient constructs a client for the futures testnet or mainnet.
func NewClient(apiKey, apiSecret string, isTestnet bool, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:      apiKey,
		apiSecret:   []byte(apiSecret),
		baseURL:     mainnetBaseURL,
		maxAttempts: defaultMaxAttempts,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		clock:       time.Now,
		sleep:       ratelimit.Sleep,
	}
	if isTestnet {
		client.baseURL = testnetBaseURL
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.limiter == nil {
		client.limiter = ratelimit.New()
	}
	return client
}

// BaseURL returns the REST root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Execute admits the request through the limiter, sends it with retries and
// returns the raw body of a 2xx response. Failures are *exchange.Error values.
func (c *Client) Execute(ctx context.Context, method, endpoint string, params url.Values, signed bool, weight int) (json.RawMessage, error) {
	if err := c.limiter.Admit(ctx, weight); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		req, err := c.newRequest(ctx, method, endpoint, params, signed)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logx.WithContext(ctx).Infof("binance: %s %s attempt=%d transport err=%v", method, endpoint, attempt+1, err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("read response: %w", readErr)
			case resp.StatusCode >= http.StatusOK && resp.StatusCode < 300:
				return json.RawMessage(body), nil
			case resp.StatusCode == http.StatusTooManyRequests:
				wait := parseRetryAfter(resp.Header.Get("Retry-After"))
				logx.WithContext(ctx).Errorf("binance: %s %s rate limited, waiting %s", method, endpoint, wait)
				if err := c.sleep(ctx, wait); err != nil {
					return nil, err
				}
				return nil, &exchange.Error{Kind: exchange.KindRateLimited, Status: resp.StatusCode, Message: "rate limit exceeded", RetryAfter: wait}
			case resp.StatusCode == http.StatusTeapot:
				return nil, &exchange.Error{Kind: exchange.KindRateLimited, Status: resp.StatusCode, Message: "ip banned"}
			case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
				return nil, classifyClientError(resp.StatusCode, body)
			case resp.StatusCode >= http.StatusInternalServerError:
				lastErr = fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(body))
				logx.WithContext(ctx).Infof("binance: %s %s attempt=%d status=%d", method, endpoint, attempt+1, resp.StatusCode)
			default:
				return nil, &exchange.Error{Kind: exchange.KindAPI, Status: resp.StatusCode, Message: truncate(body)}
			}
		}

		if attempt+1 < c.maxAttempts {
			if err := c.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return nil, err
			}
		}
	}
	return nil, &exchange.Error{
		Kind:    exchange.KindNetwork,
		Message: fmt.Sprintf("%s %s failed after %d attempts", method, endpoint, c.maxAttempts),
		Err:     lastErr,
	}
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params url.Values, signed bool) (*http.Request, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	encoded := query.Encode()
	if signed {
		query.Set("timestamp", strconv.FormatInt(c.clock().UnixMilli(), 10))
		if c.recvWindow > 0 {
			query.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
		}
		encoded = query.Encode()
		encoded += "&signature=" + c.sign(encoded)
	}

	target := c.baseURL + endpoint
	if encoded != "" {
		target += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	return req, nil
}

// sign returns the hex HMAC-SHA256 of payload keyed with the API secret.
func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, c.apiSecret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

type apiErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func classifyClientError(status int, body []byte) *exchange.Error {
	var payload apiErrorBody
	if err := json.Unmarshal(body, &payload); err != nil || payload.Msg == "" {
		payload.Msg = truncate(body)
	}
	lower := strings.ToLower(payload.Msg)

	kind := exchange.KindAPI
	switch {
	case strings.Contains(lower, "insufficient balance"), payload.Code == insufficientMarginCode:
		kind = exchange.KindInsufficientBalance
	case strings.Contains(lower, "order"), strings.Contains(lower, "quantity"), strings.Contains(lower, "price"):
		kind = exchange.KindInvalidOrder
	}
	return &exchange.Error{Kind: kind, Status: status, Code: payload.Code, Message: payload.Msg}
}

func parseRetryAfter(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return defaultRateLimitWait
	}
	return time.Duration(secs) * time.Second
}

func truncate(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
