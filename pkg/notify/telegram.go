// Package notify delivers operator messages to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpc"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second
	maxMessageLen  = 4096
)

// Config holds bot credentials. An empty token or chat id disables delivery.
type Config struct {
	Token   string `json:",optional"`
	ChatID  string `json:",optional"`
	BaseURL string `json:",optional"`
}

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	timeout time.Duration
	do      func(*http.Request) (*http.Response, error)
}

// Option customises a Telegram notifier.
type Option func(*Telegram)

// WithBaseURL points the notifier at another API host.
func WithBaseURL(u string) Option {
	return func(t *Telegram) {
		if u != "" {
			t.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sends through client instead of the go-zero httpc default.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Telegram) {
		if client != nil {
			t.do = client.Do
		}
	}
}

// WithTimeout bounds each delivery.
func WithTimeout(d time.Duration) Option {
	return func(t *Telegram) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// New constructs a notifier from cfg.
func New(cfg Config, opts ...Option) *Telegram {
	t := &Telegram{
		token:   strings.TrimSpace(cfg.Token),
		chatID:  strings.TrimSpace(cfg.ChatID),
		baseURL: DefaultBaseURL,
		timeout: defaultTimeout,
		do:      httpc.DoRequest,
	}
	if cfg.BaseURL != "" {
		t.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enabled reports whether messages will be sent.
func (t *Telegram) Enabled() bool {
	return t != nil && t.token != "" && t.chatID != ""
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Notify sends text to the configured chat. It is a no-op when disabled.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if !t.Enabled() {
		logx.WithContext(ctx).Debugf("notify: telegram disabled, dropping message")
		return nil
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen]
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("notify: read response: %w", err)
	}

	var parsed apiResponse
	_ = json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK || !parsed.OK {
		desc := parsed.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("notify: telegram status %d: %s", resp.StatusCode, desc)
	}
	return nil
}
