package exchange_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	exchange "genetix/pkg/exchange"
	_ "genetix/pkg/exchange/binance"
	_ "genetix/pkg/exchange/sim"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exchange.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAndBuildProviders(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key-123")
	t.Setenv("BINANCE_API_SECRET", "secret-456")

	path := writeConfig(t, `
default: binance_testnet
providers:
  binance_testnet:
    type: binance
    api_key: ${BINANCE_API_KEY}
    api_secret: ${BINANCE_API_SECRET}
    base_url: https://testnet.binancefuture.com/fapi/
    testnet: true
    timeout: 10s
    recv_window: 5s
    max_attempts: 3
    rate_limit:
      max_requests: 1200
      max_weight: 2400
  paper:
    type: sim
    paper_balance: 5000
`)

	cfg, err := exchange.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Default != "binance_testnet" {
		t.Fatalf("unexpected default: %s", cfg.Default)
	}
	live := cfg.Providers["binance_testnet"]
	if live.APIKey != "key-123" || live.APISecret != "secret-456" {
		t.Fatalf("env expansion failed: %+v", live)
	}
	if live.Timeout != 10*time.Second || live.RecvWindow != 5*time.Second {
		t.Fatalf("durations not parsed: timeout=%s recv=%s", live.Timeout, live.RecvWindow)
	}
	if strings.HasSuffix(live.BaseURL, "/") {
		t.Fatalf("base url should be trimmed: %s", live.BaseURL)
	}

	providers, err := cfg.BuildProviders()
	if err != nil {
		t.Fatalf("BuildProviders error: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if _, ok := providers["paper"]; !ok {
		t.Fatalf("provider map missing paper")
	}
}

func TestLoadConfigRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
providers:
  binance_testnet:
    type: binance
`)
	_, err := exchange.LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api_key error, got %v", err)
	}
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
providers:
  x:
    type: kraken
`,
		"missing default": `
default: nope
providers:
  paper:
    type: sim
`,
		"bad timeout": `
providers:
  paper:
    type: sim
    timeout: soon
`,
		"negative balance": `
providers:
  paper:
    type: sim
    paper_balance: -1
`,
		"empty": `providers: {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := exchange.LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestGetProviderInline(t *testing.T) {
	p, err := exchange.GetProvider("sim", nil)
	if err != nil {
		t.Fatalf("GetProvider error: %v", err)
	}
	if p == nil {
		t.Fatal("expected provider")
	}
	if _, err := exchange.GetProvider("binance", &exchange.ProviderConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected missing secret error")
	}
}
