// probe is an operator CLI for checking exchange connectivity, market data,
// signals and the bot's on-disk journal without starting the trading loop.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	cachekeys "genetix/internal/cache"
	"genetix/internal/config"
	"genetix/internal/persistence"
	"genetix/pkg/exchange/binance"
	"genetix/pkg/journal"
	"genetix/pkg/market"
	"genetix/pkg/strategy"
)

var (
	configFile string
	timeout    time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "probe",
		Short:         "Inspect the exchange and the bot journal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "etc/genetix.yaml", "the config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")

	rootCmd.AddCommand(timeCmd())
	rootCmd.AddCommand(priceCmd())
	rootCmd.AddCommand(klinesCmd())
	rootCmd.AddCommand(signalCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(positionsCmd())
	rootCmd.AddCommand(tradesCmd())
	rootCmd.AddCommand(resultsCmd())
	rootCmd.AddCommand(snapshotCmd())

	logx.DisableStat()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

// exchangeClient returns the default provider's Binance client. Credentials
// are optional; signed commands fail at the exchange without them.
func exchangeClient(cfg *config.Config) *binance.Client {
	if _, pc, err := cfg.DefaultProvider(); err == nil && pc.Type == "binance" {
		return binance.NewProviderFromConfig(pc).Client()
	}
	return binance.NewClient("", "", true)
}

func withClient(run func(ctx context.Context, cfg *config.Config, client *binance.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()
		return run(ctx, cfg, exchangeClient(cfg), args)
	}
}

func timeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "time",
		Short: "Print exchange server time and local clock drift",
		RunE: withClient(func(ctx context.Context, _ *config.Config, client *binance.Client, _ []string) error {
			local := time.Now()
			server, err := client.ServerTime(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("endpoint: %s\nserver:   %s\ndrift:    %s\n", client.BaseURL(), server.UTC().Format(time.RFC3339Nano), server.Sub(local))
			return nil
		}),
	}
}

func priceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price [SYMBOL...]",
		Short: "Print the latest ticker price (defaults to the configured symbols)",
		RunE: withClient(func(ctx context.Context, cfg *config.Config, client *binance.Client, args []string) error {
			feed := market.NewFeed(client)
			for _, sym := range symbolsOrDefault(cfg, args) {
				price, ok := feed.GetCurrentPrice(ctx, sym)
				if !ok {
					fmt.Printf("%-10s unavailable\n", sym)
					continue
				}
				fmt.Printf("%-10s %.6f\n", sym, price)
			}
			return nil
		}),
	}
}

func klinesCmd() *cobra.Command {
	var (
		interval string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "klines SYMBOL",
		Short: "Print recent candles",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, _ *config.Config, client *binance.Client, args []string) error {
			candles := market.NewFeed(client).GetCandles(ctx, strings.ToUpper(args[0]), interval, limit)
			if len(candles) == 0 {
				return fmt.Errorf("no candles for %s", args[0])
			}
			for _, c := range candles {
				fmt.Printf("%s  o=%.4f h=%.4f l=%.4f c=%.4f v=%.2f\n",
					c.OpenTime.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&interval, "interval", "1m", "candle interval")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of candles")
	return cmd
}

func signalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signal [SYMBOL...]",
		Short: "Backfill history and print the current strategy signal",
		RunE: withClient(func(ctx context.Context, cfg *config.Config, client *binance.Client, args []string) error {
			trading := cfg.Trading.Value
			if trading == nil {
				return fmt.Errorf("trading section is required")
			}
			mcfg := cfg.Market.Value
			if mcfg == nil {
				mcfg = market.Defaults()
			}
			scorer := strategy.NewScorer(trading.Strategy)
			feed := market.NewFeed(client, market.WithHistory(market.NewHistory(mcfg.HistoryCapacity)))
			for _, sym := range symbolsOrDefault(cfg, args) {
				feed.Backfill(ctx, sym, mcfg.CandleInterval, mcfg.InitialCandles)
				price, ok := feed.GetCurrentPrice(ctx, sym)
				if !ok {
					fmt.Printf("%-10s unavailable\n", sym)
					continue
				}
				feed.Append(sym, price)
				sig := scorer.Score(sym, price, feed.Closes(sym))
				fmt.Printf("%-10s %-5s confidence=%.2f confluence=%.1f samples=%d/%d %s\n",
					sym, sig.Action, sig.Confidence, sig.Confluence, feed.Len(sym), scorer.RequiredSamples(), sig.Reason)
			}
			return nil
		}),
	}
}

func accountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Print wallet balances (signed)",
		RunE: withClient(func(ctx context.Context, _ *config.Config, client *binance.Client, _ []string) error {
			info, err := client.Account(ctx)
			if err != nil {
				return err
			}
			for _, b := range info.Balances() {
				if b.WalletBalance.IsZero() && b.UnrealizedProfit.IsZero() {
					continue
				}
				fmt.Printf("%-6s wallet=%s available=%s unrealized=%s\n",
					b.Asset, b.WalletBalance.StringFixed(4), b.AvailableBalance.StringFixed(4), b.UnrealizedProfit.StringFixed(4))
			}
			return nil
		}),
	}
}

func positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Print open exchange positions (signed)",
		RunE: withClient(func(ctx context.Context, _ *config.Config, client *binance.Client, _ []string) error {
			positions, err := client.PositionRisk(ctx, "")
			if err != nil {
				return err
			}
			open := 0
			for _, p := range positions {
				if p.IsFlat() {
					continue
				}
				open++
				fmt.Printf("%-10s amt=%s entry=%s mark=%s upnl=%s lev=%dx\n",
					p.Symbol, p.Amount.String(), p.EntryPrice.String(), p.MarkPrice.String(), p.UnrealizedProfit.StringFixed(4), p.Leverage)
			}
			if open == 0 {
				fmt.Println("no open positions")
			}
			return nil
		}),
	}
}

func tradesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Print the tail of the local trade log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			w, err := journal.NewWriter(cfg.ResultsDir)
			if err != nil {
				return err
			}
			trades, err := w.ReadTrades(limit)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Printf("no trades in %s\n", w.TradesPath())
				return nil
			}
			for _, t := range trades {
				line := fmt.Sprintf("%s %-5s %-4s %-10s qty=%s px=%s",
					t.Timestamp.UTC().Format(time.RFC3339), t.Action, t.Side, t.Symbol, t.Quantity.String(), t.Price.String())
				if t.PnL != nil {
					line += fmt.Sprintf(" pnl=%s", t.PnL.StringFixed(2))
				}
				if t.Reason != "" {
					line += " " + t.Reason
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of trades")
	return cmd
}

func resultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results [FILE]",
		Short: "Print a daily results file (defaults to today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				w, err := journal.NewWriter(cfg.ResultsDir)
				if err != nil {
					return err
				}
				path = w.ResultsPath(time.Now())
			}
			results, err := journal.ReadResults(path)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func snapshotCmd() *cobra.Command {
	var trades bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the latest snapshot cached in Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Redis.Host) == "" {
				return fmt.Errorf("redis is not configured")
			}
			store := persistence.NewStore(persistence.Config{
				Cache: persistence.MustNewRedisCache(cfg.Redis),
				TTL:   cachekeys.NewTTLSet(cfg.TTL),
			})
			ctx, cancel := commandContext()
			defer cancel()

			var v any
			if trades {
				v, err = store.CachedTrades(ctx)
			} else {
				v, err = store.LatestSnapshot(ctx)
			}
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&trades, "trades", false, "print only the cached recent trades")
	return cmd
}

func symbolsOrDefault(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		out := make([]string, 0, len(args))
		for _, a := range args {
			out = append(out, strings.ToUpper(strings.TrimSpace(a)))
		}
		return out
	}
	if cfg.Trading.Value != nil {
		return cfg.Trading.Value.Symbols
	}
	return nil
}
