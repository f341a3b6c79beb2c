package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"genetix/internal/config"
	"genetix/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Mode: %s", mode(cfg.DryRun)),
		fmt.Sprintf("Dashboard: %s:%d", cfg.Host, cfg.Port),
		fmt.Sprintf("Results dir: %s", cfg.ResultsDir),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		fmt.Sprintf("Telegram: %s", presence(cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "")),
		fmt.Sprintf("Profiling: %s", presence(cfg.Profiling.ServerAddress != "")),
		sectionLine("Exchange config", cfg.Exchange),
		sectionLine("Market config", cfg.Market),
		sectionLine("Trading config", cfg.Trading),
	}
	if t := cfg.Trading.Value; t != nil {
		lines = append(lines,
			fmt.Sprintf("Symbols: %s", strings.Join(t.Symbols, ", ")),
			fmt.Sprintf("Risk: leverage %dx, SL %.2f%%, TP %.2f%%, max positions %d",
				t.Trading.Leverage, t.Trading.StopLossPercent, t.Trading.TakeProfitPercent, t.Trading.MaxPositions),
		)
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func mode(dryRun bool) string {
	if dryRun {
		return "dry run (sim exchange)"
	}
	return "live"
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Loaded():
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
