package cache

import (
	"strings"
	"time"

	"genetix/internal/config"
)

// Namespace is the Redis key prefix for the genetix service.
const Namespace = "genetix"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Snapshot Keys ----------------------------------------------------------

// SnapshotLatestKey holds the most recent published snapshot.
func SnapshotLatestKey() string {
	return formatKey("snapshot", "latest")
}

// SnapshotDailyKey holds the last snapshot of a UTC day (YYYYMMDD).
func SnapshotDailyKey(day string) string {
	return formatKey("snapshot", "daily", day)
}

// --- Price Keys -------------------------------------------------------------

// PriceLatestKey stores the last polled price of symbol.
func PriceLatestKey(symbol string) string {
	return formatKey("price", "latest", strings.ToUpper(symbol))
}

// --- Trades Keys ------------------------------------------------------------

// TradesRecentKey is a capped list of the newest trade entries.
func TradesRecentKey() string {
	return formatKey("trades", "recent")
}

// --- TTL Helpers ------------------------------------------------------------

// SnapshotTTL keeps the latest snapshot alive across a few missed ticks.
func SnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 2) // ~10m when long=300s
}

// SnapshotDailyTTL keeps end-of-day snapshots for a week.
func SnapshotDailyTTL() time.Duration {
	return 7 * 24 * time.Hour
}

// PriceTTL returns short-lived TTL for individual price keys.
func PriceTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLMedium, 2)
}

// TradesRecentTTL returns the TTL for recent trades lists.
func TradesRecentTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 12) // ~1h when long=300s
}
