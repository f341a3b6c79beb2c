// Package metrics exports trading counters and account gauges to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genetix/pkg/exchange"
	"genetix/pkg/manager"
)

const namespace = "genetix"

// Collector owns a private registry so several instances can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	orders          *prometheus.CounterVec
	orderErrors     *prometheus.CounterVec
	positionsOpened *prometheus.CounterVec
	positionsClosed *prometheus.CounterVec
	realizedPnL     *prometheus.GaugeVec
	gateRejections  *prometheus.CounterVec

	balance           prometheus.Gauge
	totalPnL          prometheus.Gauge
	dailyPnL          prometheus.Gauge
	openPositions     prometheus.Gauge
	unrealizedPnL     *prometheus.GaugeVec
	winRate           prometheus.Gauge
	consecutiveLosses prometheus.Gauge
	gateBlocked       prometheus.Gauge
	lastSnapshot      prometheus.Gauge
}

// New builds and registers every collector, including the Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_total",
			Help: "Orders submitted to the exchange.",
		}, []string{"symbol", "side", "reduce_only"}),
		orderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_errors_total",
			Help: "Order submissions that failed, by error kind.",
		}, []string{"symbol", "kind"}),
		positionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "positions_opened_total",
			Help: "Positions opened.",
		}, []string{"symbol", "side"}),
		positionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "positions_closed_total",
			Help: "Positions closed, by exit reason.",
		}, []string{"symbol", "reason"}),
		realizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "realized_pnl_usdt",
			Help: "Cumulative realised profit per symbol since start.",
		}, []string{"symbol"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "risk_gate_rejections_total",
			Help: "Entries refused by the risk gate.",
		}, []string{"reason"}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "balance_usdt",
			Help: "Tracked account balance.",
		}),
		totalPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "total_pnl_usdt",
			Help: "Balance minus initial balance.",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "daily_pnl_usdt",
			Help: "Realised profit since UTC midnight.",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_positions",
			Help: "Currently open positions.",
		}),
		unrealizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "unrealized_pnl_usdt",
			Help: "Unrealised profit of each open position at its display price.",
		}, []string{"symbol", "side"}),
		winRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "win_rate_percent",
			Help: "Wins over closed trades.",
		}),
		consecutiveLosses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "consecutive_losses",
			Help: "Current losing streak.",
		}),
		gateBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "risk_gate_blocked",
			Help: "1 while the risk gate refuses new entries.",
		}),
		lastSnapshot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_snapshot_timestamp_seconds",
			Help: "Unix time of the latest published snapshot.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.orders, c.orderErrors, c.positionsOpened, c.positionsClosed, c.realizedPnL, c.gateRejections,
		c.balance, c.totalPnL, c.dailyPnL, c.openPositions, c.unrealizedPnL,
		c.winRate, c.consecutiveLosses, c.gateBlocked, c.lastSnapshot,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) OrderSubmitted(symbol string, side exchange.OrderSide, reduceOnly bool) {
	c.orders.WithLabelValues(symbol, string(side), strconv.FormatBool(reduceOnly)).Inc()
}

func (c *Collector) OrderFailed(symbol string, kind exchange.ErrorKind) {
	c.orderErrors.WithLabelValues(symbol, kind.String()).Inc()
}

func (c *Collector) PositionOpened(symbol string, side manager.Side) {
	c.positionsOpened.WithLabelValues(symbol, string(side)).Inc()
}

func (c *Collector) PositionClosed(symbol string, reason manager.CloseReason, pnl float64) {
	c.positionsClosed.WithLabelValues(symbol, string(reason)).Inc()
	c.realizedPnL.WithLabelValues(symbol).Add(pnl)
}

func (c *Collector) GateRejected(reason string) {
	c.gateRejections.WithLabelValues(GateLabel(reason)).Inc()
}

// ObserveSnapshot refreshes the account gauges.
func (c *Collector) ObserveSnapshot(snap manager.Snapshot) {
	c.balance.Set(snap.Account.Balance.InexactFloat64())
	c.totalPnL.Set(snap.TotalPnL.InexactFloat64())
	c.dailyPnL.Set(snap.Account.DailyPnL.InexactFloat64())
	c.openPositions.Set(float64(len(snap.Positions)))
	c.winRate.Set(snap.WinRate)
	c.consecutiveLosses.Set(float64(snap.Counters.ConsecutiveLosses))
	if snap.Gate.Allowed {
		c.gateBlocked.Set(0)
	} else {
		c.gateBlocked.Set(1)
	}
	if !snap.Timestamp.IsZero() {
		c.lastSnapshot.Set(float64(snap.Timestamp.Unix()))
	}

	c.unrealizedPnL.Reset()
	for _, p := range snap.Positions {
		c.unrealizedPnL.WithLabelValues(p.Symbol, string(p.Side)).Set(p.PnL.InexactFloat64())
	}
}

// GateLabel strips the figures from a gate reason so it can be used as a
// bounded label value, e.g. "daily loss limit hit (-120.00 USD)" becomes
// "daily_loss_limit_hit".
func GateLabel(reason string) string {
	if i := strings.IndexAny(reason, "(:"); i >= 0 {
		reason = reason[:i]
	}
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		return "unknown"
	}
	return strings.Join(strings.Fields(reason), "_")
}
