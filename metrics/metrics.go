// Package metrics provides Prometheus metrics for the trading agent
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_action_requests_total",
		Help: "Total action invocations by outcome",
	}, []string{"action", "outcome"})

	ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_action_duration_seconds",
		Help:    "Action latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"action"})

	GridLevelsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grid_levels_computed_total",
		Help: "Grid ladders computed by spacing and size model",
	}, []string{"spacing_model", "size_model"})

	GridOrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grid_orders_placed_total",
		Help: "Grid limit orders accepted by the exchange",
	}, []string{"exchange", "side"})

	GridPlacementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grid_placement_failures_total",
		Help: "Grid activations that stopped after a placement error",
	}, []string{"exchange"})

	OrdersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grid_orders_cancelled_total",
		Help: "Orders cancelled by stop_strategy",
	}, []string{"exchange"})

	ConnectorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_errors_total",
		Help: "Exchange connector failures by operation",
	}, []string{"exchange", "op"})

	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "config_reloads_total",
		Help: "Configuration hot reload attempts by result",
	}, []string{"result"})
)

// ObserveAction 记录一次动作调用的结果与耗时。
func ObserveAction(action, outcome string, elapsed time.Duration) {
	ActionRequests.WithLabelValues(action, outcome).Inc()
	ActionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// Handler 返回 Prometheus 抓取端点；stdio 模式下由容器挂到独立监听地址。
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
