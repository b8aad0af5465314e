// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CycleDuration tracks how long one simulation cycle takes end to end.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cogmarket_cycle_duration_seconds",
		Help:    "Simulation cycle duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// CyclesTotal counts simulation cycles by outcome: ok, partial or failed.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogmarket_cycles_total",
		Help: "Total simulation cycles run",
	}, []string{"outcome"})

	// InstrumentPrice is the last committed price per symbol, in Spurs.
	InstrumentPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cogmarket_instrument_price_spurs",
		Help: "Current instrument price in Spurs",
	}, []string{"symbol"})

	// ActivityScore is the activity score per symbol after decay.
	ActivityScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cogmarket_activity_score",
		Help: "Current activity score per instrument",
	}, []string{"symbol"})

	// InstrumentsSkipped counts instruments skipped in a cycle because
	// storage was unavailable.
	InstrumentsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogmarket_instruments_skipped_total",
		Help: "Instruments skipped during a simulation cycle",
	}, []string{"symbol"})

	// OrderExecutions counts limit orders executed, partitioned by side.
	OrderExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogmarket_order_executions_total",
		Help: "Total limit orders executed",
	}, []string{"side"})

	// OrdersExpired counts limit orders removed on expiry.
	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogmarket_orders_expired_total",
		Help: "Limit orders removed after expiry",
	})

	// AlertsFired counts price alerts that triggered.
	AlertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogmarket_alerts_fired_total",
		Help: "Price alerts fired",
	})

	// TradesTotal counts direct trades executed, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogmarket_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeLatency tracks ledger trade latency.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cogmarket_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// RiskRejections counts trades rejected by the own-team position policy.
	RiskRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cogmarket_risk_rejections_total",
		Help: "Trades rejected by the own-team position policy",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cogmarket_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cogmarket_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cogmarket_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
