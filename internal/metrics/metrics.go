// Package metrics provides Prometheus instrumentation for the bidding service.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BidsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidding_bids_submitted_total",
		Help: "Bids accepted by submit",
	})

	BidsWithdrawn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bidding_bids_withdrawn_total",
		Help: "Bids removed by withdraw",
	})

	// Selections counts completed selection runs by mode (auto_admit, contested).
	Selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidding_selections_total",
		Help: "Selection runs by mode",
	}, []string{"mode"})

	// Refunds counts tokens returned to participants, by reason.
	Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidding_refunds_total",
		Help: "Tokens refunded by reason",
	}, []string{"reason"})

	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidding_tx_retries_total",
		Help: "Transaction attempts retried after a transient store failure",
	}, []string{"op"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidding_errors_total",
		Help: "Failed operations by error kind",
	}, []string{"op", "kind"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bidding_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bidding_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler serves the Prometheus registry on echo.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request count and latency. The path label is the
// matched route template, not the raw URL.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
