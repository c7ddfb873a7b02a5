package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Coin toss counter by resulting group label
	CoinTossCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cointoss_draws_total",
			Help: "Total number of coin tosses by resulting group label",
		},
		[]string{"group"},
	)

	// Customer operation counter
	CustomerOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cointoss_customer_operations_total",
			Help: "Total number of customer operations",
		},
		[]string{"operation"}, // operation can be "create", "update", "get", "search", "report"
	)

	// Project operation counter
	ProjectOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cointoss_project_operations_total",
			Help: "Total number of project operations",
		},
		[]string{"operation"}, // operation can be "create", "update", "get"
	)

	// User operation counter
	UserOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cointoss_user_operations_total",
			Help: "Total number of user operations",
		},
		[]string{"operation"},
	)

	// Order operation counter
	OrderOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cointoss_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation"}, // operation can be "place", "check"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cointoss_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Validation error counter by error kind
	ValidationErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cointoss_validation_errors_total",
			Help: "Total number of rejected writes by error kind",
		},
		[]string{"kind"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cointoss_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cointoss_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cointoss_info",
			Help: "Information about the coin toss service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(CoinTossCounter)
	prometheus.MustRegister(CustomerOperationCounter)
	prometheus.MustRegister(ProjectOperationCounter)
	prometheus.MustRegister(UserOperationCounter)
	prometheus.MustRegister(OrderOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(ValidationErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordCoinToss records one completed draw by resulting group label
func RecordCoinToss(group string) {
	CoinTossCounter.With(prometheus.Labels{"group": group}).Inc()
}

// RecordCustomerOperation records a customer operation
func RecordCustomerOperation(operation string) {
	CustomerOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordProjectOperation records a project operation
func RecordProjectOperation(operation string) {
	ProjectOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordUserOperation records a user operation
func RecordUserOperation(operation string) {
	UserOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordOrderOperation records an order operation
func RecordOrderOperation(operation string) {
	OrderOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordValidationError records a rejected write by error kind
func RecordValidationError(kind string) {
	ValidationErrorCounter.With(prometheus.Labels{"kind": kind}).Inc()
}
