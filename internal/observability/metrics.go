package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "votectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "votectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "votectl",
			Name:      "submissions_total",
			Help:      "Transaction submissions by instruction and final outcome.",
		},
		[]string{"instruction", "outcome"},
	)
	confirmationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "votectl",
			Name:      "confirmation_seconds",
			Help:      "Time from send to confirmation in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"instruction"},
	)
	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "votectl",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Ledger JSON-RPC calls.",
		},
		[]string{"method", "success"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "votectl",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Ledger JSON-RPC call duration in seconds, including throttle wait.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			submissions, confirmationDuration,
			rpcRequests, rpcDuration,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordSubmission counts one finished submission. outcome is the final
// state name (confirmed, rejected, expired, failed).
func RecordSubmission(instruction, outcome string) {
	RegisterMetrics()
	submissions.WithLabelValues(instruction, outcome).Inc()
}

func RecordConfirmation(instruction string, duration time.Duration) {
	RegisterMetrics()
	confirmationDuration.WithLabelValues(instruction).Observe(duration.Seconds())
}

func RecordRPC(method string, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	rpcRequests.WithLabelValues(method, successLabel).Inc()
	rpcDuration.WithLabelValues(method, successLabel).Observe(duration.Seconds())
}
