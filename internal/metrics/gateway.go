package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes recorded by the gateway.
const (
	OutcomeOK           = "ok"
	OutcomeValidation   = "validation"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRejected     = "rejected"
	OutcomeRateLimited  = "rate_limited"
	OutcomeServer       = "server_error"
	OutcomeNetwork      = "network_error"
)

// GatewayMetrics counts and times every auth API call the client makes.
// A nil *GatewayMetrics records nothing.
type GatewayMetrics struct {
	Calls         *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	ForcedLogouts prometheus.Counter
}

func NewGatewayMetrics(opts Options) (*GatewayMetrics, error) {
	opts = opts.withDefaults()

	calls, err := register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "gateway",
		Name:      "calls_total",
		Help:      "Total number of auth API calls partitioned by operation and outcome.",
	}, []string{"op", "outcome"}), "gateway calls")
	if err != nil {
		return nil, err
	}

	duration, err := register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Latency of auth API calls in seconds partitioned by operation.",
		Buckets:   opts.Buckets,
	}, []string{"op"}), "gateway duration")
	if err != nil {
		return nil, err
	}

	forced, err := register(opts.Registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "gateway",
		Name:      "forced_logouts_total",
		Help:      "Sessions cleared because the API rejected the bearer token.",
	}), "gateway forced logouts")
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{Calls: calls, Duration: duration, ForcedLogouts: forced}, nil
}

func (m *GatewayMetrics) ObserveCall(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *GatewayMetrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}
