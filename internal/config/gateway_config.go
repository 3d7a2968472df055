package config

import "time"

type GatewayConfig interface {
	GetRequestTimeout() time.Duration
	GetMetricsFile() string
}

type Gateway struct{}

var _ GatewayConfig = Gateway{}

func (Gateway) GetRequestTimeout() time.Duration {
	return GetEnvDuration("TWOFA_REQUEST_TIMEOUT", 15*time.Second)
}

// GetMetricsFile is an optional path the terminal front-end writes its
// Prometheus text exposition to on exit.
func (Gateway) GetMetricsFile() string {
	return GetEnv("TWOFA_METRICS_FILE", "")
}
