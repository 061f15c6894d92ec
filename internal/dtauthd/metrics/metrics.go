// Package metrics exposes Prometheus instrumentation for the auth server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DeviceFlowsInitiated counts device authorization flows started.
	DeviceFlowsInitiated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtauth_device_flows_initiated_total",
		Help: "Total number of device authorization flows initiated.",
	})

	// DeviceFlowsConfirmed counts device authorizations approved by a user.
	DeviceFlowsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtauth_device_flows_confirmed_total",
		Help: "Total number of device authorizations confirmed.",
	})

	// DevicePollResults counts poll-for-token outcomes by state.
	DevicePollResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtauth_device_poll_results_total",
		Help: "Total number of device token polls by outcome.",
	}, []string{"outcome"})

	// SessionsIssued counts session tokens minted.
	SessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtauth_sessions_issued_total",
		Help: "Total number of session tokens issued.",
	})

	// RateLimitDenials counts requests rejected by admission control.
	RateLimitDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtauth_rate_limit_denials_total",
		Help: "Total number of requests denied by the rate limiter.",
	}, []string{"class"})

	// DevicesRevoked counts device revocations.
	DevicesRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtauth_devices_revoked_total",
		Help: "Total number of devices revoked by their owner.",
	})

	// ExpiredRecordsSwept counts device records removed by cleanup sweeps.
	ExpiredRecordsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dtauth_expired_records_swept_total",
		Help: "Total number of expired device records deleted by cleanup.",
	})
)

// NewRegistry builds a Prometheus registry with the process, Go runtime, and
// application collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		DeviceFlowsInitiated,
		DeviceFlowsConfirmed,
		DevicePollResults,
		SessionsIssued,
		RateLimitDenials,
		DevicesRevoked,
		ExpiredRecordsSwept,
	)
	return reg
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
