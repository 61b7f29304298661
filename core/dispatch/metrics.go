package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offerLatency   *prometheus.HistogramVec
	offersResolved *prometheus.CounterVec
	acceptRate     prometheus.Gauge
	publishSuccess prometheus.Counter
	publishFailure prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Counter, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offer_resolution_latency_seconds",
			Help:    "Latency of offers from publish to driver response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	res := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_resolved_total",
			Help: "Number of offers made, by resolution outcome",
		},
		[]string{"outcome"},
	)
	acc := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "offer_accept_rate",
			Help: "Acceptance rate of offers in the last dispatch cycle",
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_publish_success_total",
			Help: "Number of successful offer publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_publish_failure_total",
			Help: "Number of failed offer publish operations",
		},
	)
	return lat, res, acc, suc, fail
}

func init() {
	offerLatency, offersResolved, acceptRate, publishSuccess, publishFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offerLatency, offersResolved, acceptRate, publishSuccess, publishFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offerLatency, offersResolved, acceptRate, publishSuccess, publishFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
