package metrics

import (
	coremetrics "github.com/courierflow/dispatch/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records dispatch events in Prometheus metrics.
type PromSink struct {
	offers   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	windows  *prometheus.CounterVec
	snapshot *prometheus.GaugeVec
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_total",
		Help: "Total number of offer resolutions",
	}, []string{"driver_id", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offer_latency_seconds",
		Help:    "Time between offer publish and driver response",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver_id", "outcome"})
	windows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "time_windows_total",
		Help: "Total number of committed time windows",
	}, []string{"method", "fallback"})
	snapshot := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_snapshot_size",
		Help: "Orders and drivers captured in the last cycle snapshot",
	}, []string{"kind"})

	for _, c := range []prometheus.Collector{offers, latency, windows, snapshot} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return &PromSink{offers: offers, latency: latency, windows: windows, snapshot: snapshot}, nil
}

// RecordOfferResults increments the counter for each resolved offer.
func (s *PromSink) RecordOfferResults(res []coremetrics.OfferResult) error {
	for _, r := range res {
		s.offers.WithLabelValues(r.DriverID, r.Outcome).Inc()
	}
	return nil
}

// RecordOfferLatency records the offer latency histogram.
func (s *PromSink) RecordOfferLatency(recs []coremetrics.OfferLatency) error {
	for _, r := range recs {
		s.latency.WithLabelValues(r.DriverID, r.Outcome).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordWindow counts committed windows per method.
func (s *PromSink) RecordWindow(rec coremetrics.WindowRecord) error {
	fallback := "false"
	if rec.Fallback {
		fallback = "true"
	}
	s.windows.WithLabelValues(rec.Method, fallback).Inc()
	return nil
}

// RecordSnapshotSize sets the snapshot gauges.
func (s *PromSink) RecordSnapshotSize(orders, drivers int) error {
	s.snapshot.WithLabelValues("orders").Set(float64(orders))
	s.snapshot.WithLabelValues("drivers").Set(float64(drivers))
	return nil
}
