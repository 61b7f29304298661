package metrics

import "time"

// OfferResult represents one resolved order-to-driver offer to be recorded.
type OfferResult struct {
	Cycle        uint64
	Region       string
	AssignmentID string
	OrderID      string
	DriverID     string
	Outcome      string // accepted, rejected, expired
	Reason       string
	DistanceKm   float64
	Latency      time.Duration
	Time         time.Time
}

// MetricsSink records offer results for observability purposes.
type MetricsSink interface {
	RecordOfferResults(results []OfferResult) error
}

// CycleRecord captures one dispatch cycle end to end.
type CycleRecord struct {
	Cycle    uint64
	Orders   int
	Drivers  int
	Regions  int
	Offers   int
	Accepted int
	Duration time.Duration
	Time     time.Time
}

// CycleRecorder records dispatch cycle summaries.
type CycleRecorder interface {
	RecordCycle(rec CycleRecord) error
}

// WindowRecord captures a committed delivery time window.
type WindowRecord struct {
	OrderID      string
	Method       string
	WidthSeconds float64
	SampleCount  int
	Fallback     bool
	Time         time.Time
}

// WindowRecorder records committed time windows.
type WindowRecorder interface {
	RecordWindow(rec WindowRecord) error
}

// OfferLatency represents the time from offer publication to its resolution.
type OfferLatency struct {
	AssignmentID string
	DriverID     string
	Outcome      string
	Latency      time.Duration
}

// LatencyRecorder is implemented by sinks able to record offer latency.
type LatencyRecorder interface {
	RecordOfferLatency(latencies []OfferLatency) error
}

// SnapshotRecorder records the size of the order and driver snapshot taken at
// the start of a cycle.
type SnapshotRecorder interface {
	RecordSnapshotSize(orders, drivers int) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordOfferResults([]OfferResult) error { return nil }
func (NopSink) RecordCycle(CycleRecord) error          { return nil }
func (NopSink) RecordWindow(WindowRecord) error        { return nil }
func (NopSink) RecordOfferLatency([]OfferLatency) error { return nil }
func (NopSink) RecordSnapshotSize(int, int) error      { return nil }
