package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOfferResults forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordOfferResults(res []OfferResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordOfferResults(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle forwards cycle summaries to sinks that support them.
func (m *MultiSink) RecordCycle(rec CycleRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(CycleRecorder); ok {
			if err := r.RecordCycle(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordWindow forwards window records to sinks that support them.
func (m *MultiSink) RecordWindow(rec WindowRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(WindowRecorder); ok {
			if err := r.RecordWindow(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOfferLatency forwards latency metrics when supported by the sink.
func (m *MultiSink) RecordOfferLatency(lat []OfferLatency) error {
	for _, s := range m.Sinks {
		if r, ok := s.(LatencyRecorder); ok {
			if err := r.RecordOfferLatency(lat); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSnapshotSize forwards snapshot sizes when supported by the sink.
func (m *MultiSink) RecordSnapshotSize(orders, drivers int) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SnapshotRecorder); ok {
			if err := r.RecordSnapshotSize(orders, drivers); err != nil {
				return err
			}
		}
	}
	return nil
}
