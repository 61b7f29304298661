package metrics

import "testing"

// TestMultiSink ensures events are forwarded to all sinks.

type recordSink struct {
	count int
}

func (r *recordSink) RecordOfferResults([]OfferResult) error {
	r.count++
	return nil
}

func (r *recordSink) RecordOfferLatency([]OfferLatency) error {
	r.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordOfferResults(nil); err != nil {
		t.Fatalf("record results: %v", err)
	}
	if err := m.RecordOfferLatency(nil); err != nil {
		t.Fatalf("record latency: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("results not forwarded")
	}
}

func TestMultiSinkSkipsUnsupported(t *testing.T) {
	s := &recordSink{}
	m := NewMultiSink(s, NopSink{})
	if err := m.RecordCycle(CycleRecord{}); err != nil {
		t.Fatalf("record cycle: %v", err)
	}
	if s.count != 0 {
		t.Fatalf("cycle forwarded to sink without CycleRecorder")
	}
}
