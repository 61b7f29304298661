package logging

import (
	"context"
	"time"
)

// OfferOutcome records one offer made during a cycle and how it resolved.
type OfferOutcome struct {
	AssignmentID string  `json:"assignment_id"`
	OrderID      string  `json:"order_id"`
	DriverID     string  `json:"driver_id"`
	Outcome      string  `json:"outcome"` // accepted, rejected, pending
	Reason       string  `json:"reason,omitempty"`
	LatencyMS    float64 `json:"latency_ms"`
}

// LogRecord captures the decisions made for one region in one dispatch cycle.
type LogRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Cycle     uint64         `json:"cycle"`
	Region    string         `json:"region"`
	Orders    []string       `json:"orders"`
	Drivers   []string       `json:"drivers"`
	Offers    []OfferOutcome `json:"offers"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start    time.Time
	End      time.Time
	OrderID  string
	DriverID string
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

func (r LogRecord) matches(q LogQuery) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OrderID != "" && !r.hasOrder(q.OrderID) {
		return false
	}
	if q.DriverID != "" && !r.hasDriver(q.DriverID) {
		return false
	}
	return true
}

func (r LogRecord) hasOrder(id string) bool {
	for _, o := range r.Orders {
		if o == id {
			return true
		}
	}
	for _, of := range r.Offers {
		if of.OrderID == id {
			return true
		}
	}
	return false
}

func (r LogRecord) hasDriver(id string) bool {
	for _, d := range r.Drivers {
		if d == id {
			return true
		}
	}
	for _, of := range r.Offers {
		if of.DriverID == id {
			return true
		}
	}
	return false
}
