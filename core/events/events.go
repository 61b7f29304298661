package events

import (
	"time"

	"github.com/courierflow/dispatch/core/model"
)

// CycleEvent is published at the start of each dispatch batch cycle.
type CycleEvent struct {
	Orders  int
	Drivers int
	Time    time.Time
}

// RegionEvent reports a region built (or discarded) by the clustering pass.
type RegionEvent struct {
	Name      string
	Centroid  model.LatLng
	Orders    int
	Drivers   int
	Discarded bool
}

// OfferEvent is published when an offer is sent to a driver.
type OfferEvent struct {
	AssignmentID string
	OrderID      string
	DriverID     string
	ExpiresAt    time.Time
}

// OfferResolvedEvent is published when an offer reaches a terminal state.
// Outcome is the terminal status string; Err carries the publish or await
// failure, if any.
type OfferResolvedEvent struct {
	AssignmentID string
	OrderID      string
	DriverID     string
	Outcome      string
	Err          error
	Latency      time.Duration
}

// WindowEvent is published when a time window is computed for an order.
type WindowEvent struct {
	OrderID      string
	Method       string
	WidthSeconds float64
	Fallback     bool // true when SAA was requested but data forced the heuristic
}
