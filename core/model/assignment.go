package model

import "time"

// AssignmentStatus tracks an offer from creation to its terminal state.
type AssignmentStatus int

const (
	AssignmentOffered AssignmentStatus = iota
	AssignmentAccepted
	AssignmentRejected
	AssignmentExpired
)

// String returns a human-readable representation of the assignment status.
func (s AssignmentStatus) String() string {
	switch s {
	case AssignmentOffered:
		return "offered"
	case AssignmentAccepted:
		return "accepted"
	case AssignmentRejected:
		return "rejected"
	case AssignmentExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status accepts no further transitions.
func (s AssignmentStatus) Terminal() bool {
	return s != AssignmentOffered
}

// Assignment is an order-to-driver offer. It is never deleted; terminal
// records remain as an audit trail.
type Assignment struct {
	ID                string
	OrderID           string
	DriverID          string
	Status            AssignmentStatus
	Sequence          int // position in the driver's stop list
	OfferedAt         time.Time
	ExpiresAt         time.Time
	RejectReason      string
	EstimatedPickup   time.Time
	EstimatedDelivery time.Time
	ActualPickup      time.Time
	ActualDelivery    time.Time
	// MissingWindow marks an accepted assignment whose time window
	// generation failed and is pending an async retry.
	MissingWindow bool
}

// Active reports whether the assignment counts against driver capacity.
func (a Assignment) Active() bool {
	return a.Status == AssignmentOffered || a.Status == AssignmentAccepted
}
