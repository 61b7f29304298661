package model

import "time"

// OrderStatus tracks an order through its delivery lifecycle.
type OrderStatus int

const (
	OrderPending OrderStatus = iota
	OrderAssigned
	OrderPickedUp
	OrderDelivered
	OrderCancelled
)

// String returns a human-readable representation of the order status.
func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "pending"
	case OrderAssigned:
		return "assigned"
	case OrderPickedUp:
		return "picked_up"
	case OrderDelivered:
		return "delivered"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order represents a delivery order awaiting or undergoing fulfilment.
type Order struct {
	ID              string
	CustomerID      string
	Pickup          LatLng
	PickupAddress   string
	Dropoff         LatLng
	DropoffAddress  string
	DeliveryDate    time.Time
	PreferredSlot   string // optional, e.g. "14:00-16:00"
	Priority        int    // 1 (lowest) to 10 (highest)
	Value           float64
	Status          OrderStatus
	CreatedAt       time.Time
}

// Matchable reports whether the order can participate in a dispatch cycle.
func (o Order) Matchable() bool {
	return o.Status == OrderPending
}
