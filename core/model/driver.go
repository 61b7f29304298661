package model

import "time"

// DriverStatus tracks what a driver is currently doing.
type DriverStatus int

const (
	DriverOffline DriverStatus = iota
	DriverAvailable
	DriverEnRoutePickup
	DriverAtPickup
	DriverEnRouteDelivery
	DriverAtDelivery
)

// String returns a human-readable representation of the driver status.
func (s DriverStatus) String() string {
	switch s {
	case DriverOffline:
		return "offline"
	case DriverAvailable:
		return "available"
	case DriverEnRoutePickup:
		return "en_route_pickup"
	case DriverAtPickup:
		return "at_pickup"
	case DriverEnRouteDelivery:
		return "en_route_delivery"
	case DriverAtDelivery:
		return "at_delivery"
	default:
		return "unknown"
	}
}

// Driver represents a delivery driver. Location is owned by the driver's app
// and mutated only through location pings.
type Driver struct {
	ID          string
	Name        string
	Phone       string
	VehicleType string
	Status      DriverStatus
	MaxOrders   int // maximum concurrent active assignments
	Location    LatLng
	LocatedAt   time.Time // timestamp of the last location ping
}

// CanReceiveOffers reports whether the driver may be offered new work.
func (d Driver) CanReceiveOffers() bool {
	return d.Status == DriverAvailable && d.MaxOrders > 0
}
