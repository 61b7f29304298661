package postgres

import (
	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

func orderStatusFromString(s string) (model.OrderStatus, error) {
	switch s {
	case "pending":
		return model.OrderPending, nil
	case "assigned":
		return model.OrderAssigned, nil
	case "picked_up":
		return model.OrderPickedUp, nil
	case "delivered":
		return model.OrderDelivered, nil
	case "cancelled":
		return model.OrderCancelled, nil
	}
	return 0, faults.Validation("order status", s)
}

func driverStatusFromString(s string) (model.DriverStatus, error) {
	switch s {
	case "offline":
		return model.DriverOffline, nil
	case "available":
		return model.DriverAvailable, nil
	case "en_route_pickup":
		return model.DriverEnRoutePickup, nil
	case "at_pickup":
		return model.DriverAtPickup, nil
	case "en_route_delivery":
		return model.DriverEnRouteDelivery, nil
	case "at_delivery":
		return model.DriverAtDelivery, nil
	}
	return 0, faults.Validation("driver status", s)
}

func assignmentStatusFromString(s string) (model.AssignmentStatus, error) {
	switch s {
	case "offered":
		return model.AssignmentOffered, nil
	case "accepted":
		return model.AssignmentAccepted, nil
	case "rejected":
		return model.AssignmentRejected, nil
	case "expired":
		return model.AssignmentExpired, nil
	}
	return 0, faults.Validation("assignment status", s)
}
