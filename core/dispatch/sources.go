package dispatch

import (
	"context"
	"time"

	"github.com/courierflow/dispatch/core/model"
)

// OrderSource provides the order snapshot for a dispatch cycle.
type OrderSource interface {
	// ListMatchable returns orders eligible for matching.
	ListMatchable(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	SetOrderStatus(ctx context.Context, id string, status model.OrderStatus) error
}

// DriverSource provides the driver snapshot for a dispatch cycle. Location
// writes are independent of assignment status writes and need no
// cross-locking.
type DriverSource interface {
	ListAvailable(ctx context.Context) ([]model.Driver, error)
	GetDriver(ctx context.Context, id string) (model.Driver, error)
	UpdateLocation(ctx context.Context, id string, loc model.LatLng, at time.Time) error
}
