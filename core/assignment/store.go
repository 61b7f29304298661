package assignment

import (
	"context"
	"time"

	"github.com/courierflow/dispatch/core/model"
)

// Store is the persistence contract for assignments. Implementations must
// provide an atomic conditional status update: TransitionStatus writes the
// new status only if the stored status still equals from, so that exactly one
// of several racing transitions wins.
type Store interface {
	Create(ctx context.Context, a model.Assignment) error
	Get(ctx context.Context, id string) (model.Assignment, error)
	// TransitionStatus atomically moves the assignment from one status to
	// another. reason is persisted for rejections and ignored otherwise.
	// Returns false when the stored status no longer matches from.
	TransitionStatus(ctx context.Context, id string, from, to model.AssignmentStatus, reason string) (bool, error)
	// SetMissingWindow flags an accepted assignment whose window generation
	// is pending an async retry.
	SetMissingWindow(ctx context.Context, id string, missing bool) error
	// ListOfferedByDriver returns the driver's non-terminal offers.
	ListOfferedByDriver(ctx context.Context, driverID string) ([]model.Assignment, error)
	// ListExpiredOffers returns offers still in the offered state whose
	// expiry lies at or before asOf.
	ListExpiredOffers(ctx context.Context, asOf time.Time) ([]model.Assignment, error)
	// CountActive returns the driver's active (offered or accepted)
	// assignment count.
	CountActive(ctx context.Context, driverID string) (int, error)
}
