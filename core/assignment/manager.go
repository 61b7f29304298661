// Package assignment implements the offer lifecycle: an order-to-driver
// match is created as an offer and moves through exactly one of accepted,
// rejected or expired. Terminal records are kept as an audit trail.
package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courierflow/dispatch/core/events"
	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/logger"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/internal/eventbus"
)

// WindowGenerator produces a delivery time window for an accepted
// assignment. Implemented by the timewindow orchestrator.
type WindowGenerator interface {
	GenerateForAssignment(ctx context.Context, a model.Assignment) error
}

// Manager governs assignment state transitions.
type Manager struct {
	store   Store
	windows WindowGenerator
	bus     eventbus.EventBus
	log     logger.Logger
	now     func() time.Time
}

// NewManager creates a Manager. windows and bus may be nil; transitions then
// skip window generation and event publication respectively.
func NewManager(store Store, windows WindowGenerator, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if store == nil {
		return nil, faults.Validation("store", "nil store provided to NewManager")
	}
	return &Manager{store: store, windows: windows, bus: bus, log: log, now: time.Now}, nil
}

// SetClock overrides the manager's clock. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// CreateOffer creates an offered assignment for the order/driver pair. The
// driver's active assignment count is checked against capacity immediately
// before creation.
func (m *Manager) CreateOffer(ctx context.Context, order model.Order, driver model.Driver, sequence int, estPickup, estDelivery time.Time, ttl time.Duration) (model.Assignment, error) {
	active, err := m.store.CountActive(ctx, driver.ID)
	if err != nil {
		return model.Assignment{}, err
	}
	if active >= driver.MaxOrders {
		return model.Assignment{}, faults.Validation("driver", "driver %s at capacity (%d active, max %d)", driver.ID, active, driver.MaxOrders)
	}
	now := m.now()
	a := model.Assignment{
		ID:                uuid.NewString(),
		OrderID:           order.ID,
		DriverID:          driver.ID,
		Status:            model.AssignmentOffered,
		Sequence:          sequence,
		OfferedAt:         now,
		ExpiresAt:         now.Add(ttl),
		EstimatedPickup:   estPickup,
		EstimatedDelivery: estDelivery,
	}
	if err := m.store.Create(ctx, a); err != nil {
		return model.Assignment{}, err
	}
	if m.bus != nil {
		m.bus.Publish(events.OfferEvent{
			AssignmentID: a.ID,
			OrderID:      a.OrderID,
			DriverID:     a.DriverID,
			ExpiresAt:    a.ExpiresAt,
		})
	}
	return a, nil
}

// Accept moves an offered assignment to accepted. Permitted only strictly
// before the offer expiry; losers of a concurrent race observe an invalid
// transition. On success the time window is generated; a generation failure
// flags the assignment instead of rolling back the acceptance.
func (m *Manager) Accept(ctx context.Context, id string) (model.Assignment, error) {
	a, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Assignment{}, err
	}
	if a.Status != model.AssignmentOffered || !m.now().Before(a.ExpiresAt) {
		return model.Assignment{}, faults.InvalidTransition(id, a.Status.String(), model.AssignmentAccepted.String())
	}
	ok, err := m.store.TransitionStatus(ctx, id, model.AssignmentOffered, model.AssignmentAccepted, "")
	if err != nil {
		return model.Assignment{}, err
	}
	if !ok {
		cur, gerr := m.store.Get(ctx, id)
		if gerr != nil {
			return model.Assignment{}, gerr
		}
		return model.Assignment{}, faults.InvalidTransition(id, cur.Status.String(), model.AssignmentAccepted.String())
	}
	a.Status = model.AssignmentAccepted

	if m.windows != nil {
		if werr := m.windows.GenerateForAssignment(ctx, a); werr != nil {
			m.log.Errorf("window generation for order %s failed, flagging assignment %s: %v", a.OrderID, a.ID, werr)
			if ferr := m.store.SetMissingWindow(ctx, a.ID, true); ferr != nil {
				m.log.Errorf("flagging assignment %s failed: %v", a.ID, ferr)
			}
			a.MissingWindow = true
		}
	}
	m.resolve(a, model.AssignmentAccepted.String(), nil)
	return a, nil
}

// Reject moves an offered assignment to rejected with an optional free-text
// reason. Permitted any time before expiry.
func (m *Manager) Reject(ctx context.Context, id, reason string) (model.Assignment, error) {
	a, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Assignment{}, err
	}
	if a.Status != model.AssignmentOffered {
		return model.Assignment{}, faults.InvalidTransition(id, a.Status.String(), model.AssignmentRejected.String())
	}
	ok, err := m.store.TransitionStatus(ctx, id, model.AssignmentOffered, model.AssignmentRejected, reason)
	if err != nil {
		return model.Assignment{}, err
	}
	if !ok {
		cur, gerr := m.store.Get(ctx, id)
		if gerr != nil {
			return model.Assignment{}, gerr
		}
		return model.Assignment{}, faults.InvalidTransition(id, cur.Status.String(), model.AssignmentRejected.String())
	}
	a.Status = model.AssignmentRejected
	a.RejectReason = reason
	m.resolve(a, model.AssignmentRejected.String(), nil)
	return a, nil
}

// ExpireDue sweeps offers whose expiry has passed and moves them to expired.
// Offers that race with a concurrent accept or reject are skipped; the count
// of expired offers is returned.
func (m *Manager) ExpireDue(ctx context.Context) (int, error) {
	due, err := m.store.ListExpiredOffers(ctx, m.now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, a := range due {
		ok, terr := m.store.TransitionStatus(ctx, a.ID, model.AssignmentOffered, model.AssignmentExpired, "")
		if terr != nil {
			return expired, terr
		}
		if !ok {
			continue
		}
		expired++
		a.Status = model.AssignmentExpired
		m.resolve(a, model.AssignmentExpired.String(), nil)
	}
	return expired, nil
}

// RunExpirySweep runs ExpireDue on the given interval until the context is
// canceled. It runs on its own timer, independent of accept/reject calls.
func (m *Manager) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := m.ExpireDue(ctx); err != nil {
				m.log.Errorf("expiry sweep: %v", err)
			} else if n > 0 {
				m.log.Infof("expired %d offers", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// ActiveCount returns the driver's offered plus accepted assignment count.
func (m *Manager) ActiveCount(ctx context.Context, driverID string) (int, error) {
	return m.store.CountActive(ctx, driverID)
}

// FindOfferedAssignmentsForDriver returns the driver's pending offers. This
// is the supported query surface; internal storage handles are never exposed
// across component boundaries.
func (m *Manager) FindOfferedAssignmentsForDriver(ctx context.Context, driverID string) ([]model.Assignment, error) {
	return m.store.ListOfferedByDriver(ctx, driverID)
}

func (m *Manager) resolve(a model.Assignment, outcome string, err error) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.OfferResolvedEvent{
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		DriverID:     a.DriverID,
		Outcome:      outcome,
		Err:          err,
	})
}
