// Package observation reads and writes historical per-segment travel time
// samples and summarizes them for the time window calculator.
package observation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courierflow/dispatch/core/geo"
	"github.com/courierflow/dispatch/core/logger"
	"github.com/courierflow/dispatch/core/model"
)

// DefaultRadiusKm bounds segment matching around each query endpoint.
const DefaultRadiusKm = 1.0

// DefaultMaxAge excludes observations older than 30 days.
const DefaultMaxAge = 30 * 24 * time.Hour

// Bounds is a latitude/longitude box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p model.LatLng) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// BoundsAround builds a box of radiusKm around p using the km/111 degree
// approximation from core/geo.
func BoundsAround(p model.LatLng, radiusKm float64) Bounds {
	d := geo.KmToDegrees(radiusKm)
	return Bounds{MinLat: p.Lat - d, MaxLat: p.Lat + d, MinLng: p.Lng - d, MaxLng: p.Lng + d}
}

// Filter is the storage-level query: both endpoints inside their boxes,
// created at or after Since, optional exact bucket matches.
type Filter struct {
	From      Bounds
	To        Bounds
	Since     time.Time
	TimeOfDay string
	DayOfWeek string
}

// Store is the persistence contract for observations. Find returns matches
// ordered most-recent-first.
type Store interface {
	Append(ctx context.Context, obs model.RouteSegmentObservation) error
	Find(ctx context.Context, f Filter) ([]model.RouteSegmentObservation, error)
}

// SegmentQuery identifies a from/to segment with optional bucket filters.
// Zero RadiusKm and MaxAge take the package defaults.
type SegmentQuery struct {
	From      model.LatLng
	To        model.LatLng
	RadiusKm  float64
	TimeOfDay string
	DayOfWeek string
	MaxAge    time.Duration
}

// Query reads and writes route segment observations through a Store.
type Query struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

// NewQuery creates a Query.
func NewQuery(store Store, log logger.Logger) *Query {
	return &Query{store: store, log: log, now: time.Now}
}

// SetClock overrides the clock. Intended for tests.
func (q *Query) SetClock(now func() time.Time) {
	if now != nil {
		q.now = now
	}
}

// FindForSegment returns historical observations matching the segment,
// ordered most-recent-first.
func (q *Query) FindForSegment(ctx context.Context, sq SegmentQuery) ([]model.RouteSegmentObservation, error) {
	radius := sq.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	maxAge := sq.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return q.store.Find(ctx, Filter{
		From:      BoundsAround(sq.From, radius),
		To:        BoundsAround(sq.To, radius),
		Since:     q.now().Add(-maxAge),
		TimeOfDay: sq.TimeOfDay,
		DayOfWeek: sq.DayOfWeek,
	})
}

// Record appends a new observation for a realized trip, deriving the
// time-of-day bucket, weekday and deviation at write time.
func (q *Query) Record(ctx context.Context, from, to model.LatLng, estimatedSeconds, actualSeconds float64) (model.RouteSegmentObservation, error) {
	obs := model.NewRouteSegmentObservation(uuid.NewString(), from, to, estimatedSeconds, actualSeconds, q.now())
	if err := q.store.Append(ctx, obs); err != nil {
		return model.RouteSegmentObservation{}, err
	}
	return obs, nil
}
