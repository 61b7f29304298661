package timewindow

import (
	"context"
	"math"
	"time"

	"github.com/courierflow/dispatch/core/events"
	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/logger"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/observation"
	"github.com/courierflow/dispatch/internal/eventbus"
)

// Store is the persistence contract for time windows, keyed one-to-one by
// order.
type Store interface {
	// Put creates or replaces the window for its order.
	Put(ctx context.Context, w model.TimeWindow) error
	GetByOrder(ctx context.Context, orderID string) (model.TimeWindow, error)
	// ListCompleted returns windows whose realized outcome has been recorded.
	ListCompleted(ctx context.Context) ([]model.TimeWindow, error)
}

// RouteProvider returns the road distance in meters between two points. May
// fail or time out; the orchestrator decides whether to retry.
type RouteProvider interface {
	GetDistance(ctx context.Context, from, to model.LatLng) (float64, error)
}

// OrderSource resolves order identities to their locations.
type OrderSource interface {
	GetOrder(ctx context.Context, id string) (model.Order, error)
}

// Average urban travel speed and fixed service time used when refining the
// expected arrival from a routed distance.
const (
	avgSpeedKmh        = 35.0
	serviceTimeMinutes = 5.0
)

// TravelEstimate converts a road distance to an estimated trip duration at
// average urban speed, including the fixed service time at the stop.
func TravelEstimate(distanceKm float64) time.Duration {
	minutes := distanceKm*60/avgSpeedKmh + serviceTimeMinutes
	return time.Duration(minutes * float64(time.Minute))
}

// PerformanceMetrics aggregates realized window outcomes.
type PerformanceMetrics struct {
	CompletedCount         int
	ViolationRate          float64
	AvgWidthSeconds        float64
	AvgAbsDeviationSeconds float64
	CountByMethod          map[string]int
}

// Orchestrator selects a calculation method based on data availability,
// persists the resulting window and records post-delivery performance.
type Orchestrator struct {
	store    Store
	obs      *observation.Query
	calc     *Calculator
	routes   RouteProvider
	orders   OrderSource
	bus      eventbus.EventBus
	log      logger.Logger
	now      func() time.Time
	defaults Params
	// Observation matching scope; zero values take the package defaults.
	segRadiusKm float64
	segMaxAge   time.Duration
}

// NewOrchestrator creates an Orchestrator. routes, orders and bus may be nil;
// the routing-refined path then fails fast and events are skipped.
func NewOrchestrator(store Store, obs *observation.Query, calc *Calculator, routes RouteProvider, orders OrderSource, bus eventbus.EventBus, log logger.Logger) (*Orchestrator, error) {
	if store == nil || obs == nil || calc == nil {
		return nil, faults.Validation("orchestrator", "nil store, observation query or calculator")
	}
	return &Orchestrator{store: store, obs: obs, calc: calc, routes: routes, orders: orders, bus: bus, log: log, now: time.Now, defaults: DefaultParams()}, nil
}

// SetQueryDefaults overrides the parameters used when a caller supplies none
// and the observation matching scope. Zero radius or max age keep the
// package defaults.
func (o *Orchestrator) SetQueryDefaults(p Params, radiusKm float64, maxAge time.Duration) {
	o.defaults = p
	o.segRadiusKm = radiusKm
	o.segMaxAge = maxAge
}

// SetClock overrides the clock on the orchestrator and its calculator.
// Intended for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	if now != nil {
		o.now = now
		o.calc.SetClock(now)
	}
}

// Generate computes and persists the time window for an order. The method is
// stochastic_saa iff at least MinSAASamples observations match the segment,
// otherwise the simple heuristic. params may be nil for defaults.
func (o *Orchestrator) Generate(ctx context.Context, orderID string, expectedArrival time.Time, from, to model.LatLng, params *Params) (model.TimeWindow, error) {
	return o.generate(ctx, orderID, expectedArrival, from, to, params, "")
}

// GenerateWithRouting refines the expected arrival from a routed road
// distance before computing the window: travel at 35 km/h average urban
// speed plus a fixed 5 minute service time, counted from departure. When
// distanceKm is nil the distance is fetched from the route provider, and
// provider failures propagate rather than silently falling back. The
// calculation method is annotated with the provider suffix for traceability.
func (o *Orchestrator) GenerateWithRouting(ctx context.Context, orderID string, departure time.Time, from, to model.LatLng, distanceKm *float64, params *Params, providerName string) (model.TimeWindow, error) {
	var km float64
	if distanceKm != nil {
		km = *distanceKm
	} else {
		if o.routes == nil {
			return model.TimeWindow{}, faults.External("routing", faults.Validation("provider", "no route provider configured"))
		}
		meters, err := o.routes.GetDistance(ctx, from, to)
		if err != nil {
			return model.TimeWindow{}, faults.External("routing", err)
		}
		km = meters / 1000
	}
	expectedArrival := departure.Add(TravelEstimate(km))
	if providerName == "" {
		providerName = "routed"
	}
	return o.generate(ctx, orderID, expectedArrival, from, to, params, "_"+providerName)
}

func (o *Orchestrator) generate(ctx context.Context, orderID string, expectedArrival time.Time, from, to model.LatLng, params *Params, methodSuffix string) (model.TimeWindow, error) {
	obs, err := o.obs.FindForSegment(ctx, observation.SegmentQuery{From: from, To: to, RadiusKm: o.segRadiusKm, MaxAge: o.segMaxAge})
	if err != nil {
		return model.TimeWindow{}, err
	}

	p := o.defaults
	if params != nil {
		p = *params
	}
	fallback := false
	if p.Method == "" || p.Method == model.MethodStochasticSAA {
		if len(obs) >= MinSAASamples {
			p.Method = model.MethodStochasticSAA
		} else {
			fallback = p.Method == model.MethodStochasticSAA
			p.Method = model.MethodSimpleHeuristic
		}
	}

	w, err := o.calc.Compute(expectedArrival, obs, p)
	if err != nil {
		return model.TimeWindow{}, err
	}
	w.OrderID = orderID
	w.CalculationMethod += methodSuffix
	if err := o.store.Put(ctx, w); err != nil {
		return model.TimeWindow{}, err
	}
	if o.bus != nil {
		o.bus.Publish(events.WindowEvent{
			OrderID:      orderID,
			Method:       w.CalculationMethod,
			WidthSeconds: w.WidthSeconds,
			Fallback:     fallback,
		})
	}
	o.log.Debugw("time window generated", map[string]any{
		"order_id": orderID,
		"method":   w.CalculationMethod,
		"width_s":  w.WidthSeconds,
		"samples":  w.SampleCount,
	})
	return w, nil
}

// GenerateForAssignment resolves the assignment's order and generates its
// window from the estimated delivery time. Used by the assignment manager on
// acceptance.
func (o *Orchestrator) GenerateForAssignment(ctx context.Context, a model.Assignment) error {
	if o.orders == nil {
		return faults.Validation("orders", "no order source configured")
	}
	ord, err := o.orders.GetOrder(ctx, a.OrderID)
	if err != nil {
		return err
	}
	_, err = o.Generate(ctx, a.OrderID, a.EstimatedDelivery, ord.Pickup, ord.Dropoff, nil)
	return err
}

// UpdatePerformance records the realized delivery outcome for the order's
// window. Calling it again overwrites the previous outcome.
func (o *Orchestrator) UpdatePerformance(ctx context.Context, orderID string, actualArrival time.Time) (model.TimeWindow, error) {
	w, err := o.store.GetByOrder(ctx, orderID)
	if err != nil {
		return model.TimeWindow{}, err
	}
	w.ActualArrival = actualArrival
	w.DeviationSeconds = actualArrival.Sub(w.ExpectedArrival).Seconds()
	w.WasWithinWindow = w.Contains(actualArrival)
	w.Completed = true
	if err := o.store.Put(ctx, w); err != nil {
		return model.TimeWindow{}, err
	}
	return w, nil
}

// CalculateViolationRate returns the fraction of completed windows whose
// actual arrival fell outside the committed interval.
func (o *Orchestrator) CalculateViolationRate(ctx context.Context) (float64, error) {
	m, err := o.GetPerformanceMetrics(ctx)
	if err != nil {
		return 0, err
	}
	return m.ViolationRate, nil
}

// GetPerformanceMetrics scans completed windows and aggregates violation
// rate, average width, average absolute deviation and per-method counts.
func (o *Orchestrator) GetPerformanceMetrics(ctx context.Context) (PerformanceMetrics, error) {
	completed, err := o.store.ListCompleted(ctx)
	if err != nil {
		return PerformanceMetrics{}, err
	}
	m := PerformanceMetrics{CountByMethod: make(map[string]int)}
	if len(completed) == 0 {
		return m, nil
	}
	var violations int
	var widthSum, absDevSum float64
	for _, w := range completed {
		if !w.WasWithinWindow {
			violations++
		}
		widthSum += w.WidthSeconds
		absDevSum += math.Abs(w.DeviationSeconds)
		m.CountByMethod[w.CalculationMethod]++
	}
	n := float64(len(completed))
	m.CompletedCount = len(completed)
	m.ViolationRate = float64(violations) / n
	m.AvgWidthSeconds = widthSum / n
	m.AvgAbsDeviationSeconds = absDevSum / n
	return m, nil
}
