// Package dispatch runs the batch matching loop: snapshot pending orders and
// available drivers, partition them into regions, and resolve offers within
// each region until orders are assigned or candidates run out.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/courierflow/dispatch/core/assignment"
	"github.com/courierflow/dispatch/core/cluster"
	"github.com/courierflow/dispatch/core/dispatch/logging"
	"github.com/courierflow/dispatch/core/driverstatus"
	"github.com/courierflow/dispatch/core/events"
	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/geo"
	"github.com/courierflow/dispatch/core/logger"
	"github.com/courierflow/dispatch/core/metrics"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/mqtt"
	"github.com/courierflow/dispatch/core/timewindow"
	"github.com/courierflow/dispatch/internal/eventbus"
)

// Offer resolution outcomes as recorded in metrics and the audit log.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeExpired  = "expired"
	OutcomePending  = "pending"
)

// CycleResult summarizes one dispatch cycle.
type CycleResult struct {
	Cycle    uint64
	Orders   int
	Drivers  int
	Regions  int
	Assigned int
	Offers   []metrics.OfferResult
	Duration time.Duration
}

// Manager drives the periodic dispatch cycle.
type Manager struct {
	cfg       Config
	orders    OrderSource
	drivers   DriverSource
	regions   *cluster.Service
	offers    *assignment.Manager
	publisher mqtt.Client
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus
	logger    logger.Logger
	store     logging.LogStore
	status    driverstatus.Store
	cycle     atomic.Uint64
	now       func() time.Time
	mu        sync.Mutex
}

// NewManager creates a new dispatch manager.
func NewManager(cfg Config, orders OrderSource, drivers DriverSource, regions *cluster.Service, offers *assignment.Manager, publisher mqtt.Client, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if orders == nil || drivers == nil || regions == nil || offers == nil || publisher == nil {
		return nil, faults.Validation("dispatch", "nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		cfg:       cfg,
		orders:    orders,
		drivers:   drivers,
		regions:   regions,
		offers:    offers,
		publisher: publisher,
		metrics:   sink,
		bus:       bus,
		logger:    log,
		now:       time.Now,
	}, nil
}

// SetAuditStore configures the store used to persist dispatch decisions.
func (m *Manager) SetAuditStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// SetStatusStore configures the store used to persist driver status summaries.
func (m *Manager) SetStatusStore(store driverstatus.Store) {
	m.mu.Lock()
	m.status = store
	m.mu.Unlock()
}

// SetClock overrides the manager's clock. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Close releases resources held by the manager.
func (m *Manager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Run executes dispatch cycles on the configured batch interval until the
// context is canceled.
func (m *Manager) Run(ctx context.Context) {
	interval := time.Duration(m.cfg.BatchIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := m.RunCycle(ctx); err != nil {
				m.logger.Errorf("dispatch cycle: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle executes one dispatch cycle: snapshot, cluster, offer.
func (m *Manager) RunCycle(ctx context.Context) (CycleResult, error) {
	start := m.now()
	result := CycleResult{Cycle: m.cycle.Add(1)}

	orders, err := m.orders.ListMatchable(ctx)
	if err != nil {
		return result, err
	}
	drivers, err := m.drivers.ListAvailable(ctx)
	if err != nil {
		return result, err
	}
	result.Orders = len(orders)
	result.Drivers = len(drivers)
	if m.bus != nil {
		m.bus.Publish(events.CycleEvent{Orders: len(orders), Drivers: len(drivers), Time: start})
	}
	if sr, ok := m.metrics.(metrics.SnapshotRecorder); ok {
		if err := sr.RecordSnapshotSize(len(orders), len(drivers)); err != nil {
			m.logger.Errorf("snapshot metrics error: %v", err)
		}
	}
	if len(orders) == 0 || len(drivers) == 0 {
		result.Duration = m.now().Sub(start)
		return result, nil
	}

	regions, err := m.regions.BuildRegions(ctx, orders, drivers)
	if err != nil {
		return result, err
	}
	result.Regions = len(regions)
	m.logger.Infof("cycle %d: %d orders, %d drivers, %d regions", result.Cycle, len(orders), len(drivers), len(regions))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, m.cfg.MaxConcurrentRegions)
	)
	for _, region := range regions {
		wg.Add(1)
		sem <- struct{}{}
		go func(r model.Region) {
			defer wg.Done()
			defer func() { <-sem }()
			offers, assigned := m.dispatchRegion(ctx, result.Cycle, r)
			mu.Lock()
			result.Offers = append(result.Offers, offers...)
			result.Assigned += assigned
			mu.Unlock()
		}(region)
	}
	wg.Wait()

	if total := len(result.Offers); total > 0 {
		acceptRate.Set(float64(result.Assigned) / float64(total))
	}
	result.Duration = m.now().Sub(start)
	m.recordMetrics(result)
	return result, nil
}

// dispatchRegion works through the region's orders in priority order,
// offering each to the nearest candidate until one accepts or candidates run
// out. Returns the offer records and the number of assigned orders.
func (m *Manager) dispatchRegion(ctx context.Context, cycle uint64, region model.Region) ([]metrics.OfferResult, int) {
	var (
		offers   []metrics.OfferResult
		assigned int
	)
	for _, order := range region.Orders {
		results, ok := m.offerOrder(ctx, cycle, region, order)
		offers = append(offers, results...)
		if ok {
			assigned++
		}
	}
	m.appendAudit(ctx, cycle, region, offers)
	return offers, assigned
}

// offerOrder walks the ranked candidates for one order. It returns true when
// a driver accepted. A candidate that does not answer leaves the offer to the
// expiry sweep and ends the order's attempts for this cycle.
func (m *Manager) offerOrder(ctx context.Context, cycle uint64, region model.Region, order model.Order) ([]metrics.OfferResult, bool) {
	ttl := time.Duration(m.cfg.OfferTTLSeconds) * time.Second
	var results []metrics.OfferResult
	for _, cand := range rankCandidates(order, region.Drivers) {
		rec, outcome := m.offerToDriver(ctx, cycle, region.Name, order, cand, ttl)
		if rec != nil {
			results = append(results, *rec)
		}
		switch outcome {
		case OutcomeAccepted:
			return results, true
		case OutcomePending:
			return results, false
		}
		// rejected or expired: try the next candidate
	}
	return results, false
}

//gocyclo:ignore
func (m *Manager) offerToDriver(ctx context.Context, cycle uint64, regionName string, order model.Order, cand candidate, ttl time.Duration) (*metrics.OfferResult, string) {
	now := m.now()
	estPickup := now.Add(timewindow.TravelEstimate(cand.distanceKm))
	estDelivery := estPickup.Add(timewindow.TravelEstimate(geo.HaversineKm(order.Pickup, order.Dropoff)))

	sequence, err := m.offers.ActiveCount(ctx, cand.driver.ID)
	if err != nil {
		m.logger.Errorf("active count for driver %s: %v", cand.driver.ID, err)
		return nil, OutcomeRejected
	}
	a, err := m.offers.CreateOffer(ctx, order, cand.driver, sequence, estPickup, estDelivery, ttl)
	if err != nil {
		var verr *faults.ValidationError
		if errors.As(err, &verr) {
			// driver filled up since the snapshot
			m.logger.Debugf("skipping driver %s for order %s: %v", cand.driver.ID, order.ID, err)
			return nil, OutcomeRejected
		}
		m.logger.Errorf("offer creation for order %s failed: %v", order.ID, err)
		return nil, OutcomeRejected
	}

	rec := metrics.OfferResult{
		Cycle:        cycle,
		Region:       regionName,
		AssignmentID: a.ID,
		OrderID:      order.ID,
		DriverID:     cand.driver.ID,
		DistanceKm:   cand.distanceKm,
		Time:         now,
	}

	start := time.Now()
	msgID, err := m.publisher.SendOffer(cand.driver.ID, mqtt.Offer{
		AssignmentID: a.ID,
		OrderID:      order.ID,
		Pickup:       order.Pickup,
		Dropoff:      order.Dropoff,
		Sequence:     a.Sequence,
		ExpiresAt:    a.ExpiresAt,
	})
	if err != nil {
		publishFailure.Inc()
		m.logger.Errorf("offer publish to driver %s failed: %v", cand.driver.ID, err)
		if _, rerr := m.offers.Reject(ctx, a.ID, "publish failed"); rerr != nil {
			m.logger.Errorf("rejecting unpublished offer %s: %v", a.ID, rerr)
		}
		rec.Outcome = OutcomeRejected
		rec.Reason = "publish failed"
		m.observeOffer(rec, time.Since(start))
		return &rec, OutcomeRejected
	}
	publishSuccess.Inc()

	resp, err := m.publisher.WaitForResponse(msgID, ttl)
	latency := time.Since(start)
	rec.Latency = latency

	switch {
	case err != nil:
		// no answer before the TTL: the expiry sweep owns this offer now
		rec.Outcome = OutcomePending
		m.logger.Infof("offer %s to driver %s unanswered: %v", a.ID, cand.driver.ID, err)
	case resp.Accepted:
		if _, aerr := m.offers.Accept(ctx, a.ID); aerr != nil {
			rec.Outcome = OutcomeExpired
			rec.Reason = aerr.Error()
			m.logger.Warnf("late acceptance of offer %s: %v", a.ID, aerr)
		} else {
			rec.Outcome = OutcomeAccepted
			if serr := m.orders.SetOrderStatus(ctx, order.ID, model.OrderAssigned); serr != nil {
				m.logger.Errorf("marking order %s assigned: %v", order.ID, serr)
			}
		}
	default:
		rec.Outcome = OutcomeRejected
		rec.Reason = resp.Reason
		if _, rerr := m.offers.Reject(ctx, a.ID, resp.Reason); rerr != nil {
			m.logger.Warnf("rejecting offer %s: %v", a.ID, rerr)
		}
	}

	m.recordStatus(cand.driver.ID, a, rec.Outcome)
	m.observeOffer(rec, latency)
	return &rec, rec.Outcome
}

func (m *Manager) observeOffer(rec metrics.OfferResult, latency time.Duration) {
	offersResolved.WithLabelValues(rec.Outcome).Inc()
	offerLatency.WithLabelValues(rec.Outcome).Observe(latency.Seconds())
}

func (m *Manager) recordStatus(driverID string, a model.Assignment, outcome string) {
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	if status == nil {
		return
	}
	status.RecordOffer(driverID, driverstatus.LastOffer{
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		Outcome:      outcome,
		Timestamp:    m.now(),
	})
}

func (m *Manager) appendAudit(ctx context.Context, cycle uint64, region model.Region, offers []metrics.OfferResult) {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return
	}
	rec := logging.LogRecord{
		Timestamp: m.now(),
		Cycle:     cycle,
		Region:    region.Name,
		Orders:    make([]string, 0, len(region.Orders)),
		Drivers:   make([]string, 0, len(region.Drivers)),
		Offers:    make([]logging.OfferOutcome, 0, len(offers)),
	}
	for _, o := range region.Orders {
		rec.Orders = append(rec.Orders, o.ID)
	}
	for _, d := range region.Drivers {
		rec.Drivers = append(rec.Drivers, d.ID)
	}
	for _, of := range offers {
		rec.Offers = append(rec.Offers, logging.OfferOutcome{
			AssignmentID: of.AssignmentID,
			OrderID:      of.OrderID,
			DriverID:     of.DriverID,
			Outcome:      of.Outcome,
			Reason:       of.Reason,
			LatencyMS:    float64(of.Latency) / float64(time.Millisecond),
		})
	}
	if err := store.Append(ctx, rec); err != nil {
		m.logger.Errorf("audit append: %v", err)
	}
}

// recordMetrics persists cycle metrics if a sink is configured.
func (m *Manager) recordMetrics(res CycleResult) {
	if err := m.metrics.RecordOfferResults(res.Offers); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	if cr, ok := m.metrics.(metrics.CycleRecorder); ok {
		err := cr.RecordCycle(metrics.CycleRecord{
			Cycle:    res.Cycle,
			Orders:   res.Orders,
			Drivers:  res.Drivers,
			Regions:  res.Regions,
			Offers:   len(res.Offers),
			Accepted: res.Assigned,
			Duration: res.Duration,
			Time:     m.now(),
		})
		if err != nil {
			m.logger.Errorf("cycle metrics error: %v", err)
		}
	}
	if lr, ok := m.metrics.(metrics.LatencyRecorder); ok {
		lat := make([]metrics.OfferLatency, 0, len(res.Offers))
		for _, of := range res.Offers {
			lat = append(lat, metrics.OfferLatency{
				AssignmentID: of.AssignmentID,
				DriverID:     of.DriverID,
				Outcome:      of.Outcome,
				Latency:      of.Latency,
			})
		}
		if err := lr.RecordOfferLatency(lat); err != nil {
			m.logger.Errorf("latency metrics error: %v", err)
		}
	}
}
