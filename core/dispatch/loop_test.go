package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courierflow/dispatch/core/assignment"
	"github.com/courierflow/dispatch/core/cluster"
	"github.com/courierflow/dispatch/core/dispatch/logging"
	"github.com/courierflow/dispatch/core/driverstatus"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/mqtt"
	"github.com/courierflow/dispatch/infra/logger"
	"github.com/courierflow/dispatch/infra/store/memory"
)

var pickupLoc = model.LatLng{Lat: 48.8566, Lng: 2.3522}

type fakeClient struct {
	mu        sync.Mutex
	responses map[string]mqtt.Response
	waitErrs  map[string]error
	sendErrs  map[string]error
	sent      []mqtt.Offer
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		responses: map[string]mqtt.Response{},
		waitErrs:  map[string]error{},
		sendErrs:  map[string]error{},
	}
}

func (f *fakeClient) SendOffer(driverID string, offer mqtt.Offer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErrs[driverID]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, offer)
	return "msg-" + driverID, nil
}

func (f *fakeClient) WaitForResponse(messageID string, _ time.Duration) (mqtt.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	driverID := strings.TrimPrefix(messageID, "msg-")
	if err := f.waitErrs[driverID]; err != nil {
		return mqtt.Response{}, err
	}
	return f.responses[driverID], nil
}

type memAudit struct {
	mu   sync.Mutex
	recs []logging.LogRecord
}

func (a *memAudit) Append(_ context.Context, rec logging.LogRecord) error {
	a.mu.Lock()
	a.recs = append(a.recs, rec)
	a.mu.Unlock()
	return nil
}

func (a *memAudit) Query(context.Context, logging.LogQuery) ([]logging.LogRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]logging.LogRecord(nil), a.recs...), nil
}

func (a *memAudit) Close() error { return nil }

type loopEnv struct {
	mgr         *Manager
	orders      *memory.OrderStore
	drivers     *memory.DriverStore
	assignments *memory.AssignmentStore
	offers      *assignment.Manager
	client      *fakeClient
	audit       *memAudit
	status      *driverstatus.MemoryStore
}

func newLoopEnv(t *testing.T) loopEnv {
	t.Helper()
	orders := memory.NewOrderStore()
	drivers := memory.NewDriverStore()
	assignments := memory.NewAssignmentStore()
	client := newFakeClient()
	audit := &memAudit{}
	status := driverstatus.NewMemoryStore()

	offers, err := assignment.NewManager(assignments, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	regions := cluster.NewService(nil, cluster.Config{}, logger.NopLogger{})

	mgr, err := NewManager(Config{}, orders, drivers, regions, offers, client, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	mgr.SetAuditStore(audit)
	mgr.SetStatusStore(status)
	return loopEnv{mgr: mgr, orders: orders, drivers: drivers, assignments: assignments, offers: offers, client: client, audit: audit, status: status}
}

func (e loopEnv) addOrder(t *testing.T, id string, priority int) {
	t.Helper()
	require.NoError(t, e.orders.Put(context.Background(), model.Order{
		ID:       id,
		Status:   model.OrderPending,
		Priority: priority,
		Pickup:   pickupLoc,
		Dropoff:  model.LatLng{Lat: pickupLoc.Lat + 0.02, Lng: pickupLoc.Lng},
	}))
}

func (e loopEnv) addDriver(t *testing.T, id string, offsetLat float64) {
	t.Helper()
	require.NoError(t, e.drivers.Put(context.Background(), model.Driver{
		ID:        id,
		Status:    model.DriverAvailable,
		MaxOrders: 2,
		Location:  model.LatLng{Lat: pickupLoc.Lat + offsetLat, Lng: pickupLoc.Lng},
	}))
}

func TestRunCycleAssignsNearestDriver(t *testing.T) {
	env := newLoopEnv(t)
	ctx := context.Background()
	env.addOrder(t, "o-1", 0)
	env.addDriver(t, "d-near", 0.01) // ~1.1 km
	env.addDriver(t, "d-far", 0.05)  // ~5.6 km
	env.client.responses["d-near"] = mqtt.Response{Accepted: true}
	env.client.responses["d-far"] = mqtt.Response{Accepted: true}

	res, err := env.mgr.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Assigned)
	require.Len(t, res.Offers, 1)
	require.Equal(t, "d-near", res.Offers[0].DriverID)
	require.Equal(t, OutcomeAccepted, res.Offers[0].Outcome)

	ord, err := env.orders.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, model.OrderAssigned, ord.Status)
}

func TestRunCycleFallsThroughOnRejection(t *testing.T) {
	env := newLoopEnv(t)
	ctx := context.Background()
	env.addOrder(t, "o-1", 0)
	env.addDriver(t, "d-near", 0.01)
	env.addDriver(t, "d-far", 0.05)
	env.client.responses["d-near"] = mqtt.Response{Accepted: false, Reason: "on a break"}
	env.client.responses["d-far"] = mqtt.Response{Accepted: true}

	res, err := env.mgr.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Assigned)
	require.Len(t, res.Offers, 2)
	require.Equal(t, OutcomeRejected, res.Offers[0].Outcome)
	require.Equal(t, "on a break", res.Offers[0].Reason)
	require.Equal(t, OutcomeAccepted, res.Offers[1].Outcome)
	require.Equal(t, "d-far", res.Offers[1].DriverID)
}

func TestRunCycleLeavesUnansweredOfferToSweep(t *testing.T) {
	env := newLoopEnv(t)
	ctx := context.Background()
	env.addOrder(t, "o-1", 0)
	env.addDriver(t, "d-near", 0.01)
	env.addDriver(t, "d-far", 0.05)
	env.client.waitErrs["d-near"] = mqtt.ErrResponseTimeout

	res, err := env.mgr.RunCycle(ctx)
	require.NoError(t, err)
	require.Zero(t, res.Assigned)
	require.Len(t, res.Offers, 1, "unanswered offer must stop the order's attempts")
	require.Equal(t, OutcomePending, res.Offers[0].Outcome)

	offered, err := env.offers.FindOfferedAssignmentsForDriver(ctx, "d-near")
	require.NoError(t, err)
	require.Len(t, offered, 1)

	env.offers.SetClock(func() time.Time { return time.Now().Add(time.Hour) })
	n, err := env.offers.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunCyclePublishFailureTriesNextCandidate(t *testing.T) {
	env := newLoopEnv(t)
	ctx := context.Background()
	env.addOrder(t, "o-1", 0)
	env.addDriver(t, "d-near", 0.01)
	env.addDriver(t, "d-far", 0.05)
	env.client.sendErrs["d-near"] = mqtt.ErrResponseTimeout
	env.client.responses["d-far"] = mqtt.Response{Accepted: true}

	res, err := env.mgr.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Assigned)
	require.Len(t, res.Offers, 2)
	require.Equal(t, "publish failed", res.Offers[0].Reason)
	require.Equal(t, "d-far", res.Offers[1].DriverID)
}

func TestRunCycleEmptySnapshot(t *testing.T) {
	env := newLoopEnv(t)
	res, err := env.mgr.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Regions)
	require.Empty(t, res.Offers)
}

func TestRunCycleHonorsPriority(t *testing.T) {
	env := newLoopEnv(t)
	ctx := context.Background()
	env.addOrder(t, "o-low", 0)
	env.addOrder(t, "o-high", 5)
	env.addDriver(t, "d-1", 0.01)
	env.client.responses["d-1"] = mqtt.Response{Accepted: true}

	res, err := env.mgr.RunCycle(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.Offers)
	require.Equal(t, "o-high", res.Offers[0].OrderID)
}

func TestRunCycleWritesAuditAndStatus(t *testing.T) {
	env := newLoopEnv(t)
	ctx := context.Background()
	env.addOrder(t, "o-1", 0)
	env.addDriver(t, "d-1", 0.01)
	env.client.responses["d-1"] = mqtt.Response{Accepted: true}

	_, err := env.mgr.RunCycle(ctx)
	require.NoError(t, err)

	recs, err := env.audit.Query(ctx, logging.LogQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, []string{"o-1"}, recs[0].Orders)
	require.Len(t, recs[0].Offers, 1)
	require.Equal(t, OutcomeAccepted, recs[0].Offers[0].Outcome)

	sts := env.status.List(driverstatus.Filter{})
	require.Len(t, sts, 1)
	require.Equal(t, "o-1", sts[0].LastOffer.OrderID)
	require.Equal(t, 1, sts[0].ActiveOrders)
}

func TestRunCycleSkipsDriverAtCapacity(t *testing.T) {
	env := newLoopEnv(t)
	ctx := context.Background()
	env.addOrder(t, "o-1", 0)
	env.addDriver(t, "d-busy", 0.01)
	env.addDriver(t, "d-free", 0.05)
	env.client.responses["d-free"] = mqtt.Response{Accepted: true}

	// Fill d-busy to its two-order capacity before the cycle.
	busy, err := env.drivers.GetDriver(ctx, "d-busy")
	require.NoError(t, err)
	for _, oid := range []string{"o-x", "o-y"} {
		_, err := env.offers.CreateOffer(ctx, model.Order{ID: oid}, busy, 0, time.Now(), time.Now(), time.Hour)
		require.NoError(t, err)
	}

	res, err := env.mgr.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Assigned)
	require.Len(t, res.Offers, 1)
	require.Equal(t, "d-free", res.Offers[0].DriverID)
}
