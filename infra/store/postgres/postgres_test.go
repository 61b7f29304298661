package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/observation"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "dispatch",
			"POSTGRES_PASSWORD": "dispatch",
			"POSTGRES_DB":       "dispatch",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://dispatch:dispatch@%s:%s/dispatch?sslmode=disable", host, port.Port())
	var pool *pgxpool.Pool
	for i := 0; i < 10; i++ {
		pool, err = Connect(ctx, Config{DSN: dsn, ApplySchema: true})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestOrderRepository_Lifecycle(t *testing.T) {
	pool := startPostgres(t)
	repo := NewOrderRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	orders := []model.Order{
		{ID: "o-low", Pickup: model.LatLng{Lat: 48.85, Lng: 2.35}, Priority: 1, CreatedAt: now},
		{ID: "o-high", Pickup: model.LatLng{Lat: 48.86, Lng: 2.36}, Priority: 9, CreatedAt: now.Add(time.Minute)},
		{ID: "o-done", Priority: 5, Status: model.OrderDelivered, CreatedAt: now},
	}
	for _, o := range orders {
		require.NoError(t, repo.Put(ctx, o))
	}

	matchable, err := repo.ListMatchable(ctx)
	require.NoError(t, err)
	require.Len(t, matchable, 2)
	assert.Equal(t, "o-high", matchable[0].ID)
	assert.Equal(t, "o-low", matchable[1].ID)

	require.NoError(t, repo.SetOrderStatus(ctx, "o-high", model.OrderAssigned))
	got, err := repo.GetOrder(ctx, "o-high")
	require.NoError(t, err)
	assert.Equal(t, model.OrderAssigned, got.Status)

	_, err = repo.GetOrder(ctx, "missing")
	require.Error(t, err)
}

func TestDriverRepository_LocationPing(t *testing.T) {
	pool := startPostgres(t)
	repo := NewDriverRepository(pool)
	ctx := context.Background()

	d := model.Driver{ID: "d-1", Name: "Ada", Status: model.DriverAvailable, MaxOrders: 2,
		Location: model.LatLng{Lat: 48.85, Lng: 2.35}, LocatedAt: time.Now().UTC()}
	require.NoError(t, repo.Put(ctx, d))

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.UpdateLocation(ctx, "d-1", model.LatLng{Lat: 48.9, Lng: 2.4}, at))

	got, err := repo.GetDriver(ctx, "d-1")
	require.NoError(t, err)
	assert.InDelta(t, 48.9, got.Location.Lat, 1e-9)

	available, err := repo.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	require.Error(t, repo.UpdateLocation(ctx, "ghost", model.LatLng{}, at))
}

func TestAssignmentRepository_TransitionIsAtomic(t *testing.T) {
	pool := startPostgres(t)
	repo := NewAssignmentRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	a := model.Assignment{ID: "a-1", OrderID: "o-1", DriverID: "d-1",
		Status: model.AssignmentOffered, OfferedAt: now, ExpiresAt: now.Add(2 * time.Minute)}
	require.NoError(t, repo.Create(ctx, a))

	ok, err := repo.TransitionStatus(ctx, "a-1", model.AssignmentOffered, model.AssignmentAccepted, "")
	require.NoError(t, err)
	assert.True(t, ok)

	// The losing transition sees the already-updated row.
	ok, err = repo.TransitionStatus(ctx, "a-1", model.AssignmentOffered, model.AssignmentExpired, "")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentAccepted, got.Status)

	n, err := repo.CountActive(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.TransitionStatus(ctx, "missing", model.AssignmentOffered, model.AssignmentExpired, "")
	require.Error(t, err)
}

func TestAssignmentRepository_ExpiredOffers(t *testing.T) {
	pool := startPostgres(t)
	repo := NewAssignmentRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	stale := model.Assignment{ID: "a-stale", OrderID: "o-1", DriverID: "d-1",
		Status: model.AssignmentOffered, OfferedAt: now.Add(-5 * time.Minute), ExpiresAt: now.Add(-time.Minute)}
	fresh := model.Assignment{ID: "a-fresh", OrderID: "o-2", DriverID: "d-1",
		Status: model.AssignmentOffered, OfferedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, fresh))

	expired, err := repo.ListExpiredOffers(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "a-stale", expired[0].ID)

	offered, err := repo.ListOfferedByDriver(ctx, "d-1")
	require.NoError(t, err)
	assert.Len(t, offered, 2)
}

func TestObservationRepository_BoundingBoxFind(t *testing.T) {
	pool := startPostgres(t)
	repo := NewObservationRepository(pool)
	ctx := context.Background()

	base := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)
	from := model.LatLng{Lat: 48.85, Lng: 2.35}
	to := model.LatLng{Lat: 48.86, Lng: 2.36}
	inside := model.NewRouteSegmentObservation("obs-in", from, to, 600, 700, base)
	far := model.NewRouteSegmentObservation("obs-far", model.LatLng{Lat: 43.6, Lng: 1.44}, to, 600, 700, base)
	old := model.NewRouteSegmentObservation("obs-old", from, to, 600, 700, base.AddDate(0, -2, 0))
	for _, o := range []model.RouteSegmentObservation{inside, far, old} {
		require.NoError(t, repo.Append(ctx, o))
	}

	f := observation.Filter{
		From:  observation.BoundsAround(from, 1),
		To:    observation.BoundsAround(to, 1),
		Since: base.AddDate(0, 0, -30),
	}
	res, err := repo.Find(ctx, f)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "obs-in", res[0].ID)
	assert.InDelta(t, 100, res[0].DeviationSeconds, 1e-9)

	f.TimeOfDay = model.BucketNight
	res, err = repo.Find(ctx, f)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestWindowRepository_UpsertAndCompleted(t *testing.T) {
	pool := startPostgres(t)
	repo := NewWindowRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	w := model.TimeWindow{
		OrderID:           "o-1",
		LowerBound:        now.Add(20 * time.Minute),
		UpperBound:        now.Add(50 * time.Minute),
		WidthSeconds:      1800,
		ExpectedArrival:   now.Add(35 * time.Minute),
		ConfidenceLevel:   0.9,
		CalculationMethod: model.MethodSimpleHeuristic,
	}
	require.NoError(t, repo.Put(ctx, w))

	completed, err := repo.ListCompleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, completed)

	w.ActualArrival = now.Add(40 * time.Minute)
	w.WasWithinWindow = true
	w.Completed = true
	require.NoError(t, repo.Put(ctx, w))

	got, err := repo.GetByOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.True(t, got.WasWithinWindow)

	completed, err = repo.ListCompleted(ctx)
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	_, err = repo.GetByOrder(ctx, "missing")
	require.Error(t, err)
}
