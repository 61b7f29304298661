package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/infra/logger"
)

type fakeIndex struct {
	available bool
	ids       []int
	err       error
	calls     int
}

func (f *fakeIndex) Available(context.Context) bool { return f.available }

func (f *fakeIndex) ClusterPoints(_ context.Context, points []model.LatLng, _ float64, _ int) ([]int, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

func order(id string, lat, lng float64) model.Order {
	return model.Order{ID: id, Pickup: model.LatLng{Lat: lat, Lng: lng}, Status: model.OrderPending}
}

func driver(id string, lat, lng float64) model.Driver {
	return model.Driver{ID: id, Status: model.DriverAvailable, MaxOrders: 3, Location: model.LatLng{Lat: lat, Lng: lng}}
}

func TestBuildRegionsEmptyInputs(t *testing.T) {
	svc := NewService(nil, Config{}, logger.NopLogger{})
	regions, err := svc.BuildRegions(context.Background(), nil, []model.Driver{driver("d1", 0, 0)})
	require.NoError(t, err)
	require.Empty(t, regions)

	regions, err = svc.BuildRegions(context.Background(), []model.Order{order("o1", 0, 0)}, nil)
	require.NoError(t, err)
	require.Empty(t, regions)
}

func TestBuildRegionsNearbyDriversOnly(t *testing.T) {
	// Order in San Francisco, drivers at roughly 2 km, 10 km and 60 km.
	orders := []model.Order{order("o1", 37.7749, -122.4194)}
	drivers := []model.Driver{
		driver("d2km", 37.7929, -122.4194),
		driver("d10km", 37.8649, -122.4194),
		driver("d60km", 38.3149, -122.4194),
	}
	svc := NewService(nil, Config{MaxDistanceKm: 50}, logger.NopLogger{})
	regions, err := svc.BuildRegions(context.Background(), orders, drivers)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	require.Len(t, regions[0].Orders, 1)
	ids := make([]string, 0, len(regions[0].Drivers))
	for _, d := range regions[0].Drivers {
		ids = append(ids, d.ID)
	}
	require.ElementsMatch(t, []string{"d2km", "d10km"}, ids)
}

func TestBuildRegionsPartitionsOrders(t *testing.T) {
	// Two far-apart groups plus one isolated order.
	orders := []model.Order{
		order("a1", 37.77, -122.42),
		order("a2", 37.78, -122.41),
		order("b1", 40.71, -74.00),
		order("b2", 40.72, -74.01),
		order("lone", 51.50, -0.12),
	}
	drivers := []model.Driver{
		driver("dsf", 37.76, -122.43),
		driver("dny", 40.70, -74.02),
		driver("dldn", 51.51, -0.13),
	}
	svc := NewService(nil, Config{MaxDistanceKm: 50}, logger.NopLogger{})
	regions, err := svc.BuildRegions(context.Background(), orders, drivers)
	require.NoError(t, err)
	require.Len(t, regions, 3)

	seen := map[string]int{}
	for _, r := range regions {
		require.NotEmpty(t, r.Orders)
		require.NotEmpty(t, r.Drivers)
		for _, o := range r.Orders {
			seen[o.ID]++
		}
	}
	for id, n := range seen {
		require.Equalf(t, 1, n, "order %s appears in %d regions", id, n)
	}
	require.Len(t, seen, len(orders))
}

func TestBuildRegionsDiscardsDriverlessRegions(t *testing.T) {
	orders := []model.Order{order("o1", 37.77, -122.42)}
	drivers := []model.Driver{driver("dfar", 51.50, -0.12)}
	svc := NewService(nil, Config{MaxDistanceKm: 50}, logger.NopLogger{})
	regions, err := svc.BuildRegions(context.Background(), orders, drivers)
	require.NoError(t, err)
	require.Empty(t, regions)
}

func TestBuildRegionsIndexedPath(t *testing.T) {
	idx := &fakeIndex{available: true, ids: []int{0, 0, Noise}}
	orders := []model.Order{
		order("o1", 37.77, -122.42),
		order("o2", 37.78, -122.41),
		order("o3", 37.90, -122.30),
	}
	drivers := []model.Driver{driver("d1", 37.80, -122.40)}
	svc := NewService(idx, Config{MaxDistanceKm: 50}, logger.NopLogger{})
	regions, err := svc.BuildRegions(context.Background(), orders, drivers)
	require.NoError(t, err)
	require.Equal(t, 1, idx.calls)
	// Noise order o3 becomes its own singleton region.
	require.Len(t, regions, 2)
}

func TestBuildRegionsFallbackOnIndexError(t *testing.T) {
	idx := &fakeIndex{available: true, err: errors.New("index offline")}
	orders := []model.Order{
		order("o1", 37.77, -122.42),
		order("o2", 37.78, -122.41),
	}
	drivers := []model.Driver{driver("d1", 37.80, -122.40)}
	svc := NewService(idx, Config{MaxDistanceKm: 50}, logger.NopLogger{})
	regions, err := svc.BuildRegions(context.Background(), orders, drivers)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	require.Len(t, regions[0].Orders, 2)
}

func TestGreedyClustersMatchesRadius(t *testing.T) {
	points := []model.LatLng{
		{Lat: 37.77, Lng: -122.42},
		{Lat: 37.78, Lng: -122.41},
		{Lat: 40.71, Lng: -74.00},
	}
	ids := greedyClusters(points, 50)
	require.Equal(t, ids[0], ids[1])
	require.NotEqual(t, ids[0], ids[2])
}

func TestFilterNearbyDrivers(t *testing.T) {
	o := order("o1", 37.7749, -122.4194)
	drivers := []model.Driver{
		driver("near", 37.7849, -122.4194),
		driver("far", 38.7749, -122.4194),
	}
	got := FilterNearbyDrivers(o, drivers, 50)
	require.Len(t, got, 1)
	require.Equal(t, "near", got[0].ID)
}
