package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/infra/logger"
)

type stubMatrix struct {
	resp  *maps.DistanceMatrixResponse
	err   error
	calls int
}

func (s *stubMatrix) DistanceMatrix(_ context.Context, _ *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error) {
	s.calls++
	return s.resp, s.err
}

func matrixResponse(meters int, status string) *maps.DistanceMatrixResponse {
	return &maps.DistanceMatrixResponse{
		Rows: []maps.DistanceMatrixElementsRow{{
			Elements: []*maps.DistanceMatrixElement{{
				Status:   status,
				Distance: maps.Distance{Meters: meters},
			}},
		}},
	}
}

var (
	origin = model.LatLng{Lat: 48.8566, Lng: 2.3522}
	dest   = model.LatLng{Lat: 48.8606, Lng: 2.3376}
)

func TestMapsProvider_GetDistance(t *testing.T) {
	stub := &stubMatrix{resp: matrixResponse(4200, "OK")}
	p := &MapsProvider{client: stub, log: logger.NopLogger{}}

	meters, err := p.GetDistance(context.Background(), origin, dest)
	require.NoError(t, err)
	assert.Equal(t, 4200.0, meters)
}

func TestMapsProvider_ElementNotOK(t *testing.T) {
	stub := &stubMatrix{resp: matrixResponse(0, "ZERO_RESULTS")}
	p := &MapsProvider{client: stub, log: logger.NopLogger{}}

	_, err := p.GetDistance(context.Background(), origin, dest)
	var ext *faults.ExternalError
	require.ErrorAs(t, err, &ext)
}

func TestMapsProvider_APIError(t *testing.T) {
	stub := &stubMatrix{err: errors.New("quota exceeded")}
	p := &MapsProvider{client: stub, log: logger.NopLogger{}}

	_, err := p.GetDistance(context.Background(), origin, dest)
	var ext *faults.ExternalError
	require.ErrorAs(t, err, &ext)
}

func newCacheClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedProvider_SecondLookupHitsCache(t *testing.T) {
	stub := &stubMatrix{resp: matrixResponse(3100, "OK")}
	inner := &MapsProvider{client: stub, log: logger.NopLogger{}}
	cached := NewCachedProvider(inner, newCacheClient(t), time.Hour)

	for i := 0; i < 2; i++ {
		meters, err := cached.GetDistance(context.Background(), origin, dest)
		require.NoError(t, err)
		assert.Equal(t, 3100.0, meters)
	}
	assert.Equal(t, 1, stub.calls)
}

func TestCachedProvider_NearbyPointsShareEntry(t *testing.T) {
	stub := &stubMatrix{resp: matrixResponse(3100, "OK")}
	inner := &MapsProvider{client: stub, log: logger.NopLogger{}}
	cached := NewCachedProvider(inner, newCacheClient(t), time.Hour)

	_, err := cached.GetDistance(context.Background(), origin, dest)
	require.NoError(t, err)

	// Within the 4 decimal rounding the key is identical.
	shifted := model.LatLng{Lat: origin.Lat + 0.00004, Lng: origin.Lng}
	_, err = cached.GetDistance(context.Background(), shifted, dest)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestCachedProvider_ErrorNotCached(t *testing.T) {
	stub := &stubMatrix{err: errors.New("down")}
	inner := &MapsProvider{client: stub, log: logger.NopLogger{}}
	cached := NewCachedProvider(inner, newCacheClient(t), time.Hour)

	_, err := cached.GetDistance(context.Background(), origin, dest)
	require.Error(t, err)

	stub.err = nil
	stub.resp = matrixResponse(900, "OK")
	meters, err := cached.GetDistance(context.Background(), origin, dest)
	require.NoError(t, err)
	assert.Equal(t, 900.0, meters)
}
