package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierflow/dispatch/core/model"
)

func TestGenerateFleet_IDsAndScatter(t *testing.T) {
	center := model.LatLng{Lat: 48.8566, Lng: 2.3522}
	ds := GenerateFleet(FleetConfig{Size: 25, Center: center, RadiusKm: 5})
	require.Len(t, ds, 25)
	assert.Equal(t, "drv0001", ds[0].ID)
	assert.Equal(t, "drv0025", ds[24].ID)

	for i := range ds {
		d := &ds[i]
		dLat := (d.Position.Lat - center.Lat) / degPerKm
		dLng := (d.Position.Lng - center.Lng) / degPerKm
		dist := math.Hypot(dLat, dLng)
		assert.LessOrEqual(t, dist, 5.0+1e-9, "driver %s outside radius", d.ID)
	}
}

func TestGenerateFleet_PositionOverride(t *testing.T) {
	fixed := model.LatLng{Lat: 45.75, Lng: 4.85}
	ds := GenerateFleet(FleetConfig{
		Size:      2,
		Center:    model.LatLng{Lat: 48.8566, Lng: 2.3522},
		RadiusKm:  5,
		Positions: map[string]model.LatLng{"drv0002": fixed},
	})
	require.Len(t, ds, 2)
	assert.Equal(t, fixed, ds[1].Position)
}

func TestGenerateFleet_Empty(t *testing.T) {
	assert.Nil(t, GenerateFleet(FleetConfig{Size: 0}))
}

func TestLoadStartPositions(t *testing.T) {
	data := []byte(`{"drv0001": {"lat": 48.85, "lng": 2.35}}`)
	positions, err := LoadStartPositions(data)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 48.85, positions["drv0001"].Lat, 1e-9)

	_, err = LoadStartPositions([]byte("not json"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Count: 1, AcceptRate: 0.5, RadiusKm: 5}
	require.NoError(t, (&cfg).Validate())

	bad := Config{Count: 1, AcceptRate: 1.5, RadiusKm: 5}
	assert.Error(t, (&bad).Validate())

	bad = Config{AcceptRate: 0.5, RadiusKm: 5}
	assert.Error(t, (&bad).Validate())
}
