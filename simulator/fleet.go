package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/courierflow/dispatch/core/model"
)

var fleetRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// FleetConfig holds parameters for bulk fleet generation.
type FleetConfig struct {
	Size     int
	Center   model.LatLng
	RadiusKm float64
	// Positions overrides the generated start position per driver ID.
	Positions map[string]model.LatLng
}

// GenerateFleet creates Size drivers with IDs drv0001..drvNNNN scattered
// uniformly within RadiusKm of the center.
func GenerateFleet(cfg FleetConfig) []SimulatedDriver {
	if cfg.Size <= 0 {
		return nil
	}
	ds := make([]SimulatedDriver, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		id := fmt.Sprintf("drv%04d", i+1)
		pos, ok := cfg.Positions[id]
		if !ok {
			pos = scatter(cfg.Center, cfg.RadiusKm)
		}
		ds[i] = SimulatedDriver{
			ID:       id,
			Position: pos,
			offerCh:  make(chan pendingOffer, 50),
		}
	}
	return ds
}

// scatter picks a uniform random point within radiusKm of the center.
func scatter(center model.LatLng, radiusKm float64) model.LatLng {
	if radiusKm <= 0 {
		return center
	}
	r := radiusKm * math.Sqrt(fleetRng.Float64())
	theta := fleetRng.Float64() * 2 * math.Pi
	return model.LatLng{
		Lat: center.Lat + r*degPerKm*math.Sin(theta),
		Lng: center.Lng + r*degPerKm*math.Cos(theta),
	}
}

// LoadStartPositions reads per-driver start position overrides from JSON,
// keyed by driver ID.
func LoadStartPositions(data []byte) (map[string]model.LatLng, error) {
	var m map[string]model.LatLng
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
