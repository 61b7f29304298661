// Package cluster groups pending orders and available drivers into
// geographic regions so the dispatch loop only matches within a bounded
// search space.
package cluster

import (
	"context"
	"fmt"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/geo"
	"github.com/courierflow/dispatch/core/logger"
	"github.com/courierflow/dispatch/core/model"
)

// Noise is the sentinel cluster id for points that join no cluster.
const Noise = -1

// SpatialIndex is the optional collaborator providing an index-backed density
// clustering query. When unavailable the service falls back to the in-process
// greedy algorithm.
type SpatialIndex interface {
	// Available reports whether the index can serve clustering queries.
	Available(ctx context.Context) bool
	// ClusterPoints assigns a cluster id to every point given a neighborhood
	// radius in meters and a minimum point count. Points outside any cluster
	// receive Noise.
	ClusterPoints(ctx context.Context, points []model.LatLng, epsMeters float64, minPoints int) ([]int, error)
}

// Config defines clustering parameters.
type Config struct {
	MaxDistanceKm float64 `json:"max_distance_km"`
	MinPoints     int     `json:"min_points"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MaxDistanceKm <= 0 {
		c.MaxDistanceKm = 50
	}
	if c.MinPoints <= 0 {
		c.MinPoints = 2
	}
}

// Service builds dispatch regions. The spatial index is optional; a nil index
// always uses the greedy fallback.
type Service struct {
	index SpatialIndex
	cfg   Config
	log   logger.Logger
}

// NewService creates a clustering service.
func NewService(index SpatialIndex, cfg Config, log logger.Logger) *Service {
	cfg.SetDefaults()
	return &Service{index: index, cfg: cfg, log: log}
}

// BuildRegions partitions the matchable orders into clusters by pickup
// location, attaches every driver within MaxDistanceKm of each cluster
// centroid, and drops regions without drivers. Each input order lands in
// exactly one region or none.
func (s *Service) BuildRegions(ctx context.Context, orders []model.Order, drivers []model.Driver) ([]model.Region, error) {
	if len(orders) == 0 || len(drivers) == 0 {
		return nil, nil
	}

	points := make([]model.LatLng, len(orders))
	for i, o := range orders {
		points[i] = o.Pickup
	}

	ids, err := s.clusterIDs(ctx, points)
	if err != nil {
		return nil, err
	}

	// Noise orders become singleton clusters instead of being dropped.
	next := 0
	for _, id := range ids {
		if id >= next {
			next = id + 1
		}
	}
	for i, id := range ids {
		if id == Noise {
			ids[i] = next
			next++
		}
	}

	groups := make(map[int][]int)
	for i, id := range ids {
		groups[id] = append(groups[id], i)
	}

	var regions []model.Region
	for id, members := range groups {
		pts := make([]model.LatLng, len(members))
		ords := make([]model.Order, len(members))
		for i, m := range members {
			pts[i] = orders[m].Pickup
			ords[i] = orders[m]
		}
		region := model.Region{
			Name:     fmt.Sprintf("region-%d", id),
			Centroid: geo.Centroid(pts),
			RadiusKm: s.cfg.MaxDistanceKm,
			Orders:   ords,
		}
		for _, d := range drivers {
			if geo.HaversineKm(region.Centroid, d.Location) <= s.cfg.MaxDistanceKm {
				region.Drivers = append(region.Drivers, d)
			}
		}
		if len(region.Drivers) == 0 {
			s.log.Warnf("discarding region %s: %d orders, no drivers in range", region.Name, len(region.Orders))
			continue
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// clusterIDs runs the indexed query when the capability is present and falls
// back to the greedy algorithm otherwise. The fallback is also taken when the
// indexed query fails, and the degradation is logged.
func (s *Service) clusterIDs(ctx context.Context, points []model.LatLng) ([]int, error) {
	if s.index != nil && s.index.Available(ctx) {
		eps := s.cfg.MaxDistanceKm * 1000
		ids, err := s.index.ClusterPoints(ctx, points, eps, s.cfg.MinPoints)
		if err == nil {
			return ids, nil
		}
		s.log.Warnf("indexed clustering failed, falling back to greedy: %v", faults.External("spatial-index", err))
	}
	return greedyClusters(points, s.cfg.MaxDistanceKm), nil
}

// FilterNearbyDrivers returns the drivers within maxDistanceKm haversine
// distance of the order's pickup. Used when clustering is skipped for a
// single ad hoc order.
func FilterNearbyDrivers(order model.Order, drivers []model.Driver, maxDistanceKm float64) []model.Driver {
	var near []model.Driver
	for _, d := range drivers {
		if geo.HaversineKm(order.Pickup, d.Location) <= maxDistanceKm {
			near = append(near, d)
		}
	}
	return near
}
