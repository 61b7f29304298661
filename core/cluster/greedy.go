package cluster

import (
	"github.com/courierflow/dispatch/core/geo"
	"github.com/courierflow/dispatch/core/model"
)

// greedyClusters is the in-process fallback: single-linkage grouping that
// repeatedly seeds a cluster from the first unassigned point and absorbs
// every remaining unassigned point within maxDistanceKm of the seed. O(n^2),
// acceptable for the batch sizes a single dispatch cycle sees.
func greedyClusters(points []model.LatLng, maxDistanceKm float64) []int {
	ids := make([]int, len(points))
	for i := range ids {
		ids[i] = Noise
	}
	next := 0
	for i := range points {
		if ids[i] != Noise {
			continue
		}
		ids[i] = next
		for j := i + 1; j < len(points); j++ {
			if ids[j] != Noise {
				continue
			}
			if geo.HaversineKm(points[i], points[j]) <= maxDistanceKm {
				ids[j] = next
			}
		}
		next++
	}
	return ids
}
