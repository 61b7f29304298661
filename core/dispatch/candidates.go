package dispatch

import (
	"sort"

	"github.com/courierflow/dispatch/core/geo"
	"github.com/courierflow/dispatch/core/model"
)

// candidate is a driver considered for one order, scored by straight-line
// distance to the pickup.
type candidate struct {
	driver     model.Driver
	distanceKm float64
}

// rankCandidates orders the region's drivers by distance to the order's
// pickup, nearest first. Ties break on driver id so a cycle is deterministic
// for a fixed snapshot.
func rankCandidates(order model.Order, drivers []model.Driver) []candidate {
	cands := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		if !d.CanReceiveOffers() {
			continue
		}
		cands = append(cands, candidate{
			driver:     d,
			distanceKm: geo.HaversineKm(d.Location, order.Pickup),
		})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distanceKm != cands[j].distanceKm {
			return cands[i].distanceKm < cands[j].distanceKm
		}
		return cands[i].driver.ID < cands[j].driver.ID
	})
	return cands
}
