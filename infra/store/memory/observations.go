package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/observation"
)

// ObservationStore is an append-only in-memory observation store.
type ObservationStore struct {
	mu   sync.RWMutex
	data []model.RouteSegmentObservation
}

// NewObservationStore creates an empty ObservationStore.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{}
}

func (s *ObservationStore) Append(_ context.Context, obs model.RouteSegmentObservation) error {
	s.mu.Lock()
	s.data = append(s.data, obs)
	s.mu.Unlock()
	return nil
}

func (s *ObservationStore) Find(_ context.Context, f observation.Filter) ([]model.RouteSegmentObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.RouteSegmentObservation
	for _, o := range s.data {
		if !f.From.Contains(o.From) || !f.To.Contains(o.To) {
			continue
		}
		if o.CreatedAt.Before(f.Since) {
			continue
		}
		if f.TimeOfDay != "" && o.TimeOfDay != f.TimeOfDay {
			continue
		}
		if f.DayOfWeek != "" && o.DayOfWeek != f.DayOfWeek {
			continue
		}
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
