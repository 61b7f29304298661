package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

// DriverStore is an in-memory driver repository. Location writes take their
// own lock and never touch assignment state.
type DriverStore struct {
	mu   sync.RWMutex
	data map[string]model.Driver
}

// NewDriverStore creates an empty DriverStore.
func NewDriverStore() *DriverStore {
	return &DriverStore{data: make(map[string]model.Driver)}
}

// Put creates or replaces a driver.
func (s *DriverStore) Put(_ context.Context, d model.Driver) error {
	s.mu.Lock()
	s.data[d.ID] = d
	s.mu.Unlock()
	return nil
}

func (s *DriverStore) GetDriver(_ context.Context, id string) (model.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[id]
	if !ok {
		return model.Driver{}, faults.NotFound("driver", id)
	}
	return d, nil
}

func (s *DriverStore) ListAvailable(_ context.Context) ([]model.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Driver
	for _, d := range s.data {
		if d.Status == model.DriverAvailable {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *DriverStore) UpdateLocation(_ context.Context, id string, loc model.LatLng, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[id]
	if !ok {
		return faults.NotFound("driver", id)
	}
	d.Location = loc
	d.LocatedAt = at
	s.data[id] = d
	return nil
}

// SetStatus updates the driver's status.
func (s *DriverStore) SetStatus(_ context.Context, id string, status model.DriverStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[id]
	if !ok {
		return faults.NotFound("driver", id)
	}
	d.Status = status
	s.data[id] = d
	return nil
}
