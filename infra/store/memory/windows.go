package memory

import (
	"context"
	"sync"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

// WindowStore is an in-memory time window store keyed by order.
type WindowStore struct {
	mu   sync.RWMutex
	data map[string]model.TimeWindow
}

// NewWindowStore creates an empty WindowStore.
func NewWindowStore() *WindowStore {
	return &WindowStore{data: make(map[string]model.TimeWindow)}
}

func (s *WindowStore) Put(_ context.Context, w model.TimeWindow) error {
	s.mu.Lock()
	s.data[w.OrderID] = w
	s.mu.Unlock()
	return nil
}

func (s *WindowStore) GetByOrder(_ context.Context, orderID string) (model.TimeWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.data[orderID]
	if !ok {
		return model.TimeWindow{}, faults.NotFound("time window for order", orderID)
	}
	return w, nil
}

func (s *WindowStore) ListCompleted(_ context.Context) ([]model.TimeWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.TimeWindow
	for _, w := range s.data {
		if w.Completed {
			res = append(res, w)
		}
	}
	return res, nil
}
