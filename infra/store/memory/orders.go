package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

// OrderStore is an in-memory order repository.
type OrderStore struct {
	mu   sync.RWMutex
	data map[string]model.Order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{data: make(map[string]model.Order)}
}

// Put creates or replaces an order.
func (s *OrderStore) Put(_ context.Context, o model.Order) error {
	s.mu.Lock()
	s.data[o.ID] = o
	s.mu.Unlock()
	return nil
}

func (s *OrderStore) GetOrder(_ context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[id]
	if !ok {
		return model.Order{}, faults.NotFound("order", id)
	}
	return o, nil
}

func (s *OrderStore) ListMatchable(_ context.Context) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Order
	for _, o := range s.data {
		if o.Matchable() {
			res = append(res, o)
		}
	}
	// Highest priority first, oldest first within a priority.
	sort.Slice(res, func(i, j int) bool {
		if res[i].Priority != res[j].Priority {
			return res[i].Priority > res[j].Priority
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (s *OrderStore) SetOrderStatus(_ context.Context, id string, status model.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data[id]
	if !ok {
		return faults.NotFound("order", id)
	}
	o.Status = status
	s.data[id] = o
	return nil
}
