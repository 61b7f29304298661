// Package memory provides in-memory store implementations. They back unit
// tests and single-process deployments without external storage.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

// AssignmentStore is a mutex-guarded in-memory assignment store. The status
// check and write in TransitionStatus happen under one lock, giving the
// atomic conditional update the lifecycle manager requires.
type AssignmentStore struct {
	mu   sync.Mutex
	data map[string]model.Assignment
}

// NewAssignmentStore creates an empty AssignmentStore.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{data: make(map[string]model.Assignment)}
}

func (s *AssignmentStore) Create(_ context.Context, a model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[a.ID]; ok {
		return faults.Validation("assignment", "duplicate id %s", a.ID)
	}
	s.data[a.ID] = a
	return nil
}

func (s *AssignmentStore) Get(_ context.Context, id string) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id]
	if !ok {
		return model.Assignment{}, faults.NotFound("assignment", id)
	}
	return a, nil
}

func (s *AssignmentStore) TransitionStatus(_ context.Context, id string, from, to model.AssignmentStatus, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id]
	if !ok {
		return false, faults.NotFound("assignment", id)
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	if to == model.AssignmentRejected {
		a.RejectReason = reason
	}
	s.data[id] = a
	return true, nil
}

func (s *AssignmentStore) SetMissingWindow(_ context.Context, id string, missing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id]
	if !ok {
		return faults.NotFound("assignment", id)
	}
	a.MissingWindow = missing
	s.data[id] = a
	return nil
}

func (s *AssignmentStore) ListOfferedByDriver(_ context.Context, driverID string) ([]model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Assignment
	for _, a := range s.data {
		if a.DriverID == driverID && a.Status == model.AssignmentOffered {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OfferedAt.Before(res[j].OfferedAt) })
	return res, nil
}

func (s *AssignmentStore) ListExpiredOffers(_ context.Context, asOf time.Time) ([]model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Assignment
	for _, a := range s.data {
		if a.Status == model.AssignmentOffered && !a.ExpiresAt.After(asOf) {
			res = append(res, a)
		}
	}
	return res, nil
}

func (s *AssignmentStore) CountActive(_ context.Context, driverID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.data {
		if a.DriverID == driverID && a.Active() {
			n++
		}
	}
	return n, nil
}
