package driverstatus

import (
	"sort"
	"sync"
	"time"
)

// LastOffer mirrors the summary of the most recent offer made to a driver.
type LastOffer struct {
	AssignmentID string    `json:"assignment_id"`
	OrderID      string    `json:"order_id"`
	Outcome      string    `json:"outcome"`
	Timestamp    time.Time `json:"timestamp"`
}

// Status captures the current known state of a driver.
type Status struct {
	DriverID      string    `json:"driver_id"`
	City          string    `json:"city,omitempty"`
	CurrentStatus string    `json:"current_status"`
	ActiveOrders  int       `json:"active_orders"`
	LastSeen      time.Time `json:"last_seen,omitempty"`
	LastOffer     LastOffer `json:"last_offer"`
}

type Filter struct {
	City   string
	Status string
}

type Store interface {
	Set(Status)
	List(Filter) []Status
	RecordOffer(id string, off LastOffer)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.DriverID] = st
	s.mu.Unlock()
}

func (s *MemoryStore) RecordOffer(id string, off LastOffer) {
	s.mu.Lock()
	st := s.data[id]
	if st.DriverID == "" {
		st.DriverID = id
	}
	st.LastOffer = off
	if off.Outcome == "accepted" {
		st.ActiveOrders++
		st.CurrentStatus = "delivering"
	}
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.City != "" && st.City != f.City {
			continue
		}
		if f.Status != "" && st.CurrentStatus != f.Status {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DriverID < res[j].DriverID })
	return res
}
