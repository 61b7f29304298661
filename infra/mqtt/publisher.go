package mqtt

import (
	"sync"
	"time"

	"github.com/google/uuid"

	coremqtt "github.com/courierflow/dispatch/core/mqtt"
)

// MockPublisher records sent offers and returns scripted responses. It is
// intended for tests and local simulation runs.
type MockPublisher struct {
	mu        sync.Mutex
	Offers    map[string]coremqtt.Offer
	Responses map[string]coremqtt.Response
	msgDriver map[string]string
	SendErr   error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Offers:    make(map[string]coremqtt.Offer),
		Responses: make(map[string]coremqtt.Response),
		msgDriver: make(map[string]string),
	}
}

// Respond scripts the response returned for every offer sent to the driver.
func (m *MockPublisher) Respond(driverID string, resp coremqtt.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[driverID] = resp
}

func (m *MockPublisher) SendOffer(driverID string, offer coremqtt.Offer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	id := uuid.NewString()
	m.Offers[driverID] = offer
	m.msgDriver[id] = driverID
	return id, nil
}

func (m *MockPublisher) WaitForResponse(messageID string, timeout time.Duration) (coremqtt.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	driverID, ok := m.msgDriver[messageID]
	if !ok {
		return coremqtt.Response{}, coremqtt.ErrResponseTimeout
	}
	resp, ok := m.Responses[driverID]
	if !ok {
		return coremqtt.Response{}, coremqtt.ErrResponseTimeout
	}
	return resp, nil
}

func (m *MockPublisher) Disconnect() {}
