package mqtt

import (
	"time"

	"github.com/courierflow/dispatch/core/model"
)

// Offer is the payload published to a driver's offer topic.
type Offer struct {
	AssignmentID string       `json:"assignment_id"`
	OrderID      string       `json:"order_id"`
	Pickup       model.LatLng `json:"pickup"`
	Dropoff      model.LatLng `json:"dropoff"`
	Sequence     int          `json:"sequence"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Response is a driver's answer to an offer.
type Response struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Client represents an MQTT client capable of publishing order offers to
// drivers and waiting for their responses.
type Client interface {
	// SendOffer publishes the offer to the given driver and returns the
	// message identifier used to track the response.
	SendOffer(driverID string, offer Offer) (messageID string, err error)

	// WaitForResponse waits for the driver's response to the provided message
	// identifier or until the timeout expires.
	WaitForResponse(messageID string, timeout time.Duration) (Response, error)
}
