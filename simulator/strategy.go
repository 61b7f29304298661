package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// ResponseStrategy defines how a driver answers incoming offers.
type ResponseStrategy interface {
	Respond(ctx context.Context, cli paho.Client, topic, driverID, messageID string)
}

// AutoAccept accepts every offer after an optional fixed delay.
type AutoAccept struct {
	Delay time.Duration
}

// Respond implements ResponseStrategy.
func (a AutoAccept) Respond(ctx context.Context, cli paho.Client, topic, driverID, messageID string) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return
		}
	}
	publishResponse(cli, topic, driverID, messageID, true, "")
}

// RandomResponse accepts with the configured probability, rejects otherwise,
// and stays silent with the configured drop probability to exercise the
// offer expiry path.
type RandomResponse struct {
	AcceptRate float64
	Delay      time.Duration
	DropRate   float64
}

// Respond implements ResponseStrategy.
func (r RandomResponse) Respond(ctx context.Context, cli paho.Client, topic, driverID, messageID string) {
	if r.DropRate > 0 && rng.Float64() < r.DropRate {
		return
	}
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return
		}
	}
	if rng.Float64() < r.AcceptRate {
		publishResponse(cli, topic, driverID, messageID, true, "")
		return
	}
	publishResponse(cli, topic, driverID, messageID, false, "busy")
}

func publishResponse(cli paho.Client, topic, driverID, messageID string, accepted bool, reason string) {
	payload, err := json.Marshal(struct {
		MessageID string `json:"message_id"`
		DriverID  string `json:"driver_id"`
		Accepted  bool   `json:"accepted"`
		Reason    string `json:"reason,omitempty"`
	}{MessageID: messageID, DriverID: driverID, Accepted: accepted, Reason: reason})
	if err != nil {
		log.Printf("marshal response: %v", err)
		return
	}
	token := cli.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("response publish timeout for %s", driverID)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("publish response error for %s: %v", driverID, err)
	}
}

func offerTopic(driverID string) string {
	return fmt.Sprintf("driver/%s/offer", driverID)
}

func locationTopic(driverID string) string {
	return fmt.Sprintf("driver/%s/location", driverID)
}
