package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/courierflow/dispatch/core/metrics"
	"github.com/courierflow/dispatch/core/model"
)

const degPerKm = 1.0 / 111.0

type pendingOffer struct {
	messageID string
	orderID   string
	received  time.Time
}

// SimulatedDriver connects to MQTT, answers dispatch offers and publishes
// location pings while moving on a random walk around its start position.
type SimulatedDriver struct {
	ID            string
	Broker        string
	ResponseTopic string
	Strategy      ResponseStrategy
	Interval      time.Duration
	SpeedKmh      float64
	Position      model.LatLng
	Metrics       coremetrics.MetricsSink

	client  paho.Client
	offerCh chan pendingOffer
	mu      sync.Mutex
}

// NewSimulatedDriver creates a driver with default buffers.
func NewSimulatedDriver(id, broker string, strat ResponseStrategy) *SimulatedDriver {
	return &SimulatedDriver{
		ID:       id,
		Broker:   broker,
		Strategy: strat,
		offerCh:  make(chan pendingOffer, 50),
	}
}

// Run connects to the broker and handles offers until ctx is done.
func (d *SimulatedDriver) Run(ctx context.Context) error {
	if d.offerCh == nil {
		d.offerCh = make(chan pendingOffer, 50)
	}
	cli, err := newMQTTClient(d.Broker, "sim-"+d.ID)
	if err != nil {
		return err
	}
	d.client = cli
	for i := 0; i < 5; i++ {
		go d.worker(ctx)
	}
	if token := cli.Subscribe(offerTopic(d.ID), 0, d.onOffer); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}
	if d.Interval > 0 {
		go d.publishLocations(ctx)
	}
	<-ctx.Done()
	close(d.offerCh)
	cli.Disconnect(250)
	return nil
}

func (d *SimulatedDriver) onOffer(_ paho.Client, msg paho.Message) {
	var m struct {
		MessageID string `json:"message_id"`
		OrderID   string `json:"order_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("%s: decode offer: %v", d.ID, err)
		return
	}
	select {
	case d.offerCh <- pendingOffer{messageID: m.MessageID, orderID: m.OrderID, received: time.Now()}:
	default:
		log.Printf("%s: offer queue full, dropping %s", d.ID, m.MessageID)
	}
}

func (d *SimulatedDriver) worker(ctx context.Context) {
	for {
		select {
		case offer, ok := <-d.offerCh:
			if !ok {
				return
			}
			d.Strategy.Respond(ctx, d.client, d.ResponseTopic, d.ID, offer.messageID)
			if d.Metrics != nil {
				err := d.Metrics.RecordOfferResults([]coremetrics.OfferResult{{
					AssignmentID: offer.messageID,
					OrderID:      offer.orderID,
					DriverID:     d.ID,
					Outcome:      "answered",
					Latency:      time.Since(offer.received),
					Time:         time.Now(),
				}})
				if err != nil {
					log.Printf("%s: record offer: %v", d.ID, err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *SimulatedDriver) publishLocations(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.step()
			if err := d.publishPosition(); err != nil {
				log.Printf("%s: publish location: %v", d.ID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// step moves the driver along a random heading at the configured speed.
func (d *SimulatedDriver) step() {
	if d.SpeedKmh <= 0 {
		return
	}
	distKm := d.SpeedKmh * d.Interval.Hours()
	heading := rng.Float64() * 2 * math.Pi
	d.mu.Lock()
	d.Position.Lat += distKm * degPerKm * math.Sin(heading)
	d.Position.Lng += distKm * degPerKm * math.Cos(heading)
	d.mu.Unlock()
}

func (d *SimulatedDriver) publishPosition() error {
	d.mu.Lock()
	pos := d.Position
	d.mu.Unlock()
	payload, err := json.Marshal(struct {
		DriverID  string       `json:"driver_id"`
		Location  model.LatLng `json:"location"`
		Timestamp int64        `json:"timestamp"`
	}{DriverID: d.ID, Location: pos, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	token := d.client.Publish(locationTopic(d.ID), 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("location publish timeout")
	}
	return token.Error()
}
