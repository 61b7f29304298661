package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/courierflow/dispatch/core/model"
)

// LocationPing is the payload drivers publish on driver/<id>/location.
type LocationPing struct {
	DriverID  string       `json:"driver_id"`
	Location  model.LatLng `json:"location"`
	Timestamp int64        `json:"timestamp"`
}

// LocationHandler receives decoded driver location updates.
type LocationHandler func(ctx context.Context, driverID string, loc model.LatLng, at time.Time)

// SubscribeLocations subscribes to the driver location topic and forwards
// decoded pings to the handler. The driver ID is taken from the payload and
// falls back to the topic segment when absent.
func (p *PahoClient) SubscribeLocations(ctx context.Context, topic string, handler LocationHandler) error {
	if topic == "" {
		topic = "driver/+/location"
	}
	qos := byte(0)
	if q, ok := p.qos["location"]; ok {
		qos = q
	}
	token := p.cli.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		var ping LocationPing
		if err := json.Unmarshal(msg.Payload(), &ping); err != nil {
			p.logger.Errorf("failed to decode location ping: %v", err)
			return
		}
		if ping.DriverID == "" {
			ping.DriverID = driverIDFromTopic(msg.Topic())
		}
		if ping.DriverID == "" {
			p.logger.Warnf("location ping without driver id on %s", msg.Topic())
			return
		}
		at := time.UnixMilli(ping.Timestamp)
		if ping.Timestamp == 0 {
			at = time.Now()
		}
		handler(ctx, ping.DriverID, ping.Location, at)
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func driverIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 && parts[0] == "driver" {
		return parts[1]
	}
	return ""
}
