package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/courierflow/dispatch/core/metrics"
	"github.com/courierflow/dispatch/infra/logger"
)

// InfluxSink writes dispatch events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordOfferResults writes the resolved offers as line protocol events.
func (s *InfluxSink) RecordOfferResults(res []coremetrics.OfferResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range res {
		p := write.NewPointWithMeasurement("offer_resolved").
			AddTag("driver_id", r.DriverID).
			AddTag("outcome", r.Outcome).
			AddTag("region", r.Region).
			AddTag("assignment_id", r.AssignmentID).
			AddTag("component", "dispatch_manager").
			AddField("order_id", r.OrderID).
			AddField("distance_km", round3(r.DistanceKm)).
			AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle persists a dispatch cycle summary.
func (s *InfluxSink) RecordCycle(rec coremetrics.CycleRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_cycle").
		AddTag("component", "dispatch_manager").
		AddTag("cycle", strconv.FormatUint(rec.Cycle, 10)).
		AddField("orders", rec.Orders).
		AddField("drivers", rec.Drivers).
		AddField("regions", rec.Regions).
		AddField("offers", rec.Offers).
		AddField("accepted", rec.Accepted).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordWindow writes a committed time window.
func (s *InfluxSink) RecordWindow(rec coremetrics.WindowRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("time_window_committed").
		AddTag("method", rec.Method).
		AddTag("fallback", strconv.FormatBool(rec.Fallback)).
		AddTag("component", "timewindow").
		AddField("order_id", rec.OrderID).
		AddField("width_seconds", round3(rec.WidthSeconds)).
		AddField("sample_count", rec.SampleCount).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSnapshotSize records the cycle snapshot dimensions.
func (s *InfluxSink) RecordSnapshotSize(orders, drivers int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_snapshot").
		AddTag("component", "dispatch_manager").
		AddField("orders", orders).
		AddField("drivers", drivers).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
