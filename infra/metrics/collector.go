package metrics

import (
	"context"
	"time"

	"github.com/courierflow/dispatch/core/events"
	coremetrics "github.com/courierflow/dispatch/core/metrics"
	"github.com/courierflow/dispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// offer resolutions and time window commitments. It stops when the context is
// canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.OfferResolvedEvent:
					_ = sink.RecordOfferResults([]coremetrics.OfferResult{{
						AssignmentID: e.AssignmentID,
						OrderID:      e.OrderID,
						DriverID:     e.DriverID,
						Outcome:      e.Outcome,
						Latency:      e.Latency,
						Time:         time.Now(),
					}})
				case events.WindowEvent:
					if r, ok := sink.(coremetrics.WindowRecorder); ok {
						_ = r.RecordWindow(coremetrics.WindowRecord{
							OrderID:      e.OrderID,
							Method:       e.Method,
							WidthSeconds: e.WidthSeconds,
							Fallback:     e.Fallback,
							Time:         time.Now(),
						})
					}
				}
			}
		}
	}()
}
