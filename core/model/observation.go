package model

import "time"

// Time-of-day buckets used when recording travel time observations.
const (
	BucketMorning   = "morning"   // [06:00, 12:00)
	BucketAfternoon = "afternoon" // [12:00, 18:00)
	BucketEvening   = "evening"   // [18:00, 22:00)
	BucketNight     = "night"
)

// TimeOfDayBucket returns the bucket name for the given timestamp.
func TimeOfDayBucket(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return BucketMorning
	case h >= 12 && h < 18:
		return BucketAfternoon
	case h >= 18 && h < 22:
		return BucketEvening
	default:
		return BucketNight
	}
}

// RouteSegmentObservation is an append-only record of one realized trip
// between an approximate from/to location pair.
type RouteSegmentObservation struct {
	ID               string
	From             LatLng
	To               LatLng
	EstimatedSeconds float64
	ActualSeconds    float64
	// DeviationSeconds is actual minus estimated, fixed at write time.
	DeviationSeconds float64
	TimeOfDay        string
	DayOfWeek        string
	CreatedAt        time.Time
}

// NewRouteSegmentObservation derives the bucketed fields and the deviation
// from the raw trip data. capturedAt is the trip completion time.
func NewRouteSegmentObservation(id string, from, to LatLng, estimated, actual float64, capturedAt time.Time) RouteSegmentObservation {
	return RouteSegmentObservation{
		ID:               id,
		From:             from,
		To:               to,
		EstimatedSeconds: estimated,
		ActualSeconds:    actual,
		DeviationSeconds: actual - estimated,
		TimeOfDay:        TimeOfDayBucket(capturedAt),
		DayOfWeek:        capturedAt.Weekday().String(),
		CreatedAt:        capturedAt,
	}
}
