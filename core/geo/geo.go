// Package geo contains pure geographic computation helpers shared by the
// clustering and observation packages.
package geo

import (
	"math"

	"github.com/courierflow/dispatch/core/model"
)

// EarthRadiusM is the mean Earth radius used for all great-circle math.
// No ellipsoidal correction is applied.
const EarthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in meters between two points.
func HaversineM(a, b model.LatLng) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	rLat1 := radians(a.Lat)
	rLat2 := radians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusM * c
}

// HaversineKm returns the great-circle distance in kilometres.
func HaversineKm(a, b model.LatLng) float64 {
	return HaversineM(a, b) / 1000
}

// KmToDegrees converts a radius in kilometres to decimal degrees using the
// flat 111 km/degree approximation. Accuracy degrades at high latitude or
// large radius: longitude degrees shrink toward the poles while this
// conversion does not account for latitude.
func KmToDegrees(km float64) float64 {
	return km / 111.0
}

// Centroid returns the arithmetic mean of the given points. This is a planar
// approximation, acceptable at the cluster radii used by region building.
// Returns the zero value for an empty input.
func Centroid(points []model.LatLng) model.LatLng {
	if len(points) == 0 {
		return model.LatLng{}
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return model.LatLng{Lat: lat / n, Lng: lng / n}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
