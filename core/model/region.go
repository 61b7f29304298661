package model

// Region is an ephemeral geographic cluster of orders with the drivers close
// enough to serve them. Regions are rebuilt on every dispatch cycle and carry
// no identity across cycles.
type Region struct {
	Name     string
	Centroid LatLng
	RadiusKm float64
	Orders   []Order
	Drivers  []Driver
}
