package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the driver simulator.
type Config struct {
	Broker          string
	Count           int
	FleetSize       int
	AcceptRate      float64
	ResponseLatency time.Duration
	DropRate        float64
	Interval        time.Duration
	SpeedKmh        float64
	CenterLat       float64
	CenterLng       float64
	RadiusKm        float64
	ResponseTopic   string
	PositionsFile   string
	Verbose         bool
	InfluxURL       string
	InfluxToken     string
	InfluxOrg       string
	InfluxBucket    string
}

// Validate checks the parameter ranges.
func (c *Config) Validate() error {
	if c.Count <= 0 && c.FleetSize <= 0 {
		return fmt.Errorf("count or fleet-size must be positive")
	}
	if c.AcceptRate < 0 || c.AcceptRate > 1 {
		return fmt.Errorf("accept-rate %f outside [0, 1]", c.AcceptRate)
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop-rate %f outside [0, 1]", c.DropRate)
	}
	if c.RadiusKm <= 0 {
		return fmt.Errorf("radius must be positive")
	}
	return nil
}
