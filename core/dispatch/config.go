package dispatch

import "github.com/courierflow/dispatch/core/cluster"

// Config defines dispatch loop parameters.
type Config struct {
	BatchIntervalSeconds int            `json:"batch_interval_seconds"`
	OfferTTLSeconds      int            `json:"offer_ttl_seconds"`
	MaxConcurrentRegions int            `json:"max_concurrent_regions"`
	Cluster              cluster.Config `json:"cluster"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BatchIntervalSeconds <= 0 {
		c.BatchIntervalSeconds = 30
	}
	if c.OfferTTLSeconds <= 0 {
		c.OfferTTLSeconds = 120
	}
	if c.MaxConcurrentRegions <= 0 {
		c.MaxConcurrentRegions = 4
	}
	c.Cluster.SetDefaults()
}
