// Package config loads the service configuration from a JSON or YAML file
// with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/courierflow/dispatch/core/dispatch"
	"github.com/courierflow/dispatch/core/metrics"
	"github.com/courierflow/dispatch/infra/mqtt"
	"github.com/courierflow/dispatch/infra/routing"
	"github.com/courierflow/dispatch/infra/spatial"
	"github.com/courierflow/dispatch/infra/store/postgres"
)

type Config struct {
	MQTT       mqtt.Config      `json:"mqtt"`
	Dispatch   dispatch.Config  `json:"dispatch"`
	TimeWindow TimeWindowConfig `json:"time_window"`
	Metrics    metrics.Config   `json:"metrics"`
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Redis      spatial.Config   `json:"redis"`
	Routing    routing.Config   `json:"routing"`
	API        APIConfig        `json:"api"`
	Sentry     SentryConfig     `json:"sentry"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend  string          `json:"backend"`
	Postgres postgres.Config `json:"postgres"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required")
		}
		return nil
	}
	return fmt.Errorf("unknown storage backend %s", c.Backend)
}

// TimeWindowConfig carries the default window calculation parameters.
type TimeWindowConfig struct {
	ConfidenceLevel float64 `json:"confidence_level"`
	PenaltyWidth    float64 `json:"penalty_width"`
	PenaltyEarly    float64 `json:"penalty_early"`
	PenaltyLate     float64 `json:"penalty_late"`
	// ObservationRadiusKm bounds segment matching around each endpoint.
	ObservationRadiusKm float64 `json:"observation_radius_km"`
	// ObservationMaxAgeDays excludes samples older than this.
	ObservationMaxAgeDays int `json:"observation_max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *TimeWindowConfig) SetDefaults() {
	if c.ConfidenceLevel == 0 {
		c.ConfidenceLevel = 0.95
	}
	if c.PenaltyWidth == 0 {
		c.PenaltyWidth = 1
	}
	if c.PenaltyEarly == 0 {
		c.PenaltyEarly = 1
	}
	if c.PenaltyLate == 0 {
		c.PenaltyLate = 1
	}
}

// Validate checks the parameter ranges.
func (c TimeWindowConfig) Validate() error {
	if c.ConfidenceLevel < 0.5 || c.ConfidenceLevel > 0.99 {
		return fmt.Errorf("time_window.confidence_level %f outside [0.5, 0.99]", c.ConfidenceLevel)
	}
	if c.PenaltyWidth <= 0 || c.PenaltyEarly <= 0 || c.PenaltyLate <= 0 {
		return fmt.Errorf("time_window penalties must be positive")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("DISPATCH_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dispatch_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Dispatch.SetDefaults()
	cfg.TimeWindow.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Storage.SetDefaults()
	if err := cfg.TimeWindow.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
