package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	coremetrics "github.com/courierflow/dispatch/core/metrics"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/infra/metrics"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := RandomResponse{
		AcceptRate: cfg.AcceptRate,
		Delay:      cfg.ResponseLatency,
		DropRate:   cfg.DropRate,
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if cfg.InfluxURL != "" {
		sink = metrics.NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	}

	var positions map[string]model.LatLng
	if cfg.PositionsFile != "" {
		data, err := os.ReadFile(cfg.PositionsFile)
		if err != nil {
			log.Fatalf("positions file: %v", err)
		}
		positions, err = LoadStartPositions(data)
		if err != nil {
			log.Fatalf("positions file: %v", err)
		}
	}

	size := cfg.FleetSize
	if size <= 0 {
		size = cfg.Count
	}
	drivers := GenerateFleet(FleetConfig{
		Size:      size,
		Center:    model.LatLng{Lat: cfg.CenterLat, Lng: cfg.CenterLng},
		RadiusKm:  cfg.RadiusKm,
		Positions: positions,
	})
	runDrivers(ctx, drivers, cfg, strat, sink)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.IntVar(&cfg.Count, "count", 1, "number of drivers")
	flag.IntVar(&cfg.FleetSize, "fleet-size", 0, "auto generated fleet size")
	flag.Float64Var(&cfg.AcceptRate, "accept-rate", 0.8, "offer accept probability")
	flag.DurationVar(&cfg.ResponseLatency, "response-latency", 0, "offer response latency")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "offer silence probability")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "location ping interval")
	flag.Float64Var(&cfg.SpeedKmh, "speed", 20, "driver speed km/h")
	flag.Float64Var(&cfg.CenterLat, "center-lat", 48.8566, "fleet center latitude")
	flag.Float64Var(&cfg.CenterLng, "center-lng", 2.3522, "fleet center longitude")
	flag.Float64Var(&cfg.RadiusKm, "radius", 5, "fleet scatter radius km")
	flag.StringVar(&cfg.ResponseTopic, "response-topic", "dispatch/response", "offer response topic")
	flag.StringVar(&cfg.PositionsFile, "positions-file", "", "per-driver start positions JSON")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.StringVar(&cfg.InfluxURL, "influx-url", "", "InfluxDB URL")
	flag.StringVar(&cfg.InfluxToken, "influx-token", "", "InfluxDB token")
	flag.StringVar(&cfg.InfluxOrg, "influx-org", "", "InfluxDB organization")
	flag.StringVar(&cfg.InfluxBucket, "influx-bucket", "", "InfluxDB bucket")
	flag.Parse()
	return cfg
}

func runDrivers(ctx context.Context, drivers []SimulatedDriver, cfg Config, strat ResponseStrategy, sink coremetrics.MetricsSink) {
	var wg sync.WaitGroup
	for i := range drivers {
		d := &drivers[i]
		d.Broker = cfg.Broker
		d.ResponseTopic = cfg.ResponseTopic
		d.Strategy = strat
		d.Interval = cfg.Interval
		d.SpeedKmh = cfg.SpeedKmh
		d.Metrics = sink
		wg.Add(1)
		go func(d *SimulatedDriver) {
			defer wg.Done()
			if err := d.Run(ctx); err != nil {
				log.Printf("%s: %v", d.ID, err)
			}
		}(d)
	}
	wg.Wait()
}
