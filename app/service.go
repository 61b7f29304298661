// Package app wires the configuration into a running dispatch service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	apidispatch "github.com/courierflow/dispatch/api/dispatch"
	apidrivers "github.com/courierflow/dispatch/api/drivers"
	"github.com/courierflow/dispatch/config"
	"github.com/courierflow/dispatch/core/assignment"
	"github.com/courierflow/dispatch/core/cluster"
	"github.com/courierflow/dispatch/core/dispatch"
	"github.com/courierflow/dispatch/core/dispatch/logging"
	"github.com/courierflow/dispatch/core/driverstatus"
	coremetrics "github.com/courierflow/dispatch/core/metrics"
	"github.com/courierflow/dispatch/core/model"
	coremon "github.com/courierflow/dispatch/core/monitoring"
	"github.com/courierflow/dispatch/core/observation"
	"github.com/courierflow/dispatch/core/timewindow"
	"github.com/courierflow/dispatch/infra/logger"
	inframetrics "github.com/courierflow/dispatch/infra/metrics"
	"github.com/courierflow/dispatch/infra/monitoring"
	"github.com/courierflow/dispatch/infra/mqtt"
	"github.com/courierflow/dispatch/infra/routing"
	"github.com/courierflow/dispatch/infra/spatial"
	"github.com/courierflow/dispatch/infra/store/memory"
	"github.com/courierflow/dispatch/infra/store/postgres"
	"github.com/courierflow/dispatch/internal/eventbus"
)

// Service composes the dispatch loop, offer lifecycle and window generation
// from the configuration.
type Service struct {
	Manager *dispatch.Manager
	Offers  *assignment.Manager
	Windows *timewindow.Orchestrator

	cfg     *config.Config
	client  *mqtt.PahoClient
	drivers dispatch.DriverSource
	bus     eventbus.EventBus
	sink    coremetrics.MetricsSink
	pool    *pgxpool.Pool
	audit   logging.LogStore
	status  driverstatus.Store
	log     logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	var (
		pool        *pgxpool.Pool
		orderSrc    dispatch.OrderSource
		driverSrc   dispatch.DriverSource
		assignStore assignment.Store
		obsStore    observation.Store
		winStore    timewindow.Store
	)
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err = postgres.Connect(context.Background(), cfg.Storage.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		orderSrc = postgres.NewOrderRepository(pool)
		driverSrc = postgres.NewDriverRepository(pool)
		assignStore = postgres.NewAssignmentRepository(pool)
		obsStore = postgres.NewObservationRepository(pool)
		winStore = postgres.NewWindowRepository(pool)
	default:
		orderSrc = memory.NewOrderStore()
		driverSrc = memory.NewDriverStore()
		assignStore = memory.NewAssignmentStore()
		obsStore = memory.NewObservationStore()
		winStore = memory.NewWindowStore()
	}

	bus := eventbus.New()
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var routes timewindow.RouteProvider
	if cfg.Routing.APIKey != "" {
		provider, err := routing.NewMapsProvider(cfg.Routing)
		if err != nil {
			return nil, fmt.Errorf("routing: %w", err)
		}
		routes = provider
		if redisClient != nil {
			ttl := time.Duration(cfg.Routing.CacheTTLMins) * time.Minute
			routes = routing.NewCachedProvider(provider, redisClient, ttl)
		}
	}

	obsQuery := observation.NewQuery(obsStore, logger.New("observation"))
	calc := timewindow.NewCalculator(logger.New("timewindow"))
	orch, err := timewindow.NewOrchestrator(winStore, obsQuery, calc, routes, orderSrc, bus, logger.New("timewindow"))
	if err != nil {
		return nil, fmt.Errorf("window orchestrator: %w", err)
	}
	orch.SetQueryDefaults(timewindow.Params{
		ConfidenceLevel: cfg.TimeWindow.ConfidenceLevel,
		Penalties: timewindow.Penalties{
			Width: cfg.TimeWindow.PenaltyWidth,
			Early: cfg.TimeWindow.PenaltyEarly,
			Late:  cfg.TimeWindow.PenaltyLate,
		},
	}, cfg.TimeWindow.ObservationRadiusKm, time.Duration(cfg.TimeWindow.ObservationMaxAgeDays)*24*time.Hour)

	offers, err := assignment.NewManager(assignStore, orch, bus, logger.New("assignment"))
	if err != nil {
		return nil, fmt.Errorf("assignment manager: %w", err)
	}

	var index cluster.SpatialIndex
	if redisClient != nil {
		index = spatial.NewRedisIndexWithClient(redisClient)
	}
	regions := cluster.NewService(index, cfg.Dispatch.Cluster, logger.New("cluster"))

	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	manager, err := dispatch.NewManager(cfg.Dispatch, orderSrc, driverSrc, regions, offers, client, sink, bus, logg)
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}

	audit, err := newAuditStore(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	status := driverstatus.NewMemoryStore()
	manager.SetAuditStore(audit)
	manager.SetStatusStore(status)

	return &Service{
		Manager: manager,
		Offers:  offers,
		Windows: orch,
		cfg:     cfg,
		client:  client,
		drivers: driverSrc,
		bus:     bus,
		sink:    sink,
		pool:    pool,
		audit:   audit,
		status:  status,
		log:     logg,
	}, nil
}

func newAuditStore(cfg config.LoggingConfig) (logging.LogStore, error) {
	if cfg.Backend == "rotating" {
		return logging.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	}
	return logging.NewJSONLStore(cfg.Path)
}

// Run starts the dispatch loop, the offer expiry sweep, the metrics
// collector and the driver location subscription, then blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	inframetrics.StartEventCollector(ctx, s.bus, s.sink)

	err := s.client.SubscribeLocations(ctx, s.cfg.MQTT.LocationTopic, func(ctx context.Context, driverID string, loc model.LatLng, at time.Time) {
		if err := s.drivers.UpdateLocation(ctx, driverID, loc, at); err != nil {
			s.log.Warnf("location update for %s failed: %v", driverID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("location subscription: %w", err)
	}

	if s.cfg.API.Addr != "" {
		go s.serveAPI(ctx)
	}

	sweepInterval := time.Duration(s.cfg.Dispatch.OfferTTLSeconds) * time.Second / 2
	go s.Offers.RunExpirySweep(ctx, sweepInterval)
	go s.Manager.Run(ctx)

	<-ctx.Done()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.audit, s.cfg.API.Token))
	mux.Handle("/api/dispatch/performance", apidispatch.NewPerformanceHandler(s.Windows))
	mux.Handle("/api/drivers/status", apidrivers.NewStatusHandler(s.status))

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("api server: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	err := s.Manager.Close()
	s.client.Disconnect()
	if s.pool != nil {
		s.pool.Close()
	}
	coremon.Flush(2 * time.Second)
	return err
}
