package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/config"
	"github.com/vietddude/fleetwatch/internal/core/worker"
	"github.com/vietddude/fleetwatch/internal/infra/fleetapi"
	"github.com/vietddude/fleetwatch/internal/infra/mqtt"
	redisclient "github.com/vietddude/fleetwatch/internal/infra/redis"
	"github.com/vietddude/fleetwatch/internal/infra/storage"
	"github.com/vietddude/fleetwatch/internal/infra/storage/memory"
	"github.com/vietddude/fleetwatch/internal/infra/storage/postgres"
	"github.com/vietddude/fleetwatch/internal/polling/coordinator"
	"github.com/vietddude/fleetwatch/internal/polling/emitter"
	"github.com/vietddude/fleetwatch/internal/polling/health"
)

// ErrSetupFailed is returned by Run when the entry ends in setup_error.
var ErrSetupFailed = errors.New("setup failed, user action required")

// Service runs the entry lifecycle together with publishers and health endpoints.
type Service struct {
	cfg          *config.AppConfig
	entry        *Entry
	fanout       *emitter.Fanout
	repo         storage.SnapshotRepository
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer
	db           *postgres.DB
	log          *slog.Logger

	fatal chan error
}

// NewService wires storage, publishers and health checks around an entry.
func NewService(ctx context.Context, cfg *config.AppConfig, api fleetapi.Client) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		fanout: emitter.NewFanout(),
		log:    slog.Default(),
		fatal:  make(chan error, 1),
	}

	s.entry = NewEntry(api, EntryConfig{
		Throttle:      cfg.Refresh.Throttle(),
		VINs:          cfg.Fleet.VINs,
		EnergySiteIDs: cfg.Fleet.EnergySiteIDs,
	})

	// 1. Initialize Storage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		s.db = db
		s.repo = postgres.NewSnapshotRepo(db)
		s.log.Info("Using PostgreSQL storage")
	} else {
		s.repo = memory.NewMemoryStorage()
		s.log.Info("Using Memory storage")
	}
	s.pruner = worker.NewPruner(cfg.Database.RetentionPeriod, s.repo)

	// 2. Initialize Publishers
	s.fanout.Add("log", &emitter.LogEmitter{})
	s.fanout.Add("snapshot", emitter.NewChangeFilter(emitter.NewSnapshotEmitter(s.repo)))

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		s.fanout.Add("mqtt", mqtt.NewEmitter(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS))
		s.log.Info("MQTT publisher enabled", "broker", cfg.MQTT.Broker)
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		s.fanout.Add("redis", emitter.NewChangeFilter(redisclient.NewEmitter(client, cfg.Redis.TTL, cfg.Redis.Channel)))
		s.log.Info("Redis publisher enabled")
	}

	// 3. Initialize Health
	s.healthMon = health.NewMonitor(s.entry, 2*time.Second)
	s.healthServer = health.NewServer(s.healthMon, cfg.Server.Port)
	if cfg.Server.GRPCPort > 0 {
		s.grpcServer = health.NewGRPCServer(s.healthMon, cfg.Server.GRPCPort, 10*time.Second)
	}

	return s, nil
}

// Entry returns the managed entry.
func (s *Service) Entry() *Entry {
	return s.entry
}

// Repository returns the snapshot history store.
func (s *Service) Repository() storage.SnapshotRepository {
	return s.repo
}

// Run sets the entry up and polls until ctx is done. Setup is retried every
// setup_retry_interval while it fails transiently. Run returns ErrSetupFailed
// when setup or a later refresh needs user action.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.startAmbient(ctx)
	s.entry.SetListener(emitter.Listener(ctx, s.fanout))

	for {
		state, err := s.entry.Setup(ctx)
		switch state {
		case StateLoaded:
			return s.runLoaded(ctx)

		case StateSetupRetry:
			s.log.Info("Retrying setup", "in", s.cfg.Refresh.SetupRetryInterval)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.Refresh.SetupRetryInterval):
			}

		case StateSetupError:
			return fmt.Errorf("%w: %w", ErrSetupFailed, err)

		default:
			return nil
		}
	}
}

func (s *Service) startAmbient(ctx context.Context) {
	// Start Health Server
	go func() {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.healthServer.Stop(shutdownCtx); err != nil {
			s.log.Warn("Failed to stop health server", "error", err)
		}
	}()

	if s.grpcServer != nil {
		go func() {
			if err := s.grpcServer.Start(ctx); err != nil {
				s.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start DB Metrics Collector
	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	go s.pruner.Start(ctx)
}

func (s *Service) runLoaded(ctx context.Context) error {
	handles := s.entry.Data().Handles()

	var wg sync.WaitGroup
	for _, h := range handles {
		h.OnFatal(func(err error) {
			select {
			case s.fatal <- fmt.Errorf("%s %s: %w", h.Resource(), h.ID(), err):
			default:
			}
		})

		wg.Add(1)
		go func(h coordinator.Handle) {
			defer wg.Done()
			s.log.Info("Starting coordinator", "resource", h.Resource(), "id", h.ID())
			if err := h.Start(ctx); err != nil {
				s.log.Error("Coordinator failed", "resource", h.Resource(), "id", h.ID(), "error", err)
			}
		}(h)
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.entry.Unload()
	case err := <-s.fatal:
		s.log.Error("Polling halted, reauthentication required", "error", err)
		s.entry.Fail(err)
		runErr = fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	wg.Wait()
	return runErr
}

// Close releases publishers and the database.
func (s *Service) Close() error {
	s.log.Info("Stopping service...")

	var errs []error
	if err := s.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
