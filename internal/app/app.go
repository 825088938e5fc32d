package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"registration-service/internal/application"
	"registration-service/internal/auth"
	"registration-service/internal/config"
	"registration-service/internal/db"
	"registration-service/internal/event"
	"registration-service/internal/grpcserver"
	"registration-service/internal/health"
	"registration-service/internal/kafka"
	"registration-service/internal/logger"
	"registration-service/internal/messaging"
	"registration-service/internal/metrics"
	"registration-service/internal/middleware"
	"registration-service/internal/session"
	"registration-service/internal/storage"
	"registration-service/internal/student"
	"registration-service/internal/submission"
	"registration-service/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
)

const grpcHealthInterval = 15 * time.Second

type App struct {
	config     *config.Config
	router     chi.Router
	server     *http.Server
	grpcServer *grpcserver.Server
	logger     *slog.Logger
	db         *bun.DB
	telemetry  *telemetry.Telemetry
	publisher  event.Publisher
	sessions   *session.Manager
	cancel     context.CancelFunc
}

// Models lists every table in creation order; foreign keys point backwards.
func Models() []interface{} {
	return []interface{}{
		(*student.Institution)(nil),
		(*student.Student)(nil),
		(*application.Application)(nil),
		(*application.Document)(nil),
		(*session.UploadSession)(nil),
	}
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slogLogger := logger.NewWithServiceContext(ServiceName, Version, cfg.Env)
	slog.SetDefault(slogLogger)
	slogLogger.Info("initializing application", "env", cfg.Env)

	tel, err := telemetry.Init(ctx, cfg.Telemetry, ServiceName, Version, cfg.Env, slogLogger)
	if err != nil {
		return nil, err
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := tel.Metrics.Database.RegisterDB(database.DB, tel.MeterProvider.Meter(ServiceName)); err != nil {
		slogLogger.Warn("failed to register db pool metrics", "error", err)
	}

	if err := db.RunMigrations(ctx, database, Models(), session.ExpiryIndex); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	slogLogger.Info("storage initialized", "provider", cfg.Storage.Provider, "container", cfg.Storage.Container)

	publisher := newPublisher(cfg.Events, slogLogger, tel.Metrics.Messaging)

	studentRepo := student.NewRepository(database, tel.Metrics)
	appRepo := application.NewRepository(database, tel.Metrics)
	sessions := session.NewManager(session.NewRepository(database, tel.Metrics), cfg.Submission.SessionTTL())

	submissionService := submission.NewService(appRepo, studentRepo, sessions, store, publisher, slogLogger, tel.Metrics,
		submission.WithMaxReapplications(cfg.Submission.MaxReapplications),
	)
	submissionHandler := submission.NewHandler(submissionService, slogLogger, tel.Metrics)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestLogger(slogLogger))
	router.Use(middleware.CORS)

	// Health endpoints (no auth required)
	health.NewHandler(database).RegisterRoutes(router)

	router.Route("/api", func(r chi.Router) {
		submissionHandler.RegisterRoutes(r, auth.Middleware(verifier, slogLogger))
	})

	slogLogger.Info("application initialized successfully")

	return &App{
		config:     cfg,
		router:     router,
		grpcServer: grpcserver.New(database, slogLogger),
		logger:     slogLogger,
		db:         database,
		telemetry:  tel,
		publisher:  publisher,
		sessions:   sessions,
	}, nil
}

// newPublisher falls back to dropping events when the broker is unreachable;
// events are best effort.
func newPublisher(cfg config.EventsConfig, logger *slog.Logger, m *metrics.MessagingMetrics) event.Publisher {
	switch cfg.Backend {
	case "nats":
		p, err := messaging.NewProducer(cfg.NATSURL, cfg.Subject, logger, m)
		if err != nil {
			logger.Warn("failed to initialize NATS producer, events disabled", "error", err)
			return event.Nop{}
		}
		return p
	case "kafka":
		p, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger, m)
		if err != nil {
			logger.Warn("failed to initialize kafka producer, events disabled", "error", err)
			return event.Nop{}
		}
		return p
	default:
		logger.Info("event publishing disabled", "backend", cfg.Backend)
		return event.Nop{}
	}
}

// Run starts background workers and the gRPC server, then blocks serving HTTP.
func (a *App) Run() error {
	bg, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.sessions.RunReaper(bg, a.config.Submission.PurgeInterval(), a.logger, a.telemetry.Metrics)
	go a.grpcServer.Watch(bg, grpcHealthInterval)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.config.Grpc.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	go func() {
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server error", "error", err)
		}
	}()

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	a.grpcServer.GracefulStop()
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.publisher.Close(); err != nil {
		a.logger.Error("event publisher close error", "error", err)
	}
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}
	db.Close(a.db)

	return errors.Join(errs...)
}
