package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/vittapay/portal-gateway/internal/adapters/cache"
	eventadapter "github.com/vittapay/portal-gateway/internal/adapters/events"
	"github.com/vittapay/portal-gateway/internal/adapters/geo"
	grpcadapter "github.com/vittapay/portal-gateway/internal/adapters/grpc"
	httpadapter "github.com/vittapay/portal-gateway/internal/adapters/http"
	"github.com/vittapay/portal-gateway/internal/adapters/postgres"
	"github.com/vittapay/portal-gateway/internal/adapters/security"
	"github.com/vittapay/portal-gateway/internal/adapters/statefile"
	"github.com/vittapay/portal-gateway/internal/authflow"
	"github.com/vittapay/portal-gateway/internal/backend"
	"github.com/vittapay/portal-gateway/internal/locale"
	"github.com/vittapay/portal-gateway/internal/ports"
	"github.com/vittapay/portal-gateway/internal/store"
)

// Runtime holds the fully wired servers and workers for one process.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

// NewRuntime loads config and wires every adapter. Postgres and Kafka are
// optional dependencies: without a database URL the audit trail and outbox
// are disabled, and without brokers published events fall back to the log.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping portal gateway",
		"service_id", cfg.ServiceID,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"state_backend", cfg.StateBackend,
	)

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	cleanup := func(context.Context) {
		_ = redisClient.Close()
	}

	var audit ports.AuditRepository
	var outboxRepo ports.OutboxRepository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := pool.DB()
		if err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		if err := postgres.Migrate(pool); err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		repos := postgres.NewRepositories(pool)
		audit = repos.Audit
		outboxRepo = repos.Outbox
		cleanup = func(context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		}
	} else {
		logger.Warn("postgres not configured; audit trail and outbox disabled")
	}

	tokenSigner, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			cleanup(ctx)
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokenSigner, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	var storage ports.StateStorage
	switch cfg.StateBackend {
	case "redis":
		storage = cacheadapter.NewRedisStateStorage(redisClient)
	default:
		storage = statefile.New(cfg.StateFile)
	}
	appStore := store.New(ctx, storage, logger)

	var locator authflow.LocationResolver
	if cfg.GeoLookupURL != "" {
		locator = geo.New(cfg.GeoLookupURL, cfg.LocationTimeout)
	} else {
		logger.Warn("geo lookup not configured; logins without coordinates carry no location")
	}

	flow := authflow.NewFlow(authflow.Dependencies{
		Config: authflow.Config{
			OTPPendingTTL:   cfg.OTPPendingTTL,
			CaptchaTTL:      cfg.CaptchaTTL,
			RequireCaptcha:  cfg.RequireCaptcha,
			LocationTimeout: cfg.LocationTimeout,
			TokenTTL:        cfg.TokenTTL,
		},
		Backend:  backend.New(cfg.BackendURL, cfg.BackendTimeout),
		Store:    appStore,
		Pending:  cacheadapter.NewRedisPendingLoginStore(redisClient),
		Captchas: cacheadapter.NewRedisCaptchaStore(redisClient),
		Hasher:   security.NewBcryptHasher(cfg.BcryptCost),
		Signer:   tokenSigner,
		Audit:    audit,
		Outbox:   outboxRepo,
		Locator:  locator,
		Logger:   logger,
	})

	translator := locale.NewTranslator(appStore)
	handler := httpadapter.NewHandler(flow, appStore, translator, tokenSigner, audit)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewSessionInternalServer(tokenSigner))

	var worker *eventadapter.OutboxWorker
	if outboxRepo != nil {
		var publisher ports.EventPublisher
		if len(cfg.KafkaBrokers) > 0 {
			kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, nil)
			if err != nil {
				cleanup(ctx)
				return nil, fmt.Errorf("init kafka publisher: %w", err)
			}
			publisher = kafkaPublisher
			prevCleanup := cleanup
			cleanup = func(c context.Context) {
				_ = kafkaPublisher.Close()
				prevCleanup(c)
			}
		} else {
			logger.Warn("kafka brokers not configured; outbox publishes to log only")
			publisher = eventadapter.NewLoggingPublisher(logger)
		}
		worker = eventadapter.NewOutboxWorker(
			logger,
			outboxRepo,
			publisher,
			cfg.OutboxPollInterval,
			cfg.OutboxBatchSize,
			cfg.OutboxClaimTTL,
			cfg.OutboxMaxRetries,
		)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     worker,
		cleanupFn:  cleanup,
	}, nil
}

// RunAPI binds the HTTP and gRPC ports, serves both until a shutdown signal
// or first fatal server error, then drains both listeners. Ports are bound
// here, not in NewRuntime, so the worker process never holds them.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", grpcLis.Addr().String())
		if err := r.grpcServer.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker runs the outbox publish loop until signal. It fails fast when
// the process was started without a database, since the worker has nothing
// to drain.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.outbox == nil {
		return fmt.Errorf("outbox worker requires a configured database")
	}

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
