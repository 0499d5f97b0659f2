package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/config"
	"github.com/jebauza/VetFlow/internal/infra/database"
	kafkainfra "github.com/jebauza/VetFlow/internal/infra/kafka"
	"github.com/jebauza/VetFlow/internal/infra/logger"
	redisinfra "github.com/jebauza/VetFlow/internal/infra/redis"
	"github.com/jebauza/VetFlow/internal/infra/security"
	"github.com/jebauza/VetFlow/internal/infra/storage"
	"github.com/jebauza/VetFlow/internal/infra/telemetry"
	"github.com/jebauza/VetFlow/internal/pagination"
	postgresrepo "github.com/jebauza/VetFlow/internal/repository/postgres"
	redisrepo "github.com/jebauza/VetFlow/internal/repository/redis"
	transportgrpc "github.com/jebauza/VetFlow/internal/transport/grpc"
	grpcinterceptors "github.com/jebauza/VetFlow/internal/transport/grpc/interceptors"
	"github.com/jebauza/VetFlow/internal/transport/http/middleware"
	"github.com/jebauza/VetFlow/internal/transport/http/routes"
	"github.com/jebauza/VetFlow/internal/usecase"
	"github.com/jebauza/VetFlow/migrations"
)

const shutdownTimeout = 10 * time.Second

// Application owns every long-lived resource of the API process.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	tracer     *telemetry.TracerProvider
	producer   *kafkainfra.Producer
	grpcServer *transportgrpc.Server
	grpcAddr   string

	memoryDenylist *security.MemoryDenylist
	revocations    *kafkainfra.RevocationGroup
	revocationSink *kafkainfra.RevocationConsumer
}

// New builds the dependency graph. Resources opened before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	if a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log); err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if _, err = database.Migrate(ctx, a.pool, migrations.Files, log); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	if a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log); err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory, cfg.JWT.ActiveKeyID)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider, cfg.JWT.Issuer)

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}
	passwordPolicy := security.NewPasswordPolicy(cfg.Password.MinLength, cfg.Password.MinScore)

	pages := pagination.NewEngine(pagination.Limits{
		DefaultPerPage: cfg.Pagination.DefaultPerPage,
		MaxPerPage:     cfg.Pagination.MaxPerPage,
	}, cfg.Pagination.CursorSecret)

	blobs, err := storage.NewLocalStore(cfg.Storage.Root, publicStorageURL(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	images := storage.NewAvatarNormalizer(cfg.Storage.AvatarMaxBytes, cfg.Storage.AvatarDimension)

	tokenMetrics, err := telemetry.NewTokenMetrics(telemetry.TokenMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init token metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	events := a.eventPublisher()
	denylist, err := a.tokenDenylist(tokenMetrics)
	if err != nil {
		return nil, err
	}

	repos := postgresrepo.NewRepositories(a.pool)

	tokenService := usecase.NewTokenService(jwtManager, denylist, repos.Users, events, tokenMetrics, usecase.TokenOptionsFromConfig(cfg), log)
	authzService := usecase.NewAuthorizationService(repos.Users, repos.Roles, repos.Permissions, repos.Assignments, events, log)
	authService := usecase.NewAuthService(repos.Users, hasher, passwordPolicy, tokenService, authzService, blobs, events, log)
	userService := usecase.NewUserService(repos.Users, repos.Roles, repos.Assignments, authzService, repos.Transactor, hasher, blobs, images, pages, events, log)
	roleService := usecase.NewRoleService(repos.Roles, repos.Assignments, authzService, repos.Transactor, pages, events, log)
	permissionService := usecase.NewPermissionService(repos.Permissions)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Throttle:    middleware.NewThrottle(cfg.RateLimit.GlobalRPS, cfg.RateLimit.GlobalBurst),
		Metrics:     httpMetrics,
		Keys:        jwtManager,
		Pages:       pages,
		Database:    a.pool,
		Cache:       a.redis,
		Services: routes.ServiceSet{
			Auth:          authService,
			Tokens:        tokenService,
			Authorization: authzService,
			Users:         userService,
			Roles:         roleService,
			Permissions:   permissionService,
		},
	})

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
		if err != nil {
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		a.grpcServer, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Tokens:   tokenService,
			Profiles: authService,
			Logger:   log,
			Metrics:  grpcMetrics,
			Tracing:  &grpcinterceptors.TracingOptions{TracerProvider: a.tracer.Provider()},
		})
		if err != nil {
			return nil, fmt.Errorf("init grpc server: %w", err)
		}
		a.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	return a, nil
}

// eventPublisher picks the Kafka publisher when brokers are configured and the logging stub otherwise.
func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// tokenDenylist selects the shared Redis denylist or a per-node map. A per-node map is kept in
// sync across nodes by the revocation consumer when fan-out is enabled.
func (a *Application) tokenDenylist(lag kafkainfra.RevocationLagObserver) (port.TokenDenylist, error) {
	if a.cfg.Denylist.Backend != "memory" {
		return redisrepo.NewTokenDenylist(a.redis.Client(), a.cfg.Redis.DenylistPrefix), nil
	}

	a.memoryDenylist = security.NewMemoryDenylist(security.MemoryDenylistOptions{})
	if !a.cfg.Kafka.RevocationFanout || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Warn("memory denylist without revocation fan-out; invalidations stay local to this node")
		return a.memoryDenylist, nil
	}

	group, err := kafkainfra.NewRevocationGroup(a.cfg.Kafka, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init revocation consumer: %w", err)
	}
	a.revocations = group
	a.revocationSink = kafkainfra.NewRevocationConsumer(a.memoryDenylist, lag, a.logger)
	return a.memoryDenylist, nil
}

func publicStorageURL(cfg *config.AppConfig) string {
	base := strings.TrimRight(cfg.App.PublicURL, "/")
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", cfg.App.Host, cfg.App.Port)
	}
	return base + "/" + strings.Trim(cfg.Storage.PublicPath, "/")
}

// Run serves HTTP and gRPC until ctx is cancelled or a server fails.
func (a *Application) Run(ctx context.Context) error {
	defer a.release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.memoryDenylist != nil {
		go a.memoryDenylist.Run(ctx, a.cfg.Denylist.CleanupInterval, a.logger)
	}
	if a.revocations != nil {
		go func() {
			if err := a.revocations.Run(ctx, a.revocationSink); err != nil {
				a.logger.Error("revocation consumer stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting VetFlow API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if a.grpcServer != nil {
		a.grpcServer.Health.Shutdown()
		a.grpcServer.GracefulStop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	return runErr
}

// release closes resources in reverse order of acquisition. It is safe on a partially built app.
func (a *Application) release() {
	if a.revocations != nil {
		if err := a.revocations.Close(); err != nil {
			a.logger.Warn("close revocation consumer", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
