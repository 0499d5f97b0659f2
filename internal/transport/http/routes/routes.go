package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/infra/config"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/transport/http/handlers"
	"github.com/jebauza/VetFlow/internal/transport/http/middleware"
)

// AuthorizationAPI is both the permission gate and the assignment editor.
type AuthorizationAPI interface {
	middleware.Authorizer
	handlers.AssignmentAPI
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          handlers.AuthAPI
	Tokens        middleware.PrincipalResolver
	Authorization AuthorizationAPI
	Users         handlers.UserAPI
	Roles         handlers.RoleAPI
	Permissions   handlers.PermissionAPI
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Throttle    *middleware.Throttle
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Keys        handlers.KeySet
	Pages       *pagination.Engine
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	pages := deps.Pages
	if pages == nil {
		pages = pagination.NewEngine(pagination.Limits{
			DefaultPerPage: cfg.Pagination.DefaultPerPage,
			MaxPerPage:     cfg.Pagination.MaxPerPage,
		}, cfg.Pagination.CursorSecret)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(nil, nil))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(log, "/healthz", "/readyz", "/metrics"))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Storage.PublicPath != "" && cfg.Storage.Root != "" {
		r.Static(cfg.Storage.PublicPath, cfg.Storage.Root)
	}

	api := r.Group("/api/v1")
	api.Use(deps.Throttle.Handler())

	services := deps.Services
	if services.Tokens != nil {
		requireAuth := middleware.RequireAuth(services.Tokens, log)
		gate := func(names ...string) gin.HandlerFunc {
			return middleware.RequirePermission(services.Authorization, log, names...)
		}

		authGroup := api.Group("/auth")
		authGroup.GET("/jwks", handlers.NewJWKSHandler(deps.Keys).Keys)
		if services.Auth != nil {
			handlers.NewAuthHandler(services.Auth, log).RegisterRoutes(authGroup, requireAuth,
				limitChain(deps, "auth_register_ip", cfg.RateLimit.RegisterMaxAttempts),
				limitChain(deps, "auth_login_ip", cfg.RateLimit.LoginMaxAttempts),
				limitChain(deps, "auth_refresh_ip", cfg.RateLimit.RefreshMaxAttempts),
			)
		}

		if services.Authorization != nil {
			if services.Users != nil {
				users := api.Group("/users", requireAuth)
				handlers.NewUserHandler(services.Users, services.Authorization, pages, log).RegisterRoutes(users, gate)
			}
			if services.Roles != nil {
				roles := api.Group("/roles", requireAuth)
				handlers.NewRoleHandler(services.Roles, services.Authorization, pages, log).RegisterRoutes(roles, gate)
			}
			if services.Permissions != nil {
				permissionHandler := handlers.NewPermissionHandler(services.Permissions, log)
				api.GET("/permissions", requireAuth, gate(domain.PermissionRoleList), permissionHandler.List)
			}
		}
	}

	handlers.RegisterSwagger(r, cfg.App.PublicURL)

	return r
}

// limitChain builds the Redis sliding-window limiter for one credential endpoint.
func limitChain(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
