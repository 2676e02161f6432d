package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/stewardhq/steward/pkg/audit"
	"github.com/stewardhq/steward/pkg/authz"
	"github.com/stewardhq/steward/pkg/config"
	"github.com/stewardhq/steward/pkg/identity"
	"github.com/stewardhq/steward/pkg/members"
	"github.com/stewardhq/steward/pkg/middleware"
	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/ratelimit"
	"github.com/stewardhq/steward/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session/membership store. Authorization fails closed, so a dead
	// Postgres is fatal at startup.
	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:         cfg.Postgres.URL,
		MaxConns:    cfg.Postgres.MaxConns,
		MinConns:    cfg.Postgres.MinConns,
		Timeout:     cfg.Postgres.Timeout,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer db.Close()

	// Counter store. Rate limiting fails open to the in-process fallback,
	// so Redis being down only degrades the service.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis URL: %v", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		opts.DialTimeout = 5 * time.Second
		opts.ReadTimeout = 3 * time.Second
		opts.WriteTimeout = 3 * time.Second

		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, rate limiting starts degraded")
		}
	} else {
		logger.Warn("no redis configured, rate limiting is in-process only")
	}

	verifier, err := identity.NewOIDCVerifier(ctx, cfg.OIDC.IssuerURL, cfg.OIDC.ClientID)
	if err != nil {
		log.Fatalf("Failed to configure OIDC verifier: %v", err)
	}

	metrics := observability.NewMetrics(nil)

	store := postgres.NewAuthzStore(db)
	resolver := authz.NewResolver(store, logger)
	gate := authz.NewGate(resolver)
	guard := authz.NewGuard(store)

	var primary ratelimit.Store
	if redisClient != nil {
		primary = ratelimit.NewRedisStore(redisClient, "ratelimit")
	}
	limiter := ratelimit.NewLimiter(primary, ratelimit.NewMemoryStore(), logger, metrics)

	recorder, err := audit.NewDBRecorder(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit recorder: %v", err)
	}

	memberService := members.NewPostgresService(db)
	memberHandlers := members.NewHandlers(memberService, guard, resolver, recorder)

	router := mux.NewRouter()
	router.Use(middleware.Recover(logger))
	router.Use(middleware.RequestID(logger))
	// Failed authentication attempts are accounted inside Authenticate under
	// their own named limit; successful traffic only counts against the API
	// limit.
	router.Use(middleware.Authenticate(verifier, limiter, cfg.RateLimits.AuthAttempts, logger))
	router.Use(middleware.RateLimit(limiter, cfg.RateLimits.API, middleware.UserKey))

	memberHandlers.RegisterRoutes(router, gate, metrics)
	memberHandlers.RegisterSessionRoutes(router)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      metrics.InstrumentHandler("api", router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	healthMux.Handle("/metrics", metrics.Handler())
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		apiServer.Shutdown(shutdownCtx)
		healthServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
