package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerage_backend/internal/alerts"
	"brokerage_backend/internal/documents"
	"brokerage_backend/internal/email"
	"brokerage_backend/internal/events"
	"brokerage_backend/internal/leads"
	"brokerage_backend/internal/messaging"
	"brokerage_backend/internal/orchestrator"
	"brokerage_backend/internal/scheduler"
	"brokerage_backend/migrations"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/db"
	"brokerage_backend/platform/httpkit"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/metrics"
	"brokerage_backend/platform/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	m := metrics.New()
	val := validator.New()

	leadsModule, err := leads.NewModule(ctx, pool, eventBus, val, cfg, m, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	sched, closeSched := initScheduler(cfg, log)
	if closeSched != nil {
		defer closeSched()
	}
	if sched != nil {
		leadsModule.SetScheduler(sched)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if opt, err := redis.ParseURL(cfg.RedisURL); err == nil {
			redisClient = redis.NewClient(opt)
		} else {
			log.Warn("invalid REDIS_URL, redis-backed features disabled", "error", err)
		}
	}

	alertManager := newAlertManager(cfg, pool, redisClient, m, log)

	orch := orchestrator.New(cfg,
		leadsModule.Repository(),
		documents.NewRepository(pool),
		leadsModule.Service(),
		leadsModule.Engine(),
		alertManager,
		m, log)

	probes := []orchestrator.HealthProbe{
		alerts.PingProbe{Service: "postgres", Ping: pool.Ping},
	}
	if redisClient != nil {
		probes = append(probes, alerts.PingProbe{Service: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	orch.SetHealthProbes(probes...)

	engine := newRouter(cfg, leadsModule, pool, m, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orch.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func newRouter(cfg *config.Config, leadsModule *leads.Module, pool *pgxpool.Pool, m *metrics.Metrics, log *logger.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())

	corsCfg := cors.DefaultConfig()
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-ID")
	engine.Use(cors.New(corsCfg))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(20), 40, log)
	engine.Use(limiter.RateLimit())

	engine.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := engine.Group("/api/v1")
	leadsModule.RegisterRoutes(v1)

	return engine
}

func newAlertManager(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, m *metrics.Metrics, log *logger.Logger) *alerts.Manager {
	var cooldown alerts.CooldownStore = alerts.NewMemoryCooldown()
	if redisClient != nil {
		cooldown = alerts.NewRedisCooldown(redisClient)
	}

	manager := alerts.NewManager(cfg, cooldown, messaging.NewClient(cfg, log), email.NewSender(cfg), nil, m, log)
	return manager.WithHistory(alerts.NewRepository(pool))
}

func initScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.AutomationScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; deferred nudges disabled, sweeps only")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
