package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/shortspace/shortspace/config"
	"github.com/shortspace/shortspace/internal/app/captcha"
	"github.com/shortspace/shortspace/internal/app/codefilter"
	"github.com/shortspace/shortspace/internal/app/destcheck"
	appmodel "github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/ratelimit"
	apprepository "github.com/shortspace/shortspace/internal/app/repository"
	appserver "github.com/shortspace/shortspace/internal/app/server"
	"github.com/shortspace/shortspace/internal/app/service"
	"github.com/shortspace/shortspace/internal/app/settings"
	"github.com/shortspace/shortspace/internal/infra/logger"
	infraNATS "github.com/shortspace/shortspace/internal/infra/nats"
	infraPostgres "github.com/shortspace/shortspace/internal/infra/postgres"
	infraPrometheus "github.com/shortspace/shortspace/internal/infra/prometheus"
	infraRedis "github.com/shortspace/shortspace/internal/infra/redis"
	"go.uber.org/zap"
)

const activityRetention = 90 * 24 * time.Hour

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded",
		zap.String("addr", cfg.Server.Addr),
		zap.String("default_domain", cfg.Server.DefaultDomain),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	err = infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.ShortCode{},
		&appmodel.Domain{},
		&appmodel.TenantSettings{},
		&appmodel.ActivityEvent{},
	)
	if err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully")

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	codeRepo := apprepository.NewShortCodeRepository(gormDB)
	domainRepo := apprepository.NewDomainRepository(gormDB)
	activityRepo := apprepository.NewActivityRepository(gormDB)

	filter := codefilter.New(1<<20, 0.001)
	if err := codeRepo.EachCode(ctx, func(domainID uint64, code string) error {
		filter.Add(domainID, code)
		return nil
	}); err != nil {
		log.Fatal("Failed to seed code filter", zap.Error(err))
	}

	provider := settings.NewDBProvider(gormDB, settings.DefaultsFromConfig(cfg))
	cache := destcheck.RedisCache{Client: redisClient}

	domains := service.NewDomainService(domainRepo, provider, cache, log)
	resolver := service.NewResolver(codeRepo, filter)

	counters := ratelimit.RedisCounters{Client: redisClient}
	limiter := ratelimit.New(counters, ratelimit.Config{
		Threshold: cfg.RateLimit.AnonCreateLimit,
		Window:    cfg.RateLimit.Window,
	}, log)

	// Coarse guard over the whole API surface, independent of the
	// per-action anonymous-creation limit.
	apiLimiter := ratelimit.New(counters, ratelimit.Config{
		Threshold: 100,
		Window:    time.Minute,
		KeyPrefix: "ratelimit:api",
	}, log)

	var checker *destcheck.Checker
	if cfg.DestCheck.Enabled {
		checker = destcheck.New(cache, destcheck.Config{
			ProbeTimeout: cfg.DestCheck.ProbeTimeout,
			CacheTTL:     cfg.DestCheck.CacheTTL,
		}, log)
	}

	creation := service.NewCreationService(
		codeRepo,
		domains,
		provider,
		limiter,
		captcha.NewFromConfig(cfg.Captcha),
		filter,
		service.CreationConfig{
			CodeLength:  cfg.ShortCode.Length,
			MaxAttempts: cfg.ShortCode.MaxAttempts,
		},
		log,
	)

	activity := service.NewActivityPublisher(js)
	consumer := service.NewActivityConsumer(js, log, activityRepo, codeRepo)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start activity consumer", zap.Error(err))
	}

	pruner := service.NewActivityPruner(log, activityRepo, activityRetention)
	pruner.Start()
	defer pruner.Stop()

	srv := appserver.New(appserver.Dependencies{
		Logger:   log,
		Domains:  domains,
		Resolver: resolver,
		Creation: creation,
		Settings: provider,
		Codes:    codeRepo,
		Checker:  checker,
		Activity: activity,
		Limiter:  apiLimiter,
		Secret:   []byte(cfg.Server.RedirectSecret),
	})

	if err := srv.Listen(cfg.Server.Addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
