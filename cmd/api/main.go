package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/api/handlers"
	"github.com/rake220/customer-segmentation/internal/cache/redis"
	"github.com/rake220/customer-segmentation/internal/cluster"
	"github.com/rake220/customer-segmentation/internal/events"
	"github.com/rake220/customer-segmentation/internal/metrics"
	"github.com/rake220/customer-segmentation/internal/middleware/ratelimit"
	"github.com/rake220/customer-segmentation/internal/middleware/security"
	"github.com/rake220/customer-segmentation/internal/middleware/validation"
	"github.com/rake220/customer-segmentation/internal/query"
	"github.com/rake220/customer-segmentation/internal/seed"
	"github.com/rake220/customer-segmentation/internal/segmentation"
	"github.com/rake220/customer-segmentation/internal/storage/sqlite"
	"github.com/rake220/customer-segmentation/internal/store"
	"github.com/rake220/customer-segmentation/pkg/config"
	appLogger "github.com/rake220/customer-segmentation/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(appLogger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		Service:    "customer-segmentation",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Customer Segmentation API Server")

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New()
	hub := events.NewHub(32)

	var cache segmentation.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx,
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, segmentation results will not be cached", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
		}
	}

	var (
		history        segmentation.History
		historyHandler *handlers.HistoryHandler
	)
	if cfg.SQLite.Enabled {
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		err = sqliteClient.InitSchema()
		if err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}
		history = sqliteClient
		historyHandler = handlers.NewHistoryHandler(sqliteClient)
	}

	clusterOpts := cluster.DefaultOptions()
	clusterOpts.Seed = cfg.Segmentation.Seed
	clusterOpts.MaxIter = cfg.Segmentation.MaxIterations
	clusterOpts.NInit = cfg.Segmentation.NInit
	clusterOpts.MaxAgglomerativeRows = cfg.Segmentation.MaxAgglomerativeRows

	service := segmentation.NewService(st, hub, cache, history, segmentation.Config{
		SegmentColumn:      cfg.Dataset.SegmentColumn,
		CategoricalColumns: cfg.Dataset.CategoricalColumns,
		Cluster:            clusterOpts,
		MaxSilhouetteRows:  cfg.Segmentation.MaxSilhouetteRows,
	})
	queryEngine := query.NewEngine(st, cfg.Dataset.IDColumn, cfg.Dataset.SegmentColumn)

	if cfg.Seed.Path != "" {
		loader := seed.NewLoader(cfg.Seed.Path, service)
		if err := loader.Load(); err != nil {
			appLogger.Warn("Failed to load seed dataset", zap.String("path", cfg.Seed.Path), zap.Error(err))
		}
		if cfg.Seed.Watch {
			go func() {
				if err := loader.Watch(ctx); err != nil {
					appLogger.Error("Seed watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: joinOrigins(cfg.Security.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		IsDevelopment:  cfg.Security.IsDevelopment,
	}))

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Costs: map[string]int{
				fiber.MethodPost + " /segment": cfg.RateLimit.SegmentCost,
				fiber.MethodPost + " /upload":  cfg.RateLimit.UploadCost,
			},
			Logger: appLogger.Named("ratelimit"),
		})
		defer limiter.Stop()
		app.Use(limiter.Middleware())
	}

	app.Use(validation.Middleware(validation.Config{
		MaxFeaturesLength: cfg.Validation.MaxFeaturesLength,
		Logger:            appLogger.Named("validation"),
	}))

	if cfg.Metrics.Enabled {
		app.Get("/metrics", metrics.MetricsHandler())
	}

	handlers.RegisterRoutes(app, handlers.Handlers{
		System:  handlers.NewSystemHandler(st),
		Dataset: handlers.NewDatasetHandler(service, st),
		Segment: handlers.NewSegmentHandler(service, handlers.SegmentDefaults{
			Algorithm: cfg.Segmentation.DefaultAlgorithm,
			Clusters:  cfg.Segmentation.DefaultClusters,
		}),
		Query:     handlers.NewQueryHandler(queryEngine),
		WebSocket: handlers.NewWebSocketHandler(hub),
		History:   historyHandler,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func joinOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	joined := origins[0]
	for _, origin := range origins[1:] {
		joined += ", " + origin
	}
	return joined
}
