package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/exo-discovery/backend/internal/api/handlers"
	"github.com/exo-discovery/backend/internal/apierr"
	rediscache "github.com/exo-discovery/backend/internal/cache/redis"
	"github.com/exo-discovery/backend/internal/metrics"
	"github.com/exo-discovery/backend/internal/middleware/ratelimit"
	"github.com/exo-discovery/backend/internal/middleware/security"
	"github.com/exo-discovery/backend/internal/middleware/validation"
	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/modelver"
	"github.com/exo-discovery/backend/internal/planet"
	"github.com/exo-discovery/backend/internal/prediction"
	"github.com/exo-discovery/backend/internal/seed"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/pkg/config"
	appLogger "github.com/exo-discovery/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Exoplanet Discovery API Server")

	metrics.Init()

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		appLogger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		appLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	if cfg.Seed.Enabled {
		result, err := seed.Initialize(store, cfg.Seed.PlanetCount, cfg.Model.DefaultVersion, cfg.Seed.Force)
		if err != nil {
			appLogger.Fatal("Failed to seed database", zap.Error(err))
		}
		appLogger.Info("Database seed check complete",
			zap.Int("planets_created", result.Planets),
			zap.Int("model_versions_created", result.ModelVersions),
		)
		if result.Planets > 0 {
			metrics.PlanetsSeeded.Add(float64(result.Planets))
		}
	}

	predictor := ml.NewPredictor(cfg.Model.ArtifactPath, cfg.Model.Threshold)
	if predictor.Ready() {
		appLogger.Info("Model artifact loaded", zap.String("path", cfg.Model.ArtifactPath))
	} else {
		appLogger.Warn("Model artifact not loadable; prediction endpoints will return 503",
			zap.String("path", cfg.Model.ArtifactPath),
		)
	}

	var cache prediction.Cache
	if cfg.Redis.Enabled {
		redisClient, err := rediscache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without prediction cache", zap.Error(err))
		} else {
			cache = redisClient
			defer redisClient.Close()
		}
	}

	planetService := planet.NewService(store)
	predictionService := prediction.NewService(store, planetService, predictor, cache)
	versionService := modelver.NewService(store, predictor)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: apierr.Handler,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.AllowedOrigins(),
		IsDevelopment:  cfg.Logging.Level == "debug",
	}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxBatchSize: prediction.MaxBatchSize,
		MaxPageSize:  planet.MaxPageSize,
	}))

	planetsHandler := handlers.NewPlanetsHandler(planetService)
	predictHandler := handlers.NewPredictHandler(predictionService)
	modelHandler := handlers.NewModelHandler(versionService, predictor)
	uploadHandler := handlers.NewUploadHandler(store, versionService, predictor)
	rewardHandler := handlers.NewRewardHandler(predictionService)
	wsHandler := handlers.NewWebSocketHandler(predictionService)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "Exoplanet Discovery API",
			"status":  "operational",
			"version": cfg.Model.DefaultVersion,
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "healthy",
			"model_ready": predictor.Ready(),
			"time":        time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.Handler())

	app.Get("/planets", planetsHandler.ListPlanets)
	app.Post("/planets", planetsHandler.CreatePlanet)
	app.Post("/planets/filter", planetsHandler.FilterPlanets)
	app.Get("/planets/:id", planetsHandler.GetPlanet)

	app.Get("/predict/history", predictHandler.History)
	app.Get("/predict/simple/:id", predictHandler.PredictSimple)
	app.Post("/predict/batch", predictHandler.PredictBatch)
	app.Get("/predict/:id", predictHandler.Predict)

	app.Post("/model/train", modelHandler.Train)
	app.Post("/model/retrain", modelHandler.Retrain)
	app.Get("/model/info", modelHandler.ModelInfo)
	app.Get("/model/versions", modelHandler.ListVersions)
	app.Get("/model/metrics/:version", modelHandler.GetMetrics)
	app.Get("/model/config/:version", modelHandler.GetConfig)
	app.Put("/model/config/:version", modelHandler.UpdateConfig)
	app.Get("/model/features/importance/:version", modelHandler.FeatureImportance)
	app.Get("/model/features/correlation", modelHandler.FeatureCorrelations)

	app.Post("/upload/csv", uploadHandler.UploadCSV)
	app.Post("/upload/identify-planets", uploadHandler.IdentifyPlanets)

	app.Get("/reward/:id", rewardHandler.GetReward)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/predict", websocket.New(wsHandler.HandleConnection))

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
