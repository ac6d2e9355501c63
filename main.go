package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadintake/config"
	controller "leadintake/controllers"
	"leadintake/middleware"
	"leadintake/routes"
	"leadintake/services"
	"leadintake/store"
	"leadintake/utils"
	"leadintake/worker"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const version = "1.0.0"

type backends struct {
	tokens          store.TokenStore
	leads           store.LeadStore
	users           store.UserDataStore
	classifications store.ClassificationStore
	submissions     store.SubmissionStore
	redis           *redis.Client
}

func main() {
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig
	utils.ConfigureLogger(cfg.Environment, cfg.LogLevel)
	log := utils.Logger("main")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     "leadintake@" + version,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize stores: %v", err)
	}
	if b.redis != nil {
		defer b.redis.Close()
	}

	tokens := services.NewTokenAuthority(b.tokens, cfg.FormTokenTTL,
		services.WithDefaultCountryCode(cfg.DefaultCountryCode))
	intake := services.NewOrchestrator(tokens, b.leads, b.users, b.classifications,
		services.WithJournal(b.submissions))

	reconciler := worker.NewReconcileWorker(b.submissions, intake, cfg.ReconcileInterval, utils.Logger("reconcile"))
	go reconciler.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "leadintake " + version,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           3600,
	}))

	var limiterStorage fiber.Storage
	if b.redis != nil {
		limiterStorage = middleware.NewRedisStorage(b.redis)
	}

	routes.SetupRoutes(app, routes.Handlers{
		Intake: controller.NewIntakeController(intake, tokens, utils.Logger("intake_controller")),
		Tokens: controller.NewTokenController(tokens, cfg.FormBaseURL, utils.Logger("token_controller")),
		Query: controller.NewQueryController(b.leads, b.users, b.classifications, b.submissions,
			tokens, utils.Logger("query_controller")),
		Health: controller.NewHealthController([]controller.HealthCheck{
			{Name: "lead_store", Pinger: b.leads},
			{Name: "user_data_store", Pinger: b.users},
			{Name: "classification_store", Pinger: b.classifications},
			{Name: "token_store", Pinger: b.tokens},
			{Name: "submission_store", Pinger: b.submissions},
		}, version, utils.Logger("health")),
	}, routes.Config{
		JWTSecret: cfg.JWTSecret,
		IssueLimiter: middleware.IssueRateLimiter(middleware.IssueRateLimitConfig{
			Max:                cfg.IssueRateLimit,
			Window:             cfg.IssueRateWindow,
			DefaultCountryCode: cfg.DefaultCountryCode,
			Storage:            limiterStorage,
		}),
		AccessLog: true,
	})

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var db *gorm.DB
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		var err error
		if db, err = config.ConnectDB(cfg); err != nil {
			return nil, err
		}
		sealer := utils.NewSealer(cfg.FieldEncryptionKey)
		b.leads = store.NewGormLeadStore(db)
		b.users = store.NewGormUserDataStore(db, sealer)
		b.classifications = store.NewGormClassificationStore(db)
		b.submissions = store.NewGormSubmissionStore(db)
	default:
		b.leads = store.NewMemoryLeadStore()
		b.users = store.NewMemoryUserDataStore()
		b.classifications = store.NewMemoryClassificationStore()
		b.submissions = store.NewMemorySubmissionStore()
	}

	if cfg.Redis.Enabled {
		client, err := config.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.redis = client
	}

	switch cfg.TokenBackend {
	case config.BackendRedis:
		b.tokens = store.NewRedisTokenStore(b.redis, cfg.TokenRetention)
	case config.BackendPostgres:
		b.tokens = store.NewGormTokenStore(db)
	default:
		b.tokens = store.NewMemoryTokenStore()
	}
	return b, nil
}
