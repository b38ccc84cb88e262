package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"activity-hub/internal/config"
	"activity-hub/internal/handler"
	"activity-hub/internal/metrics"
	"activity-hub/internal/middleware"
	"activity-hub/internal/pkg/i18n"
	"activity-hub/internal/pkg/logging"
	"activity-hub/internal/ratelimit"
	"activity-hub/internal/repository"
	"activity-hub/internal/scheduler"
	"activity-hub/internal/service/activity"
	"activity-hub/internal/service/audit"
	"activity-hub/internal/service/auth"
	"activity-hub/internal/service/email"
	"activity-hub/internal/service/joinrequest"
	"activity-hub/internal/service/media"
	"activity-hub/internal/service/membership"
	"activity-hub/internal/service/notification"
	"activity-hub/internal/service/search"
	"activity-hub/internal/store"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logging.Setup(cfg.LogLevel, cfg.Environment)
	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.NewPostgresDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := repository.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		log.Info("applied migrations", "versions", applied)
	}

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Warn("failed to connect to Redis, dedupe and rate limiting degrade", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	minioClient, err := config.NewMinIOClient(cfg)
	if err != nil {
		log.Warn("failed to connect to MinIO, cover cleanup disabled", "error", err)
		minioClient = nil
	}

	if cfg.LocaleDir != "" {
		if err := i18n.LoadTranslations(cfg.LocaleDir); err != nil {
			log.Warn("failed to load translations, using built-in messages", "dir", cfg.LocaleDir, "error", err)
		}
	}

	m := metrics.New()
	gw := repository.NewGateway(db)
	repos := gw.Privileged()

	st, err := store.New(store.Mode(cfg.MembershipStoreMode), gw, m, log)
	if err != nil {
		return err
	}
	log.Info("membership store ready", "mode", st.Mode())

	meili := search.NewMeili(config.NewMeiliClient(cfg), cfg.MeiliIndex, log)
	searchSvc := search.NewService(meili, repos, log)
	defer searchSvc.Close()

	auditSvc := audit.NewService(repos)
	dispatcher := notification.NewDispatcher(repos, log, notification.Options{
		QueueSize:    cfg.NotificationQueueSize,
		DedupeWindow: cfg.NotificationDedupeWindow,
		Locale:       cfg.DefaultLocale,
		Deduper:      notification.NewRedisDeduper(redisClient, repos.Notifications, log),
		Email:        email.NewService(cfg),
		Indexer:      searchSvc,
		Auditor:      auditSvc,
		Metrics:      m,
	})

	activitySvc := activity.NewService(st, gw, searchSvc, media.NewService(minioClient, cfg), dispatcher, m, log, cfg.LocationJitterMeters)
	services := &handler.Services{
		Activity:     activitySvc,
		JoinRequest:  joinrequest.NewService(st, repos, dispatcher, m, log),
		Membership:   membership.NewService(st, gw, dispatcher, m, log),
		Notification: notification.NewService(gw),
		Audit:        auditSvc,
	}
	authSvc := auth.NewService(repos.Users, cfg.JWTSecret)

	workers, cancelWorkers := context.WithCancel(context.Background())
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(workers)
		close(dispatcherDone)
	}()
	go scheduler.New(activitySvc, cfg.AutoCompleteInterval, log).Run(workers)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.NewErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	handler.SetupRoutes(app, handler.NewHandlers(services), handler.RouteDeps{
		Auth:           authSvc,
		Limiter:        ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow, log),
		Metrics:        m,
		InternalSecret: cfg.InternalSecret,
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err = <-listenErr:
	case <-ctx.Done():
		log.Info("shutting down")
		err = app.ShutdownWithTimeout(10 * time.Second)
	}

	cancelWorkers()
	<-dispatcherDone
	return err
}
