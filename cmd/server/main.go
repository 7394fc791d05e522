package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nrgiser71/tandemup-sub000/internal/app"
	"github.com/nrgiser71/tandemup-sub000/internal/config"
	"github.com/nrgiser71/tandemup-sub000/internal/controller"
	"github.com/nrgiser71/tandemup-sub000/internal/notify"
	"github.com/nrgiser71/tandemup-sub000/internal/profile"
	"github.com/nrgiser71/tandemup-sub000/internal/repository"
	"github.com/nrgiser71/tandemup-sub000/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting booking engine", zap.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключаемся к базе
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	// Применяем миграции
	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	// Репозитории
	sessionRepo := repository.NewSessionRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	bookingLogRepo := repository.NewBookingLogRepository(pool)

	// Резолвер профилей, при наличии Redis - с кэшем
	var profiles profile.Resolver = profile.NewRepoResolver(userRepo)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		profiles = profile.NewCachedResolver(profiles, redisClient, logger)
		logger.Info("Profile cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	// Уведомления, при отсутствии брокера - no-op
	var publisher notify.Publisher = notify.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("Failed to connect to AMQP broker", zap.Error(err))
		}
		publisher = amqpPublisher
		logger.Info("Notification publisher enabled")
	}
	defer publisher.Close()
	events := notify.NewNotifier(publisher, logger)

	// Сервисы
	bookingService := service.NewBookingService(sessionRepo, profiles, bookingLogRepo, events, logger)
	slotService := service.NewSlotService(sessionRepo, profiles, logger)
	matchmakingService := service.NewMatchmakingService(sessionRepo, profiles, bookingLogRepo, events, logger)
	noShowService := service.NewNoShowService(sessionRepo, userRepo, events, logger)

	// Фоновые свипы
	scheduler := app.NewScheduler(matchmakingService, noShowService, cfg.ReconcileInterval, cfg.NoShowInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// HTTP сервер
	ctrl := controller.NewSessionController(bookingService, slotService, matchmakingService, noShowService, logger)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: controller.NewRouter(cfg, ctrl),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}
