package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobportal/internal/api"
	"jobportal/internal/auth"
	"jobportal/internal/config"
	"jobportal/internal/database"
	"jobportal/internal/health"
	"jobportal/internal/notify"
	"jobportal/internal/scan"
	"jobportal/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("service", "api"))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database, logger)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Printf("database connection ready")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Printf("database migrated")

	authService, err := auth.NewAuthServiceFromFiles(
		cfg.Auth.PrivateKeyPath,
		cfg.Auth.PublicKeyPath,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer asynqClient.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	checkers := []health.Checker{
		health.NewDatabaseChecker(db),
		health.NewRedisChecker(redisClient),
		health.NewCheckFunc("storage", storageClient.Ping),
	}

	var scanner scan.Scanner = scan.Noop{}
	if cfg.Upload.ClamdAddr != "" {
		clamd := scan.NewClamdScanner(cfg.Upload.ClamdAddr)
		scanner = clamd
		checkers = append(checkers, health.NewCheckFunc("clamd", clamd.Ping))
	} else {
		logger.Warn("CLAMD_ADDR not set, uploads are not virus scanned")
	}

	notifier := notify.NewNotifier(db, asynqClient, logger, cfg.Worker.MaxRetry)

	router := api.NewRouter(cfg, logger, health.NewService(checkers...))
	api.RegisterRoutes(router, api.Dependencies{
		Config:      cfg,
		DB:          db,
		AuthService: authService,
		Redis:       redisClient,
		Notifier:    notifier,
		Storage:     storageClient,
		Scanner:     scanner,
		Logger:      logger,
	})

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("addr", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
