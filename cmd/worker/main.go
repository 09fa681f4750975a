package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobportal/internal/config"
	"jobportal/internal/database"
	"jobportal/internal/metrics"
	"jobportal/internal/tasks"
	"jobportal/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("service", "worker"))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database, logger)
	if err != nil {
		log.Fatalf("init database: %v", err)
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

	if cfg.Worker.MetricsPort > 0 {
		srv := metrics.WorkerMetricsServer(fmt.Sprintf(":%d", cfg.Worker.MetricsPort))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker metrics listener stopped", slog.Any("error", err))
			}
		}()
		defer srv.Close()
	}

	// 通知投递只有一个队列；失败任务按 asynq 默认退避重试。
	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency:     cfg.Worker.Concurrency,
		Queues:          map[string]int{tasks.QueueNotifications: 1},
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		Logger:          newAsynqLogger(logger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Warn("task failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeNotificationDeliver, worker.NewNotificationTaskHandler(db, redisClient, logger))

	logger.Info("worker started",
		slog.String("redis_addr", redisAddr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Int("metrics_port", cfg.Worker.MetricsPort),
	)
	// Run 会在收到 SIGTERM/SIGINT 后优雅退出。
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
	}
}
