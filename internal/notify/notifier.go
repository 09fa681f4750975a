// Package notify 负责写入站内通知，并把实时推送交给异步队列。
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"jobportal/internal/database"
	"jobportal/internal/metrics"
	"jobportal/internal/tasks"
)

// Enqueuer 是 asynq.Client 的最小子集，便于测试替换。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier 写入通知记录并投递推送任务。
type Notifier struct {
	db       *gorm.DB
	queue    Enqueuer
	logger   *slog.Logger
	maxRetry int
}

// NewNotifier 创建 Notifier。queue 为 nil 时只落库不推送。
func NewNotifier(db *gorm.DB, queue Enqueuer, logger *slog.Logger, maxRetry int) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{db: db, queue: queue, logger: logger, maxRetry: maxRetry}
}

// Notify 持久化通知并入队推送任务。入队失败只记录日志：
// 通知已落库，客户端下次拉取列表时仍能看到。
func (n *Notifier) Notify(ctx context.Context, notification *database.Notification, correlationID string) error {
	notification.Title = strings.TrimSpace(notification.Title)
	notification.Message = strings.TrimSpace(notification.Message)
	if notification.UserID == 0 || notification.Title == "" || notification.Message == "" {
		return fmt.Errorf("notification requires user, title and message")
	}
	if notification.Type == "" {
		notification.Type = database.NotificationSystem
	}

	if err := n.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	metrics.NotificationCreated(notification.Type)

	log := n.logger.With(
		slog.String("correlation_id", correlationID),
		slog.Uint64("notification_id", uint64(notification.ID)),
		slog.Uint64("user_id", uint64(notification.UserID)),
	)
	if n.queue == nil {
		return nil
	}

	task, err := tasks.NewNotificationDeliverTask(notification.ID, correlationID)
	if err != nil {
		log.Error("build notification task failed", slog.Any("error", err))
		return nil
	}
	opts := []asynq.Option{}
	if n.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(n.maxRetry))
	}
	if _, err := n.queue.EnqueueContext(ctx, task, opts...); err != nil {
		log.Error("enqueue notification task failed", slog.Any("error", err))
		return nil
	}
	log.Info("notification queued")
	return nil
}
