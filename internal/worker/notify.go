package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobportal/internal/database"
	"jobportal/internal/notify"
	"jobportal/internal/tasks"
)

// Publisher 是 redis.Client 的发布能力子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// NotificationTaskHandler 消费通知推送任务，把通知发布到用户频道。
type NotificationTaskHandler struct {
	db        *gorm.DB
	publisher Publisher
	logger    *slog.Logger
}

// NewNotificationTaskHandler 创建任务处理器。
func NewNotificationTaskHandler(db *gorm.DB, publisher Publisher, logger *slog.Logger) *NotificationTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationTaskHandler{db: db, publisher: publisher, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *NotificationTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.NotificationDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("notification_id", uint64(payload.NotificationID)),
	)

	var notification database.Notification
	if err := h.db.WithContext(ctx).First(&notification, payload.NotificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户可能已删除该通知。
			log.Warn("notification not found, skipping task")
			return nil
		}
		log.Error("query notification failed", slog.Any("error", err))
		return err
	}

	msg := notify.PushMessage{
		Type:          notify.PushTypeNotification,
		CorrelationID: payload.CorrelationID,
		Notification:  &notification,
	}
	if err := h.publish(ctx, notification.UserID, msg); err != nil {
		log.Error("publish notification failed", slog.Any("error", err), slog.Bool("final_attempt", isFinalAsynqAttempt(ctx)))
		return err
	}
	log.Info("notification delivered", slog.Uint64("user_id", uint64(notification.UserID)))
	return nil
}

func (h *NotificationTaskHandler) publish(ctx context.Context, userID uint, msg notify.PushMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.UserChannel(userID)
	if err := h.publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
