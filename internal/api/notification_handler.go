package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"jobportal/internal/api/middleware"
	"jobportal/internal/database"
	"jobportal/internal/notify"
)

const recentNotificationsLimit = 5

// NotificationHandler 负责站内通知的查询与状态维护。
type NotificationHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	logger   *slog.Logger
}

func NewNotificationHandler(db *gorm.DB, notifier *notify.Notifier, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{db: db, notifier: notifier, logger: logger}
}

// ListNotifications 返回当前用户全部通知，按时间倒序。
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	items, err := latestNotifications(c.Request.Context(), h.db, userID, 0)
	if err != nil {
		loggerFrom(c, h.logger).Error("list notifications failed", slog.Any("error", err))
		Internal(c, "failed to load notifications")
		return
	}
	c.JSON(http.StatusOK, newList(items, int64(len(items))))
}

// RecentNotifications 返回最近几条通知与未读数，供导航栏下拉使用。
func (h *NotificationHandler) RecentNotifications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	snapshot, err := notificationSnapshot(c.Request.Context(), h.db, userID)
	if err != nil {
		loggerFrom(c, h.logger).Error("load recent notifications failed", slog.Any("error", err))
		Internal(c, "failed to load notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": snapshot.Notifications, "unread_count": *snapshot.UnreadCount})
}

// MarkRead 将单条通知标记为已读，返回更新后的记录。
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var n database.Notification
	if err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "notification not found")
			return
		}
		loggerFrom(c, h.logger).Error("load notification failed", slog.Any("error", err))
		Internal(c, "failed to update notification")
		return
	}
	if !n.Read {
		if err := h.db.WithContext(ctx).Model(&n).Update("read", true).Error; err != nil {
			loggerFrom(c, h.logger).Error("mark notification read failed", slog.Any("error", err))
			Internal(c, "failed to update notification")
			return
		}
		n.Read = true
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllRead 将当前用户所有未读通知标记为已读。
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&database.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if res.Error != nil {
		loggerFrom(c, h.logger).Error("mark all notifications read failed", slog.Any("error", res.Error))
		Internal(c, "failed to update notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": res.RowsAffected})
}

// DeleteNotification 删除单条通知。
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, userID).Delete(&database.Notification{})
	if res.Error != nil {
		loggerFrom(c, h.logger).Error("delete notification failed", slog.Any("error", res.Error))
		Internal(c, "failed to delete notification")
		return
	}
	if res.RowsAffected == 0 {
		NotFound(c, "notification not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearNotifications 删除当前用户全部通知。
func (h *NotificationHandler) ClearNotifications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	res := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).Delete(&database.Notification{})
	if res.Error != nil {
		loggerFrom(c, h.logger).Error("clear notifications failed", slog.Any("error", res.Error))
		Internal(c, "failed to delete notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": res.RowsAffected})
}

type internalNotificationRequest struct {
	UserID    uint   `json:"user_id" binding:"required"`
	Title     string `json:"title" binding:"required,max=255"`
	Message   string `json:"message" binding:"required"`
	Type      string `json:"type" binding:"omitempty,oneof=application message status system review"`
	RelatedID *uint  `json:"related_id"`
}

// CreateInternal 供内部服务触发通知，需携带 X-Internal-Secret。
func (h *NotificationHandler) CreateInternal(c *gin.Context) {
	var req internalNotificationRequest
	if !bindJSON(c, &req, nil) {
		return
	}

	ctx := c.Request.Context()
	var count int64
	if err := h.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", req.UserID).Count(&count).Error; err != nil {
		loggerFrom(c, h.logger).Error("lookup user failed", slog.Any("error", err))
		Internal(c, "failed to create notification")
		return
	}
	if count == 0 {
		NotFound(c, "user not found")
		return
	}

	n := &database.Notification{
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		RelatedID: req.RelatedID,
	}
	if err := h.notifier.Notify(ctx, n, middleware.GetCorrelationID(c)); err != nil {
		loggerFrom(c, h.logger).Error("create notification failed", slog.Any("error", err))
		Internal(c, "failed to create notification")
		return
	}
	c.JSON(http.StatusCreated, n)
}

// latestNotifications 按时间倒序读取通知，limit<=0 表示不限制。
func latestNotifications(ctx context.Context, db *gorm.DB, userID uint, limit int) ([]database.Notification, error) {
	query := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	items := make([]database.Notification, 0)
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// notificationSnapshot 构造最近通知与未读数的快照，HTTP 与 WebSocket 共用。
func notificationSnapshot(ctx context.Context, db *gorm.DB, userID uint) (notify.PushMessage, error) {
	items, err := latestNotifications(ctx, db, userID, recentNotificationsLimit)
	if err != nil {
		return notify.PushMessage{}, err
	}
	var unread int64
	if err := db.WithContext(ctx).Model(&database.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return notify.PushMessage{}, err
	}
	return notify.PushMessage{
		Type:          notify.PushTypeSnapshot,
		Notifications: items,
		UnreadCount:   &unread,
	}, nil
}
