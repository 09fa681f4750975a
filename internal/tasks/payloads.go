package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeNotificationDeliver = "notification:deliver"
)

// QueueNotifications 是通知投递任务所在的 asynq 队列。
const QueueNotifications = "notifications"

// UserChannel 返回某个用户的 Redis Pub/Sub 推送频道。
func UserChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// NotificationDeliverPayload 描述推送一条通知所需的最小信息，
// 通知正文由 worker 从数据库读取。
type NotificationDeliverPayload struct {
	NotificationID uint   `json:"notification_id"`
	CorrelationID  string `json:"correlation_id"`
}

// NewNotificationDeliverTask 构造一个通知推送任务。
func NewNotificationDeliverTask(id uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(NotificationDeliverPayload{
		NotificationID: id,
		CorrelationID:  correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationDeliver, payload, asynq.Queue(QueueNotifications)), nil
}
