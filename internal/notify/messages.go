package notify

import (
	"fmt"

	"jobportal/internal/applications"
	"jobportal/internal/database"
)

// Welcome 是注册成功后发送的欢迎通知。
func Welcome(userID uint, userType string) *database.Notification {
	goal := "find your dream job"
	if userType == database.UserTypeCompany {
		goal = "find great talent"
	}
	return &database.Notification{
		UserID:  userID,
		Title:   "Welcome to JobPortal!",
		Message: fmt.Sprintf("Thank you for joining JobPortal. We're excited to help you %s!", goal),
		Type:    database.NotificationSystem,
	}
}

// NewApplication 通知企业收到新的投递，related_id 指向职位。
func NewApplication(companyUserID, jobID uint, jobTitle string) *database.Notification {
	return &database.Notification{
		UserID:    companyUserID,
		Title:     "New Job Application",
		Message:   fmt.Sprintf("Someone has applied for the %s position.", jobTitle),
		Type:      database.NotificationApplication,
		RelatedID: &jobID,
	}
}

// NewReview 通知企业收到新的评价。
func NewReview(companyUserID, reviewID uint, rating int) *database.Notification {
	return &database.Notification{
		UserID:    companyUserID,
		Title:     "New Company Review",
		Message:   fmt.Sprintf("Someone has left a %d-star review for your company.", rating),
		Type:      database.NotificationReview,
		RelatedID: &reviewID,
	}
}

// StatusChanged 通知求职者投递状态变化，related_id 指向职位；无需通知的状态返回 nil。
func StatusChanged(applicantID, jobID uint, status, jobTitle string) *database.Notification {
	title, message, ok := applications.StatusMessage(status, jobTitle)
	if !ok {
		return nil
	}
	return &database.Notification{
		UserID:    applicantID,
		Title:     title,
		Message:   message,
		Type:      database.NotificationStatus,
		RelatedID: &jobID,
	}
}

// 推送消息类型，经 Redis Pub/Sub 转发给 WebSocket 客户端。
const (
	PushTypeNotification = "notification"
	PushTypeSnapshot     = "snapshot"
)

// PushMessage 是 WebSocket 上的统一消息格式，字段名与前端解析保持一致。
type PushMessage struct {
	Type          string                  `json:"type"`
	CorrelationID string                  `json:"correlation_id,omitempty"`
	Notification  *database.Notification  `json:"notification,omitempty"`
	Notifications []database.Notification `json:"notifications,omitempty"`
	UnreadCount   *int64                  `json:"unread_count,omitempty"`
}
