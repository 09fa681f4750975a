// Package applications 管理投递记录的状态流转及其通知文案。
package applications

import (
	"errors"
	"fmt"

	"jobportal/internal/database"
)

// ErrInvalidTransition 表示当前状态不允许流转到目标状态。
var ErrInvalidTransition = errors.New("invalid status transition")

// Action 是企业端对某条投递可执行的操作。
type Action struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

var transitions = map[string][]Action{
	database.StatusPending: {
		{Status: database.StatusReviewing, Label: "Mark as Reviewing"},
		{Status: database.StatusRejected, Label: "Reject"},
	},
	database.StatusReviewing: {
		{Status: database.StatusAccepted, Label: "Accept"},
		{Status: database.StatusRejected, Label: "Reject"},
	},
}

// IsValidStatus reports whether s is one of the four lifecycle states.
func IsValidStatus(s string) bool {
	switch s {
	case database.StatusPending, database.StatusReviewing, database.StatusAccepted, database.StatusRejected:
		return true
	}
	return false
}

// AvailableActions 返回当前状态下可执行的操作；终态返回空切片。
func AvailableActions(status string) []Action {
	actions := transitions[status]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// CanTransition reports whether from -> to is an allowed step.
func CanTransition(from, to string) bool {
	for _, a := range transitions[from] {
		if a.Status == to {
			return true
		}
	}
	return false
}

// Transition 校验状态流转，非法时返回包装后的 ErrInvalidTransition。
func Transition(from, to string) error {
	if !IsValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// StatusMessage 生成投递状态变化时发给求职者的通知标题与正文。
// 返回 false 表示该状态无需通知。
func StatusMessage(status, jobTitle string) (title, message string, ok bool) {
	switch status {
	case database.StatusReviewing:
		title, message = "Application Under Review", "Your application is now being reviewed"
	case database.StatusAccepted:
		title, message = "Application Accepted", "Congratulations! Your application has been accepted"
	case database.StatusRejected:
		title, message = "Application Status Update", "Your application has been rejected. Thank you for your interest"
	default:
		return "", "", false
	}
	return title, message + " for the position of " + jobTitle + ".", true
}
