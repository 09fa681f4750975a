package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotificationDeliverTask(t *testing.T) {
	task, err := NewNotificationDeliverTask(42, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, TypeNotificationDeliver, task.Type())

	var payload NotificationDeliverPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, NotificationDeliverPayload{NotificationID: 42, CorrelationID: "corr-1"}, payload)
}

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "user_notify:7", UserChannel(7))
}
