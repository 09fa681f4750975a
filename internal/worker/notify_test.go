package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobportal/internal/database"
	"jobportal/internal/notify"
	"jobportal/internal/tasks"
	"jobportal/internal/testutil"
)

type published struct {
	channel string
	data    []byte
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	data, _ := message.([]byte)
	p.messages = append(p.messages, published{channel: channel, data: data})
	cmd.SetVal(1)
	return cmd
}

func TestNotificationTaskHandler_Publishes(t *testing.T) {
	db := testutil.NewDB(t)
	n := database.Notification{UserID: 12, Title: "Hello", Message: "World", Type: database.NotificationSystem}
	require.NoError(t, db.Create(&n).Error)

	pub := &fakePublisher{}
	h := NewNotificationTaskHandler(db, pub, nil)

	task, err := tasks.NewNotificationDeliverTask(n.ID, "corr-x")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "user_notify:12", pub.messages[0].channel)

	var msg notify.PushMessage
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &msg))
	assert.Equal(t, notify.PushTypeNotification, msg.Type)
	assert.Equal(t, "corr-x", msg.CorrelationID)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, "Hello", msg.Notification.Title)
}

func TestNotificationTaskHandler_MissingRowIsSkipped(t *testing.T) {
	db := testutil.NewDB(t)
	pub := &fakePublisher{}
	h := NewNotificationTaskHandler(db, pub, nil)

	task, err := tasks.NewNotificationDeliverTask(999, "")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Empty(t, pub.messages)
}

func TestNotificationTaskHandler_PublishErrorIsRetried(t *testing.T) {
	db := testutil.NewDB(t)
	n := database.Notification{UserID: 1, Title: "t", Message: "m", Type: database.NotificationSystem}
	require.NoError(t, db.Create(&n).Error)

	h := NewNotificationTaskHandler(db, &fakePublisher{err: errors.New("conn refused")}, nil)
	task, err := tasks.NewNotificationDeliverTask(n.ID, "")
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestNotificationTaskHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := NewNotificationTaskHandler(testutil.NewDB(t), &fakePublisher{}, nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeNotificationDeliver, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
