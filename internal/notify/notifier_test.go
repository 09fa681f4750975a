package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobportal/internal/database"
	"jobportal/internal/tasks"
	"jobportal/internal/testutil"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func TestNotify_PersistsAndEnqueues(t *testing.T) {
	db := testutil.NewDB(t)
	queue := &fakeQueue{}
	n := NewNotifier(db, queue, nil, 3)

	notification := NewApplication(9, 4, "Go Engineer")
	require.NoError(t, n.Notify(context.Background(), notification, "corr-9"))
	require.NotZero(t, notification.ID)

	var stored database.Notification
	require.NoError(t, db.First(&stored, notification.ID).Error)
	assert.Equal(t, uint(9), stored.UserID)
	assert.Equal(t, "Someone has applied for the Go Engineer position.", stored.Message)
	assert.False(t, stored.Read)
	require.NotNil(t, stored.RelatedID)
	assert.Equal(t, uint(4), *stored.RelatedID)

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, tasks.TypeNotificationDeliver, queue.tasks[0].Type())
	var payload tasks.NotificationDeliverPayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	assert.Equal(t, notification.ID, payload.NotificationID)
	assert.Equal(t, "corr-9", payload.CorrelationID)
}

func TestNotify_EnqueueFailureKeepsRow(t *testing.T) {
	db := testutil.NewDB(t)
	n := NewNotifier(db, &fakeQueue{err: errors.New("redis down")}, nil, 0)

	require.NoError(t, n.Notify(context.Background(), Welcome(3, database.UserTypeApplicant), ""))

	var count int64
	require.NoError(t, db.Model(&database.Notification{}).Where("user_id = ?", 3).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNotify_RejectsIncomplete(t *testing.T) {
	db := testutil.NewDB(t)
	n := NewNotifier(db, nil, nil, 0)

	err := n.Notify(context.Background(), &database.Notification{UserID: 1, Title: "  "}, "")
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&database.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMessages(t *testing.T) {
	w := Welcome(1, database.UserTypeCompany)
	assert.Equal(t, "Welcome to JobPortal!", w.Title)
	assert.Equal(t, "Thank you for joining JobPortal. We're excited to help you find great talent!", w.Message)
	assert.Equal(t, database.NotificationSystem, w.Type)

	w = Welcome(1, database.UserTypeApplicant)
	assert.Equal(t, "Thank you for joining JobPortal. We're excited to help you find your dream job!", w.Message)

	r := NewReview(2, 5, 4)
	assert.Equal(t, "New Company Review", r.Title)
	assert.Equal(t, "Someone has left a 4-star review for your company.", r.Message)
	assert.Equal(t, database.NotificationReview, r.Type)

	s := StatusChanged(3, 6, database.StatusAccepted, "QA")
	require.NotNil(t, s)
	assert.Equal(t, database.NotificationStatus, s.Type)
	require.NotNil(t, s.RelatedID)
	assert.Equal(t, uint(6), *s.RelatedID)
	assert.Equal(t, "Congratulations! Your application has been accepted for the position of QA.", s.Message)
	assert.Nil(t, StatusChanged(3, 6, database.StatusPending, "QA"))
}
