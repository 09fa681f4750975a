package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTaskResult(t *testing.T) {
	assert.Equal(t, TaskResultOK, taskResult(nil))
	assert.Equal(t, TaskResultRetry, taskResult(errors.New("redis down")))
	assert.Equal(t, TaskResultDropped, taskResult(fmt.Errorf("bad payload: %w", asynq.SkipRetry)))
}

func TestAsynqMetricsMiddleware(t *testing.T) {
	const taskType = "test:metrics"
	fail := true
	handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}))

	task := asynq.NewTask(taskType, nil)
	assert.Error(t, handler.ProcessTask(context.Background(), task))
	fail = false
	assert.NoError(t, handler.ProcessTask(context.Background(), task))

	assert.InDelta(t, 1, testutil.ToFloat64(tasksHandled.WithLabelValues(taskType, TaskResultRetry)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(tasksHandled.WithLabelValues(taskType, TaskResultOK)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(tasksRunning.WithLabelValues(taskType)), 0)
}
