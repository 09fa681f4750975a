package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 任务结果标签。
const (
	TaskResultOK      = "ok"
	TaskResultRetry   = "retry"
	TaskResultDropped = "dropped"
)

var (
	tasksHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobportal",
			Subsystem: "worker",
			Name:      "tasks_handled_total",
			Help:      "按类型与结果统计的任务处理次数。",
		},
		[]string{"task_type", "result"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobportal",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "单次任务处理耗时（秒）。",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"task_type"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "jobportal",
			Subsystem: "worker",
			Name:      "tasks_running",
			Help:      "正在处理的任务数。",
		},
		[]string{"task_type"},
	)
)

// taskResult 把 handler 的返回值归类：SkipRetry 表示任务被丢弃，其余错误会由 asynq 重试。
func taskResult(err error) string {
	switch {
	case err == nil:
		return TaskResultOK
	case errors.Is(err, asynq.SkipRetry):
		return TaskResultDropped
	default:
		return TaskResultRetry
	}
}

// AsynqMetricsMiddleware 记录任务耗时与结果。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			running := tasksRunning.WithLabelValues(taskType)
			running.Inc()
			defer running.Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			tasksHandled.WithLabelValues(taskType, taskResult(err)).Inc()
			return err
		})
	}
}

// WorkerMetricsServer 返回 worker 进程独立的抓取端点。worker 不跑 gin，直接用 promhttp。
func WorkerMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
