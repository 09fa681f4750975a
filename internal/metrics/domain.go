package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	applicationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jobportal",
		Name:      "applications_submitted_total",
		Help:      "成功提交的职位申请数。",
	})

	applicationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobportal",
		Name:      "application_status_changes_total",
		Help:      "雇主推进申请状态的次数。",
	}, []string{"to"})

	uploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobportal",
		Subsystem: "upload",
		Name:      "rejected_total",
		Help:      "被拒绝的上传，按原因区分。",
	}, []string{"reason"})

	notificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobportal",
		Name:      "notifications_created_total",
		Help:      "写入的站内通知数。",
	}, []string{"type"})
)

func ApplicationSubmitted()              { applicationsSubmitted.Inc() }
func ApplicationStatusChanged(to string) { applicationTransitions.WithLabelValues(to).Inc() }
func UploadRejected(reason string)       { uploadsRejected.WithLabelValues(reason).Inc() }
func NotificationCreated(kind string)    { notificationsCreated.WithLabelValues(kind).Inc() }
