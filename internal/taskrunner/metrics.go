package taskrunner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics exposes per-lane and per-handler task runner state so
// operator dashboards can watch queue depth and failure rates without
// scraping the event log.
type metrics struct {
	laneDepth    *prometheus.GaugeVec
	laneInFlight *prometheus.GaugeVec
	tasksRetried *prometheus.CounterVec
	tasksDead    *prometheus.CounterVec
	tasksDropped *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		laneDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "taskrunner",
			Name:      "lane_depth",
			Help:      "Number of tasks currently buffered in a lane's queue.",
		}, []string{"lane"}),
		laneInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "taskrunner",
			Name:      "lane_in_flight",
			Help:      "Number of tasks currently executing in a lane.",
		}, []string{"lane"}),
		tasksRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "taskrunner",
			Name:      "tasks_retried_total",
			Help:      "Number of task attempts that failed with a transient error and were retried.",
		}, []string{"lane", "handler"}),
		tasksDead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "taskrunner",
			Name:      "tasks_dead_lettered_total",
			Help:      "Number of tasks that exhausted retries or failed permanently.",
		}, []string{"lane", "handler"}),
		tasksDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "taskrunner",
			Name:      "tasks_dropped_total",
			Help:      "Number of enqueue attempts rejected by a closed runner, a full lane, or lane rate limiting.",
		}, []string{"lane", "reason"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentcore",
			Subsystem: "taskrunner",
			Name:      "task_duration_seconds",
			Help:      "Task handler execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"lane", "handler"}),
	}
}
