package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTasksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "worker",
		Name:      "tasks_active",
		Help:      "Tasks currently executing",
	})

	metricTasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "worker",
		Name:      "tasks_completed_total",
		Help:      "Tasks that finished without error",
	})

	metricTasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "worker",
		Name:      "tasks_failed_total",
		Help:      "Tasks that returned an error, panicked or timed out",
	})

	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Tasks waiting in the priority queue",
	})

	metricTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Task execution time",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"task"})
)
