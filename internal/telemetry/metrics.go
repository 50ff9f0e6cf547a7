package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procflow_executions_total",
		Help: "Total workflow executions by final status",
	}, []string{"status"})

	nodeExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procflow_node_executions_total",
		Help: "Total node executions by node type and outcome",
	}, []string{"type", "status"})

	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "procflow_node_duration_seconds",
		Help:    "Node execution duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

// ObserveExecution учитывает завершённый execution.
func ObserveExecution(status string) {
	executionsTotal.WithLabelValues(status).Inc()
}

// ObserveNode учитывает выполнение узла.
// status: "success" или "failed".
func ObserveNode(nodeType, status string, elapsed time.Duration) {
	nodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	nodeDuration.WithLabelValues(nodeType).Observe(elapsed.Seconds())
}
