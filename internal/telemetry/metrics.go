package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики жизненного цикла. Регистрируются в default
// registry; каждый сервис отдаёт их через promhttp на /metrics.
var (
	// TransitionsTotal — успешные переходы статусов по парам from/to.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listopad_status_transitions_total",
		Help: "Successful run status transitions by from/to pair.",
	}, []string{"from", "to"})

	// TransitionsRejected — отклонённые переходы по причине отказа.
	TransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listopad_status_transitions_rejected_total",
		Help: "Rejected run status transitions by rejection kind.",
	}, []string{"kind"})

	// RetriesScheduled — запланированные retry.
	RetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listopad_retries_scheduled_total",
		Help: "Retries scheduled for deferred runs.",
	})

	// RunsCreated — созданные run по причине постановки в очередь.
	RunsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listopad_runs_created_total",
		Help: "Submission runs created by queue reason.",
	}, []string{"reason"})

	// LeasesAcquired — захваты run воркерами.
	LeasesAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listopad_leases_acquired_total",
		Help: "Worker leases acquired on queued runs.",
	})

	// ConnectorDuration — длительность отправки в каталог по slug.
	ConnectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listopad_connector_submit_duration_seconds",
		Help:    "Directory connector submit duration by directory slug.",
		Buckets: prometheus.DefBuckets,
	}, []string{"directory"})
)
