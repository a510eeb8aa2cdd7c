package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 快照聚合
	SnapshotBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_monitor_snapshot_builds_total",
		Help: "Snapshot aggregation attempts by result",
	}, []string{"result"})

	SnapshotBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "factory_monitor_snapshot_build_seconds",
		Help:    "Duration of one snapshot aggregation cycle",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	SnapshotAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factory_monitor_snapshot_update_timestamp_seconds",
		Help: "Unix time of the currently cached snapshot",
	})

	DataPointsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_monitor_datapoints_unparsable_total",
		Help: "Matched data points whose value could not be parsed",
	})

	// 报警
	AlarmsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_monitor_alarms_emitted_total",
		Help: "Alarm events let through the suppressor",
	})

	AlarmsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_monitor_alarms_suppressed_total",
		Help: "Alarming device cycles suppressed inside the window",
	})

	// 订阅推送
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factory_monitor_subscribers",
		Help: "Currently registered live subscribers",
	})

	SubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_monitor_subscribers_dropped_total",
		Help: "Subscribers dropped after a failed or blocked send",
	})

	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "factory_monitor_broadcasts_total",
		Help: "Snapshot broadcasts performed",
	})

	// 持久化与定时任务
	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_monitor_persistence_failures_total",
		Help: "Failed writes to the persistent store by operation",
	}, []string{"operation"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_monitor_job_runs_total",
		Help: "Scheduled job runs by job and result",
	}, []string{"job", "result"})

	// HTTP
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_monitor_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "factory_monitor_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
