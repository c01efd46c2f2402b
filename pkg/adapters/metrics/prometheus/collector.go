package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	publishRequests   *prometheus.CounterVec
	jobsFinished      *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	stepDuration      *prometheus.HistogramVec
	syncCalls         *prometheus.CounterVec
	syncLatency       *prometheus.HistogramVec
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	queueDepth        prometheus.Gauge
	activeJobs        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered on reg.
// A nil reg uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		publishRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "publisher_publish_requests_total",
				Help: "Total number of publish requests by outcome",
			},
			[]string{"outcome"},
		),
		jobsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "publisher_jobs_finished_total",
				Help: "Total number of publish jobs that reached a terminal status",
			},
			[]string{"status", "step"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "publisher_job_duration_seconds",
				Help:    "Publish job run time in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "publisher_step_duration_seconds",
				Help:    "Publish job step duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"step"},
		),
		syncCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "publisher_sync_calls_total",
				Help: "Total number of external platform sync calls",
			},
			[]string{"adapter", "success"},
		),
		syncLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "publisher_sync_latency_seconds",
				Help:    "External platform sync latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"adapter"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "publisher_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "publisher_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "publisher_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "publisher_queue_depth",
				Help: "Current depth of the publish job queue",
			},
		),
		activeJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "publisher_active_jobs",
				Help: "Number of publish jobs currently running",
			},
		),
	}
}

// RecordPublishRequest counts a publish request by outcome
func (c *Collector) RecordPublishRequest(outcome string) {
	c.publishRequests.WithLabelValues(outcome).Inc()
}

// RecordJobFinished counts a terminal job and observes its run time
func (c *Collector) RecordJobFinished(status domain.JobStatus, step domain.JobStep, duration time.Duration) {
	c.jobsFinished.WithLabelValues(string(status), string(step)).Inc()
	c.jobDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// RecordStepDuration observes the time spent in one step
func (c *Collector) RecordStepDuration(step domain.JobStep, duration time.Duration) {
	c.stepDuration.WithLabelValues(string(step)).Observe(duration.Seconds())
}

// RecordSync counts a sync call and observes its latency
func (c *Collector) RecordSync(adapter string, success bool, duration time.Duration) {
	c.syncCalls.WithLabelValues(adapter, strconv.FormatBool(success)).Inc()
	c.syncLatency.WithLabelValues(adapter).Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth sets the current depth of the job queue
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// SetActiveJobs sets the number of running jobs
func (c *Collector) SetActiveJobs(count int) {
	c.activeJobs.Set(float64(count))
}
