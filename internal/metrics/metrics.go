// Package metrics 作业指标。serve 模式通过 /metrics 暴露，单次命令结束时可推送到 Pushgateway。
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collector 持有独立的 Registry，不使用全局默认注册表
type Collector struct {
	Registry *prometheus.Registry

	jobsTotal        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	rowsTotal        *prometheus.CounterVec
	canonicalWrites  *prometheus.CounterVec
	bidSelections    *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	fileMoveFailures *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		Registry: reg,
		jobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consorcio_jobs_total",
			Help: "Job runs by outcome",
		}, []string{"job", "administrator", "status"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consorcio_job_duration_seconds",
			Help:    "Job run duration",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"job", "administrator"}),
		rowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consorcio_staging_rows_total",
			Help: "Staging rows by pipeline stage (extracted, skipped, reconciled)",
		}, []string{"administrator", "stage"}),
		canonicalWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consorcio_canonical_writes_total",
			Help: "Canonical rows written by entity and action",
		}, []string{"administrator", "entity", "action"}),
		bidSelections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consorcio_bid_selections_total",
			Help: "Bid calculator outcomes per group (computed, reset, unchanged)",
		}, []string{"administrator", "outcome"}),
		publishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consorcio_event_publish_failures_total",
			Help: "Completion events that could not be published",
		}, []string{"administrator"}),
		fileMoveFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consorcio_file_move_failures_total",
			Help: "Source files left in received after a committed extract",
		}, []string{"administrator"}),
	}
}

func (c *Collector) JobFinished(job, administrator, status string, elapsed time.Duration) {
	c.jobsTotal.WithLabelValues(job, administrator, status).Inc()
	c.jobDuration.WithLabelValues(job, administrator).Observe(elapsed.Seconds())
}

func (c *Collector) Rows(administrator, stage string, n int) {
	c.rowsTotal.WithLabelValues(administrator, stage).Add(float64(n))
}

func (c *Collector) CanonicalWrite(administrator, entity, action string, n int) {
	if n == 0 {
		return
	}
	c.canonicalWrites.WithLabelValues(administrator, entity, action).Add(float64(n))
}

func (c *Collector) BidSelection(administrator, outcome string) {
	c.bidSelections.WithLabelValues(administrator, outcome).Inc()
}

func (c *Collector) PublishFailed(administrator string) {
	c.publishFailures.WithLabelValues(administrator).Inc()
}

func (c *Collector) FileMoveFailed(administrator string) {
	c.fileMoveFailures.WithLabelValues(administrator).Inc()
}

// Push 推送到 Pushgateway；url 为空时不做任何事
func (c *Collector) Push(url, administrator string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, "consorcio_etl").
		Gatherer(c.Registry).
		Grouping("administrator", administrator).
		Push(); err != nil {
		return fmt.Errorf("推送指标失败: %w", err)
	}
	return nil
}
