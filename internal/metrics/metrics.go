// Package metrics collects Prometheus metrics for the sync pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records pipeline metrics. A nil *Collector is valid and
// records nothing, so wiring stays optional in tests.
type Collector struct {
	stageRuns      *prometheus.CounterVec
	stageLatency   prometheus.Histogram
	pagesFetched   *prometheus.CounterVec
	itemsInserted  prometheus.Counter
	itemsSkipped   prometheus.Counter
	fanOutRows     prometheus.Counter
	lockContention prometheus.Counter
	breakerTrips   prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncd_stage_runs_total",
			Help: "Stage invocations by provider, stage and outcome.",
		}, []string{"provider", "stage", "outcome"}),
		stageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "syncd_stage_latency_seconds",
			Help:    "Latency of one stage unit of work.",
			Buckets: prometheus.DefBuckets,
		}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncd_pages_fetched_total",
			Help: "Provider API pages fetched.",
		}, []string{"provider"}),
		itemsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncd_timeline_items_inserted_total",
			Help: "Timeline items newly created.",
		}),
		itemsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncd_timeline_items_skipped_total",
			Help: "Timeline item candidates dropped as duplicates.",
		}),
		fanOutRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncd_fanout_rows_total",
			Help: "Follower feed rows written.",
		}),
		lockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncd_lock_contention_total",
			Help: "Stage invocations skipped because the connection was locked.",
		}),
		breakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncd_breaker_trips_total",
			Help: "Error-count increments after failed provider calls.",
		}),
	}

	reg.MustRegister(
		c.stageRuns,
		c.stageLatency,
		c.pagesFetched,
		c.itemsInserted,
		c.itemsSkipped,
		c.fanOutRows,
		c.lockContention,
		c.breakerTrips,
	)

	return c
}

func (c *Collector) RecordStageRun(provider, stage, outcome string) {
	if c == nil {
		return
	}
	c.stageRuns.WithLabelValues(provider, stage, outcome).Inc()
}

func (c *Collector) RecordStageLatency(d time.Duration) {
	if c == nil {
		return
	}
	c.stageLatency.Observe(d.Seconds())
}

func (c *Collector) RecordPageFetched(provider string) {
	if c == nil {
		return
	}
	c.pagesFetched.WithLabelValues(provider).Inc()
}

func (c *Collector) RecordItemsInserted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.itemsInserted.Add(float64(n))
}

func (c *Collector) RecordItemsSkipped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.itemsSkipped.Add(float64(n))
}

func (c *Collector) RecordFanOut(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.fanOutRows.Add(float64(n))
}

func (c *Collector) RecordLockContention() {
	if c == nil {
		return
	}
	c.lockContention.Inc()
}

func (c *Collector) RecordBreakerTrip() {
	if c == nil {
		return
	}
	c.breakerTrips.Inc()
}
