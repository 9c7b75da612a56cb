// Package metrics provides the Prometheus collector for workflow execution.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scribeworks/quill/workflow"
)

// Collector exposes workflow execution metrics. It implements
// workflow.Metrics and rag.CacheStats.
type Collector struct {
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stageAttempts *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageRetries  *prometheus.CounterVec
	revisionLoops *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
}

// NewCollector creates a collector and registers it on reg. A nil reg uses
// the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of workflow runs started",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of workflow runs finished, by status and error kind",
		}, []string{"status", "kind"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end workflow run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		stageAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_attempts_total",
			Help:      "Total stage attempts, by stage and outcome",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage attempt duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_retries_total",
			Help:      "Total stage retries, by stage",
		}, []string{"stage"}),
		revisionLoops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revision_loops_total",
			Help:      "Total revision loop-backs, by target stage",
		}, []string{"target"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_hits_total",
			Help:      "Total fused-document cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_misses_total",
			Help:      "Total fused-document cache misses",
		}),
	}
	reg.MustRegister(
		c.runsStarted, c.runsFinished, c.runDuration,
		c.stageAttempts, c.stageDuration, c.stageRetries,
		c.revisionLoops, c.cacheHits, c.cacheMisses,
	)
	return c
}

func (c *Collector) RunStarted() { c.runsStarted.Inc() }

func (c *Collector) RunFinished(status workflow.Status, kind workflow.ErrorKind, d time.Duration) {
	c.runsFinished.WithLabelValues(string(status), string(kind)).Inc()
	c.runDuration.Observe(d.Seconds())
}

func (c *Collector) StageAttempt(stage, outcome string, d time.Duration) {
	c.stageAttempts.WithLabelValues(stage, outcome).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) StageRetry(stage string) {
	c.stageRetries.WithLabelValues(stage).Inc()
}

func (c *Collector) RevisionLoop(target string) {
	c.revisionLoops.WithLabelValues(target).Inc()
}

func (c *Collector) CacheHit()  { c.cacheHits.Inc() }
func (c *Collector) CacheMiss() { c.cacheMisses.Inc() }
