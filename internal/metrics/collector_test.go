package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/scribeworks/quill/workflow"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("quill", reg)

	c.RunStarted()
	c.RunStarted()
	c.RunFinished(workflow.StatusCompleted, "", 2*time.Second)
	c.RunFinished(workflow.StatusFailed, workflow.ErrProviderTimeout, time.Second)
	c.StageAttempt("write", "ok", 100*time.Millisecond)
	c.StageAttempt("write", string(workflow.ErrProviderTimeout), 100*time.Millisecond)
	c.StageRetry("write")
	c.RevisionLoop("write")
	c.CacheHit()
	c.CacheMiss()
	c.CacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("completed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("failed", "PROVIDER_TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageAttempts.WithLabelValues("write", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageAttempts.WithLabelValues("write", "PROVIDER_TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageRetries.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.revisionLoops.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheMisses))
}

func TestCollectorImplementsSinks(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("quill", reg)

	var _ workflow.Metrics = c
	assert.NotNil(t, c)
}

func TestCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("quill", reg)

	// A second collector on the same registry is a programming error.
	assert.Panics(t, func() { NewCollector("quill", reg) })
}
