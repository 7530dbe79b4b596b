package prometheus

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/sparkcopilot/internal/graph"
)

func TestCollector_Analyses(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordAnalysisSubmitted("sync")
	c.RecordAnalysisSubmitted("async")
	c.RecordAnalysisSubmitted("async")
	c.RecordAnalysisCompleted("completed", 200*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.analysesSubmitted.WithLabelValues("sync")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.analysesSubmitted.WithLabelValues("async")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analysesCompleted.WithLabelValues("completed")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.analysisDuration))
}

func TestCollector_Gauges(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordWorkerPoolStatus(3, 1, 0)
	c.SetQueueDepth(7)
	c.SetActiveAnalyses(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.workerPoolIdle))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerPoolBusy))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.workerPoolStopped))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeAnalyses))
}

func TestCollector_OnEvent(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	ctx := context.Background()

	c.OnEvent(ctx, graph.Event{Kind: graph.EventStepFinished, Graph: "g", Step: "skew_agent", Elapsed: time.Millisecond})
	c.OnEvent(ctx, graph.Event{Kind: graph.EventStepFailed, Graph: "g", Step: "cost_agent"})
	c.OnEvent(ctx, graph.Event{Kind: graph.EventStepRouted, Graph: "g", Step: "skew_agent", Outcome: "skewed"})
	c.OnEvent(ctx, graph.Event{Kind: graph.EventRunStarted, Graph: "g"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepsExecuted.WithLabelValues("g", "skew_agent", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepsExecuted.WithLabelValues("g", "cost_agent", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepsRouted.WithLabelValues("g", "skew_agent", "skewed")))
}

func TestCollector_LLMCalls(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordLLMCall("claude", "success", time.Second, 120, 40)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmCalls.WithLabelValues("claude", "success")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.llmTokens.WithLabelValues("claude", "input")))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.llmTokens.WithLabelValues("claude", "output")))
}

func TestCollector_RegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.SetQueueDepth(4)

	expected := `
# HELP sparkcopilot_queue_depth Number of analyses waiting for a worker
# TYPE sparkcopilot_queue_depth gauge
sparkcopilot_queue_depth 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sparkcopilot_queue_depth"))
}
