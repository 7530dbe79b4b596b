package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aescanero/sparkcopilot/internal/graph"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// Collector implements MetricsCollector using Prometheus. It doubles as a
// graph observer so step executions are counted without touching the
// agents.
type Collector struct {
	analysesSubmitted *prometheus.CounterVec
	analysesCompleted *prometheus.CounterVec
	analysisDuration  *prometheus.HistogramVec
	stepsExecuted     *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	stepsRouted       *prometheus.CounterVec
	llmCalls          *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
	llmLatency        *prometheus.HistogramVec
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	queueDepth        prometheus.Gauge
	activeAnalyses    prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered with reg.
// A nil reg uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		analysesSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkcopilot_analyses_submitted_total",
				Help: "Total number of analyses submitted",
			},
			[]string{"mode"},
		),
		analysesCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkcopilot_analyses_completed_total",
				Help: "Total number of analyses that reached a terminal state",
			},
			[]string{"status"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sparkcopilot_analysis_duration_seconds",
				Help:    "Analysis duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"status"},
		),
		stepsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkcopilot_steps_executed_total",
				Help: "Total number of pipeline steps executed",
			},
			[]string{"graph", "step", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sparkcopilot_step_duration_seconds",
				Help:    "Pipeline step duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
			},
			[]string{"graph", "step"},
		),
		stepsRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkcopilot_steps_routed_total",
				Help: "Total number of routing decisions by outcome",
			},
			[]string{"graph", "step", "outcome"},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkcopilot_llm_calls_total",
				Help: "Total number of LLM API calls",
			},
			[]string{"model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkcopilot_llm_tokens_total",
				Help: "Total number of LLM tokens used",
			},
			[]string{"model", "type"},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sparkcopilot_llm_latency_seconds",
				Help:    "LLM API call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60},
			},
			[]string{"model"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sparkcopilot_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sparkcopilot_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sparkcopilot_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sparkcopilot_queue_depth",
				Help: "Number of analyses waiting for a worker",
			},
		),
		activeAnalyses: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sparkcopilot_active_analyses",
				Help: "Number of analyses currently running",
			},
		),
	}
}

// RecordAnalysisSubmitted counts a submission in the given mode (sync or async)
func (c *Collector) RecordAnalysisSubmitted(mode string) {
	c.analysesSubmitted.WithLabelValues(mode).Inc()
}

// RecordAnalysisCompleted counts a terminal analysis and observes its duration
func (c *Collector) RecordAnalysisCompleted(status string, duration time.Duration) {
	c.analysesCompleted.WithLabelValues(status).Inc()
	c.analysisDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth sets the number of queued analyses
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// SetActiveAnalyses sets the number of running analyses
func (c *Collector) SetActiveAnalyses(count int) {
	c.activeAnalyses.Set(float64(count))
}

// RecordLLMCall records one advisor call
func (c *Collector) RecordLLMCall(model, status string, latency time.Duration, inputTokens, outputTokens int64) {
	c.llmCalls.WithLabelValues(model, status).Inc()
	c.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
	if inputTokens > 0 {
		c.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		c.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// OnEvent implements graph.Observer
func (c *Collector) OnEvent(_ context.Context, e graph.Event) {
	switch e.Kind {
	case graph.EventStepFinished:
		c.stepsExecuted.WithLabelValues(e.Graph, e.Step, "success").Inc()
		c.stepDuration.WithLabelValues(e.Graph, e.Step).Observe(e.Elapsed.Seconds())
	case graph.EventStepFailed:
		c.stepsExecuted.WithLabelValues(e.Graph, e.Step, "failure").Inc()
		c.stepDuration.WithLabelValues(e.Graph, e.Step).Observe(e.Elapsed.Seconds())
	case graph.EventStepRouted:
		c.stepsRouted.WithLabelValues(e.Graph, e.Step, e.Outcome).Inc()
	}
}

var (
	_ ports.MetricsCollector = (*Collector)(nil)
	_ graph.Observer         = (*Collector)(nil)
)
