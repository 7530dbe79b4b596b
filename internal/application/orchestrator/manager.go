package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/graph"
	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// ErrNoQueue is returned by Submit when no worker queue is attached
var ErrNoQueue = errors.New("no worker queue configured")

// Pipeline runs one analysis over a job state
type Pipeline interface {
	Run(ctx context.Context, initial domain.JobState) (domain.JobState, error)
}

// Queue hands submitted analyses to workers
type Queue interface {
	Enqueue(ctx context.Context, analysisID string) error
}

// Submission modes reported to metrics
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Manager coordinates analysis execution
type Manager struct {
	pipeline Pipeline
	store    ports.AnalysisStore
	eventBus ports.EventBus
	metrics  ports.MetricsCollector
	queue    Queue
	logger   *zap.Logger
	now      func() time.Time

	// Track active executions
	executions sync.Map // map[string]*executionContext
	active     atomic.Int64

	// transitions serializes status changes so a cancel never races a
	// run's final save
	transitions sync.Mutex

	analysisTimeout time.Duration
}

// executionContext holds state for a single running analysis
type executionContext struct {
	cancelFunc context.CancelFunc
	cancelled  bool
}

// NewManager creates a new orchestrator manager
func NewManager(
	pipeline Pipeline,
	store ports.AnalysisStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	analysisTimeout time.Duration,
) *Manager {
	return &Manager{
		pipeline:        pipeline,
		store:           store,
		eventBus:        eventBus,
		metrics:         metrics,
		logger:          logger,
		now:             time.Now,
		analysisTimeout: analysisTimeout,
	}
}

// SetQueue attaches the queue used by Submit
func (m *Manager) SetQueue(q Queue) {
	m.queue = q
}

// Analyze runs an analysis synchronously. A failed run returns the failed
// record together with the error.
func (m *Manager) Analyze(ctx context.Context, spec domain.JobSpec) (*domain.Analysis, error) {
	analysis, err := m.create(ctx, spec, ModeSync)
	if err != nil {
		return nil, err
	}

	m.transitions.Lock()
	exec, runCtx, err := m.start(ctx, analysis)
	m.transitions.Unlock()
	if err != nil {
		return nil, err
	}

	return m.run(runCtx, exec, analysis)
}

// Submit persists an analysis and queues it for a worker
func (m *Manager) Submit(ctx context.Context, spec domain.JobSpec) (*domain.Analysis, error) {
	if m.queue == nil {
		return nil, ErrNoQueue
	}

	analysis, err := m.create(ctx, spec, ModeAsync)
	if err != nil {
		return nil, err
	}

	if err := m.queue.Enqueue(ctx, analysis.ID); err != nil {
		m.logger.Error("failed to enqueue analysis",
			zap.String("analysis_id", analysis.ID),
			zap.Error(err))
		m.finish(context.WithoutCancel(ctx), analysis, domain.AnalysisStatusFailed, fmt.Sprintf("failed to enqueue: %v", err))
		return nil, fmt.Errorf("failed to enqueue analysis: %w", err)
	}

	return analysis, nil
}

// Execute runs a previously submitted analysis. It is the worker entry
// point; analyses cancelled while queued are skipped.
func (m *Manager) Execute(ctx context.Context, analysisID string) error {
	m.transitions.Lock()
	analysis, err := m.store.Get(ctx, analysisID)
	if err != nil {
		m.transitions.Unlock()
		return fmt.Errorf("failed to get analysis: %w", err)
	}
	if analysis.Status.Terminal() {
		m.transitions.Unlock()
		m.logger.Info("skipping analysis in terminal state",
			zap.String("analysis_id", analysisID),
			zap.String("status", string(analysis.Status)))
		return nil
	}
	exec, runCtx, err := m.start(ctx, analysis)
	m.transitions.Unlock()
	if err != nil {
		return err
	}

	_, err = m.run(runCtx, exec, analysis)
	return err
}

// Get retrieves an analysis record
func (m *Manager) Get(ctx context.Context, analysisID string) (*domain.Analysis, error) {
	analysis, err := m.store.Get(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return analysis, nil
}

// ListByJob returns the analyses of a job, oldest first
func (m *Manager) ListByJob(ctx context.Context, jobID string) ([]*domain.Analysis, error) {
	analyses, err := m.store.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

// LatestForJob returns the most recent completed analysis of a job
func (m *Manager) LatestForJob(ctx context.Context, jobID string) (*domain.Analysis, error) {
	analyses, err := m.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for i := len(analyses) - 1; i >= 0; i-- {
		if analyses[i].Status == domain.AnalysisStatusCompleted {
			return analyses[i], nil
		}
	}
	return nil, fmt.Errorf("no completed analysis for job %s: %w", jobID, ports.ErrNotFound)
}

// Cancel cancels a queued or running analysis
func (m *Manager) Cancel(ctx context.Context, analysisID string) error {
	m.transitions.Lock()
	defer m.transitions.Unlock()

	analysis, err := m.store.Get(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("failed to get analysis: %w", err)
	}
	if analysis.Status.Terminal() {
		return fmt.Errorf("%w: %s", ports.ErrAlreadyTerminal, analysis.Status)
	}

	if val, ok := m.executions.Load(analysisID); ok {
		exec := val.(*executionContext)
		exec.cancelled = true
		exec.cancelFunc()
	}

	m.finish(ctx, analysis, domain.AnalysisStatusCancelled, "cancelled by request")

	m.logger.Info("analysis cancelled",
		zap.String("analysis_id", analysisID))

	return nil
}

// Shutdown gracefully shuts down the manager. Running analyses are
// cancelled and recorded as such by their runs.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	// Cancel all active executions
	m.executions.Range(func(key, value interface{}) bool {
		value.(*executionContext).cancelFunc()
		return true
	})

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for m.active.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown timeout: %d analyses still running", m.active.Load())
		case <-ticker.C:
		}
	}

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}

// Active returns the number of running analyses
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// create validates the spec and stores a submitted analysis
func (m *Manager) create(ctx context.Context, spec domain.JobSpec, mode string) (*domain.Analysis, error) {
	if err := spec.Validate(); err != nil {
		m.logger.Warn("rejected job spec",
			zap.String("job_id", spec.JobID),
			zap.Error(err))
		return nil, err
	}
	spec = spec.WithDefaults()

	now := m.now()
	analysis := &domain.Analysis{
		ID:          uuid.New().String(),
		JobID:       spec.JobID,
		Status:      domain.AnalysisStatusSubmitted,
		Input:       domain.NewJobState(spec, now),
		SubmittedAt: now,
	}

	if err := m.store.Save(ctx, analysis); err != nil {
		m.logger.Error("failed to save analysis",
			zap.String("analysis_id", analysis.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	m.publish(ctx, domain.EventTypeAnalysisSubmitted, analysis, map[string]interface{}{
		"mode": mode,
	})
	m.metrics.RecordAnalysisSubmitted(mode)

	m.logger.Info("analysis submitted",
		zap.String("analysis_id", analysis.ID),
		zap.String("job_id", analysis.JobID),
		zap.String("mode", mode))

	return analysis, nil
}

// start marks the analysis running and registers its execution. The caller
// holds the transitions lock.
func (m *Manager) start(ctx context.Context, analysis *domain.Analysis) (*executionContext, context.Context, error) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if m.analysisTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, m.analysisTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	now := m.now()
	analysis.Status = domain.AnalysisStatusRunning
	analysis.StartedAt = &now
	if err := m.store.Save(ctx, analysis); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	exec := &executionContext{cancelFunc: cancel}
	m.executions.Store(analysis.ID, exec)
	m.metrics.SetActiveAnalyses(int(m.active.Add(1)))

	m.publish(ctx, domain.EventTypeAnalysisStarted, analysis, nil)

	return exec, graph.ContextWithRunID(runCtx, analysis.ID), nil
}

// run executes the pipeline and records the outcome
func (m *Manager) run(ctx context.Context, exec *executionContext, analysis *domain.Analysis) (*domain.Analysis, error) {
	defer func() {
		exec.cancelFunc()
		m.executions.Delete(analysis.ID)
		m.metrics.SetActiveAnalyses(int(m.active.Add(-1)))
	}()

	final, runErr := m.pipeline.Run(ctx, analysis.Input)

	persist := context.WithoutCancel(ctx)

	m.transitions.Lock()
	defer m.transitions.Unlock()

	if exec.cancelled {
		// Cancel already recorded the outcome
		stored, err := m.store.Get(persist, analysis.ID)
		if err != nil {
			return analysis, fmt.Errorf("analysis %s cancelled", analysis.ID)
		}
		return stored, fmt.Errorf("analysis %s cancelled: %w", analysis.ID, context.Canceled)
	}

	switch {
	case runErr == nil:
		analysis.Result = &final
		m.finish(persist, analysis, domain.AnalysisStatusCompleted, "")
		m.logger.Info("analysis completed",
			zap.String("analysis_id", analysis.ID),
			zap.String("job_id", analysis.JobID),
			zap.Int("recommendations", len(final.Recommendations)),
			zap.Int("issues", len(final.Issues)))
		return analysis, nil

	case errors.Is(runErr, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded):
		m.logger.Warn("analysis timed out",
			zap.String("analysis_id", analysis.ID),
			zap.Duration("timeout", m.analysisTimeout))
		m.finish(persist, analysis, domain.AnalysisStatusFailed, "analysis timeout")
		return analysis, fmt.Errorf("analysis %s timed out: %w", analysis.ID, runErr)

	case errors.Is(runErr, context.Canceled):
		m.finish(persist, analysis, domain.AnalysisStatusCancelled, runErr.Error())
		return analysis, fmt.Errorf("analysis %s cancelled: %w", analysis.ID, runErr)

	default:
		m.logger.Error("analysis failed",
			zap.String("analysis_id", analysis.ID),
			zap.String("job_id", analysis.JobID),
			zap.Error(runErr))
		m.finish(persist, analysis, domain.AnalysisStatusFailed, runErr.Error())
		return analysis, fmt.Errorf("analysis %s failed: %w", analysis.ID, runErr)
	}
}

// finish moves the analysis to a terminal status, saves it and announces it
func (m *Manager) finish(ctx context.Context, analysis *domain.Analysis, status domain.AnalysisStatus, reason string) {
	now := m.now()
	analysis.Status = status
	analysis.Error = reason
	analysis.CompletedAt = &now

	if err := m.store.Save(ctx, analysis); err != nil {
		m.logger.Error("failed to save analysis",
			zap.String("analysis_id", analysis.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}

	var eventType domain.EventType
	var data map[string]interface{}
	switch status {
	case domain.AnalysisStatusCompleted:
		eventType = domain.EventTypeAnalysisCompleted
		data = map[string]interface{}{
			"recommendations":    len(analysis.Result.Recommendations),
			"optimization_score": analysis.Result.OptimizationScore(),
		}
	case domain.AnalysisStatusCancelled:
		eventType = domain.EventTypeAnalysisCancelled
	default:
		eventType = domain.EventTypeAnalysisFailed
		data = map[string]interface{}{"error": reason}
	}
	m.publish(ctx, eventType, analysis, data)

	started := analysis.SubmittedAt
	if analysis.StartedAt != nil {
		started = *analysis.StartedAt
	}
	m.metrics.RecordAnalysisCompleted(string(status), now.Sub(started))
}

// publish publishes an analysis event; failures are logged only
func (m *Manager) publish(ctx context.Context, eventType domain.EventType, analysis *domain.Analysis, data map[string]interface{}) {
	event := domain.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		AnalysisID: analysis.ID,
		JobID:      analysis.JobID,
		Timestamp:  m.now(),
		Data:       data,
	}

	if err := m.eventBus.Publish(ctx, ports.TopicAnalysisEvents, event); err != nil {
		m.logger.Error("failed to publish analysis event",
			zap.String("analysis_id", analysis.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
