package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/ports"
)

var (
	// ErrQueueFull is returned when the queue cannot take another analysis
	ErrQueueFull = errors.New("analysis queue is full")
	// ErrPoolStopped is returned when enqueueing on a pool that is not running
	ErrPoolStopped = errors.New("worker pool is not running")
)

// Runner executes one queued analysis
type Runner interface {
	Execute(ctx context.Context, analysisID string) error
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, analysisID string) error

// Execute calls f
func (f RunnerFunc) Execute(ctx context.Context, analysisID string) error {
	return f(ctx, analysisID)
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size    int
	runner  Runner
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	queue   chan string
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	running bool
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	queueSize int,
	runner Runner,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan string, queueSize),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("worker pool already started")
	}
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}

	p.logger.Info("starting worker pool", zap.Int("size", p.size), zap.Int("queue_size", cap(p.queue)))

	// Create and start workers
	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}
	p.running = true

	// Start health monitor
	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Enqueue queues an analysis without blocking
func (p *Pool) Enqueue(ctx context.Context, analysisID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return ErrPoolStopped
	}

	select {
	case p.queue <- analysisID:
		p.metrics.SetQueueDepth(len(p.queue))
		p.logger.Debug("analysis queued",
			zap.String("analysis_id", analysisID),
			zap.Int("depth", len(p.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of analyses waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Shutdown gracefully shuts down the worker pool. Analyses still queued
// are left in the submitted state.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	// Stop health monitor
	p.health.Stop()

	// Cancel context to signal workers to stop
	p.cancel()

	// Wait for all workers to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if n := len(p.queue); n > 0 {
			p.logger.Warn("analyses left in queue", zap.Int("count", n))
		}
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case analysisID := <-w.pool.queue:
			if ctx.Err() != nil {
				// lost the race with shutdown, leave the analysis queued
				select {
				case w.pool.queue <- analysisID:
				default:
				}
				continue
			}
			w.pool.metrics.SetQueueDepth(len(w.pool.queue))
			w.execute(ctx, analysisID)
		}
	}
}

// execute runs one analysis through the runner
func (w *worker) execute(ctx context.Context, analysisID string) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer w.setStatus(WorkerStatusIdle)

	w.pool.logger.Info("executing analysis",
		zap.String("worker_id", w.id),
		zap.String("analysis_id", analysisID))

	startTime := time.Now()
	err := w.pool.runner.Execute(ctx, analysisID)
	duration := time.Since(startTime)

	if err != nil {
		w.pool.logger.Warn("analysis execution ended with error",
			zap.String("worker_id", w.id),
			zap.String("analysis_id", analysisID),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("analysis execution completed",
		zap.String("worker_id", w.id),
		zap.String("analysis_id", analysisID),
		zap.Duration("duration", duration))
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}
