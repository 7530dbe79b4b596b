package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthStatus is a snapshot of the worker pool
type HealthStatus struct {
	TotalWorkers   int `json:"total_workers"`
	IdleWorkers    int `json:"idle_workers"`
	BusyWorkers    int `json:"busy_workers"`
	StoppedWorkers int `json:"stopped_workers"`
	QueueDepth     int `json:"queue_depth"`
	QueueCapacity  int `json:"queue_capacity"`

	// Healthy holds while the pool has workers and none has stopped
	Healthy bool `json:"healthy"`
	// Saturated reports a full queue; new submissions are rejected
	Saturated bool      `json:"saturated"`
	Timestamp time.Time `json:"timestamp"`
}

// summarize folds per-worker statuses into a pool snapshot
func summarize(workers map[string]WorkerStatus, depth, capacity int, now time.Time) *HealthStatus {
	s := &HealthStatus{
		TotalWorkers:  len(workers),
		QueueDepth:    depth,
		QueueCapacity: capacity,
		Saturated:     capacity > 0 && depth >= capacity,
		Timestamp:     now,
	}
	for _, status := range workers {
		switch status {
		case WorkerStatusIdle:
			s.IdleWorkers++
		case WorkerStatusBusy:
			s.BusyWorkers++
		case WorkerStatusStopped:
			s.StoppedWorkers++
		}
	}
	s.Healthy = s.TotalWorkers > 0 && s.StoppedWorkers == 0
	return s
}

// HealthMonitor periodically publishes pool status to metrics and logs
// degraded states
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
}

// NewHealthMonitor creates a monitor for pool; a non-positive interval
// disables the periodic check but GetStatus still works
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic checks
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil || h.interval <= 0 {
		return
	}

	h.stop = make(chan struct{})
	go h.loop(h.stop)
}

// Stop ends periodic checks
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return
	}
	close(h.stop)
	h.stop = nil
}

func (h *HealthMonitor) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.check()
		}
	}
}

func (h *HealthMonitor) check() {
	status := h.GetStatus()

	h.pool.metrics.RecordWorkerPoolStatus(status.IdleWorkers, status.BusyWorkers, status.StoppedWorkers)
	h.pool.metrics.SetQueueDepth(status.QueueDepth)

	fields := []zap.Field{
		zap.Int("total", status.TotalWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("queue_depth", status.QueueDepth),
	}
	switch {
	case !status.Healthy:
		h.logger.Warn("worker pool is unhealthy", fields...)
	case status.Saturated:
		h.logger.Warn("analysis queue is full, submissions are rejected", fields...)
	case status.BusyWorkers == status.TotalWorkers:
		h.logger.Info("all workers are busy", fields...)
	default:
		h.logger.Debug("worker pool health check", fields...)
	}
}

// GetStatus returns the current status of the pool
func (h *HealthMonitor) GetStatus() *HealthStatus {
	return summarize(h.pool.GetStatus(), h.pool.QueueDepth(), cap(h.pool.queue), time.Now())
}

// IsHealthy reports whether the pool is healthy
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
