package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopMetrics struct {
	mu    sync.Mutex
	depth int
	pools int
}

func (m *nopMetrics) RecordAnalysisSubmitted(string)                {}
func (m *nopMetrics) RecordAnalysisCompleted(string, time.Duration) {}
func (m *nopMetrics) SetActiveAnalyses(int)                         {}

func (m *nopMetrics) RecordWorkerPoolStatus(int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools++
}

func (m *nopMetrics) SetQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth = depth
}

type recordingRunner struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingRunner) Execute(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func (r *recordingRunner) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func shutdown(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestPool_ExecutesQueuedAnalyses(t *testing.T) {
	runner := &recordingRunner{}
	pool := NewPool(2, 10, runner, &nopMetrics{}, zap.NewNop(), time.Hour)

	assert.ErrorIs(t, pool.Enqueue(context.Background(), "early"), ErrPoolStopped)

	require.NoError(t, pool.Start())
	defer shutdown(t, pool)
	assert.Error(t, pool.Start(), "starting twice fails")

	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, pool.Enqueue(context.Background(), id))
	}

	assert.Eventually(t, func() bool { return len(runner.executed()) == 3 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, runner.executed())
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	runner := RunnerFunc(func(ctx context.Context, id string) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	pool := NewPool(1, 1, runner, &nopMetrics{}, zap.NewNop(), time.Hour)
	require.NoError(t, pool.Start())
	defer shutdown(t, pool)

	require.NoError(t, pool.Enqueue(context.Background(), "running"))
	<-started
	require.NoError(t, pool.Enqueue(context.Background(), "queued"))
	assert.Equal(t, 1, pool.QueueDepth())

	assert.ErrorIs(t, pool.Enqueue(context.Background(), "rejected"), ErrQueueFull)

	status := pool.Health().GetStatus()
	assert.Equal(t, 1, status.BusyWorkers)
	assert.Equal(t, 1, status.QueueDepth)
	assert.True(t, status.Healthy)

	close(release)
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(3, 5, &recordingRunner{}, &nopMetrics{}, zap.NewNop(), time.Hour)
	require.NoError(t, pool.Start())
	assert.True(t, pool.Health().IsHealthy())

	shutdown(t, pool)

	status := pool.Health().GetStatus()
	assert.Equal(t, 3, status.StoppedWorkers)
	assert.False(t, status.Healthy)
	assert.ErrorIs(t, pool.Enqueue(context.Background(), "late"), ErrPoolStopped)
	assert.ErrorIs(t, pool.Start(), ErrPoolStopped)
}

func TestPool_ShutdownTimeout(t *testing.T) {
	started := make(chan struct{})
	runner := RunnerFunc(func(context.Context, string) error {
		close(started)
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	pool := NewPool(1, 1, runner, &nopMetrics{}, zap.NewNop(), time.Hour)
	require.NoError(t, pool.Start())
	require.NoError(t, pool.Enqueue(context.Background(), "slow"))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorContains(t, pool.Shutdown(ctx), "shutdown timeout")
}

func TestHealthMonitor_RecordsMetrics(t *testing.T) {
	metrics := &nopMetrics{}
	pool := NewPool(1, 1, &recordingRunner{}, metrics, zap.NewNop(), 5*time.Millisecond)
	require.NoError(t, pool.Start())
	defer shutdown(t, pool)

	assert.Eventually(t, func() bool {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return metrics.pools > 0
	}, time.Second, 5*time.Millisecond)
}

func TestHealthMonitor_NotStarted(t *testing.T) {
	pool := NewPool(2, 1, &recordingRunner{}, &nopMetrics{}, zap.NewNop(), time.Hour)
	assert.False(t, pool.Health().IsHealthy(), "a pool without running workers is unhealthy")
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		workers   map[string]WorkerStatus
		depth     int
		healthy   bool
		saturated bool
	}{
		{"no workers", nil, 0, false, false},
		{"all idle", map[string]WorkerStatus{"w0": WorkerStatusIdle, "w1": WorkerStatusIdle}, 0, true, false},
		{"busy with full queue", map[string]WorkerStatus{"w0": WorkerStatusBusy}, 4, true, true},
		{"one stopped", map[string]WorkerStatus{"w0": WorkerStatusBusy, "w1": WorkerStatusStopped}, 1, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := summarize(tt.workers, tt.depth, 4, now)
			assert.Equal(t, len(tt.workers), s.TotalWorkers)
			assert.Equal(t, tt.healthy, s.Healthy)
			assert.Equal(t, tt.saturated, s.Saturated)
			assert.Equal(t, s.TotalWorkers, s.IdleWorkers+s.BusyWorkers+s.StoppedWorkers)
			assert.Equal(t, now, s.Timestamp)
		})
	}
}
