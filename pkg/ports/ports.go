// Package ports declares the interfaces the orchestration service depends
// on. Adapters under pkg/adapters implement them.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

var (
	// ErrNotFound is returned by stores when no record matches
	ErrNotFound = errors.New("not found")
	// ErrAlreadyTerminal is returned when acting on a finished analysis
	ErrAlreadyTerminal = errors.New("analysis already in terminal state")
)

// AnalysisStore persists analysis records
type AnalysisStore interface {
	Save(ctx context.Context, analysis *domain.Analysis) error
	Get(ctx context.Context, id string) (*domain.Analysis, error)
	// ListByJob returns the analyses of a job, oldest first
	ListByJob(ctx context.Context, jobID string) ([]*domain.Analysis, error)
	Delete(ctx context.Context, id string) error
	// Prune removes terminal analyses submitted before the cutoff
	Prune(ctx context.Context, before time.Time) (int, error)
}

// TopicAnalysisEvents carries the lifecycle and step events of analyses
const TopicAnalysisEvents = "analysis.events"

// EventHandler processes an event delivered by the bus
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes analysis events to subscribers
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe registers handler until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records service metrics
type MetricsCollector interface {
	RecordAnalysisSubmitted(mode string)
	RecordAnalysisCompleted(status string, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
	SetActiveAnalyses(count int)
}

// Advisor produces free-form recommendations from the findings of a run
type Advisor interface {
	Advise(ctx context.Context, state domain.JobState) ([]string, error)
}
