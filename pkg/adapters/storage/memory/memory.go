package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// AnalysisStore implements ports.AnalysisStore using in-memory maps.
// Records are copied on the way in and out.
type AnalysisStore struct {
	analyses map[string]*domain.Analysis
	byJob    map[string][]string
	mu       sync.RWMutex
}

// NewAnalysisStore creates a new in-memory analysis store
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{
		analyses: make(map[string]*domain.Analysis),
		byJob:    make(map[string][]string),
	}
}

// Save inserts or replaces an analysis
func (s *AnalysisStore) Save(ctx context.Context, analysis *domain.Analysis) error {
	if analysis == nil || analysis.ID == "" {
		return fmt.Errorf("analysis id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.analyses[analysis.ID]; !exists {
		s.byJob[analysis.JobID] = append(s.byJob[analysis.JobID], analysis.ID)
	}
	s.analyses[analysis.ID] = analysis.Clone()
	return nil
}

// Get retrieves an analysis by id
func (s *AnalysisStore) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, ports.ErrNotFound)
	}
	return a.Clone(), nil
}

// ListByJob returns the analyses of a job, oldest first
func (s *AnalysisStore) ListByJob(ctx context.Context, jobID string) ([]*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byJob[jobID]
	out := make([]*domain.Analysis, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.analyses[id]; ok {
			out = append(out, a.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// Delete removes an analysis
func (s *AnalysisStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(id)
	return nil
}

// Prune removes terminal analyses submitted before the cutoff
func (s *AnalysisStore) Prune(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []string
	for id, a := range s.analyses {
		if a.Status.Terminal() && a.SubmittedAt.Before(before) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		s.deleteLocked(id)
	}
	return len(stale), nil
}

func (s *AnalysisStore) deleteLocked(id string) {
	a, ok := s.analyses[id]
	if !ok {
		return
	}
	delete(s.analyses, id)

	ids := s.byJob[a.JobID]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byJob, a.JobID)
	} else {
		s.byJob[a.JobID] = ids
	}
}

var _ ports.AnalysisStore = (*AnalysisStore)(nil)
