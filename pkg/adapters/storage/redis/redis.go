package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

const (
	analysisKeyPrefix = "sparkcopilot:analysis:"
	jobKeyPrefix      = "sparkcopilot:job:"
)

// AnalysisStore implements ports.AnalysisStore using Redis. Each analysis
// is a JSON string with a TTL; a sorted set per job indexes its analyses by
// submission time.
type AnalysisStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewAnalysisStore creates a new Redis analysis store. A zero ttl keeps
// records until they are pruned.
func NewAnalysisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *AnalysisStore {
	return &AnalysisStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save inserts or replaces an analysis
func (s *AnalysisStore) Save(ctx context.Context, analysis *domain.Analysis) error {
	if analysis == nil || analysis.ID == "" {
		return fmt.Errorf("analysis id is required")
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	jobKey := getJobKey(analysis.JobID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, getAnalysisKey(analysis.ID), data, s.ttl)
		pipe.ZAdd(ctx, jobKey, redis.Z{
			Score:  float64(analysis.SubmittedAt.UnixNano()),
			Member: analysis.ID,
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, jobKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	s.logger.Debug("analysis saved",
		zap.String("analysis_id", analysis.ID),
		zap.String("status", string(analysis.Status)))
	return nil
}

// Get retrieves an analysis by id
func (s *AnalysisStore) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	data, err := s.client.Get(ctx, getAnalysisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("analysis %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	var analysis domain.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	return &analysis, nil
}

// ListByJob returns the analyses of a job, oldest first. Index entries whose
// record has expired are dropped from the index.
func (s *AnalysisStore) ListByJob(ctx context.Context, jobID string) ([]*domain.Analysis, error) {
	jobKey := getJobKey(jobID)

	ids, err := s.client.ZRange(ctx, jobKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job index: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Analysis{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = getAnalysisKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get analyses: %w", err)
	}

	analyses := make([]*domain.Analysis, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}

		var analysis domain.Analysis
		if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
			s.logger.Warn("skipping unreadable analysis",
				zap.String("analysis_id", ids[i]),
				zap.Error(err))
			continue
		}
		analyses = append(analyses, &analysis)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, jobKey, expired...).Err(); err != nil {
			s.logger.Warn("failed to clean job index", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	return analyses, nil
}

// Delete removes an analysis and its index entry
func (s *AnalysisStore) Delete(ctx context.Context, id string) error {
	analysis, err := s.Get(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.remove(ctx, analysis)
}

// Prune removes terminal analyses submitted before the cutoff
func (s *AnalysisStore) Prune(ctx context.Context, before time.Time) (int, error) {
	var cursor uint64
	removed := 0

	for {
		keys, next, err := s.client.Scan(ctx, cursor, analysisKeyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range keys {
			analysis, err := s.Get(ctx, key[len(analysisKeyPrefix):])
			if err != nil {
				continue
			}
			if !analysis.Status.Terminal() || !analysis.SubmittedAt.Before(before) {
				continue
			}
			if err := s.remove(ctx, analysis); err != nil {
				return removed, err
			}
			removed++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Debug("analyses pruned", zap.Int("removed", removed))
	return removed, nil
}

func (s *AnalysisStore) remove(ctx context.Context, analysis *domain.Analysis) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, getAnalysisKey(analysis.ID))
		pipe.ZRem(ctx, getJobKey(analysis.JobID), analysis.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	return nil
}

// getAnalysisKey returns the Redis key for an analysis record
func getAnalysisKey(id string) string {
	return analysisKeyPrefix + id
}

// getJobKey returns the Redis key of a job's analysis index
func getJobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

var _ ports.AnalysisStore = (*AnalysisStore)(nil)
