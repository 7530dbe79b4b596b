// Package retention prunes finished analyses from the store on a cron
// schedule.
package retention

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// schedules accept five-field expressions and descriptors such as @hourly
var scheduleParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ParseSchedule parses a UTC cron expression
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("retention schedule is required")
	}
	if strings.Contains(strings.ToUpper(clean), "TZ=") {
		return nil, fmt.Errorf("retention schedule must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := scheduleParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule: %w", err)
	}
	return schedule, nil
}

// Sweeper removes terminal analyses older than the TTL
type Sweeper struct {
	store    ports.AnalysisStore
	ttl      time.Duration
	schedule cron.Schedule
	logger   *zap.Logger
	now      func() time.Time

	cron *cron.Cron
}

// NewSweeper creates a sweeper running on the given schedule
func NewSweeper(store ports.AnalysisStore, expr string, ttl time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("retention TTL must be positive")
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		store:    store,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start schedules the sweep
func (s *Sweeper) Start() {
	s.cron = cron.New(cron.WithLocation(time.UTC))
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
		}
	}))
	s.cron.Start()

	s.logger.Info("retention sweeper started",
		zap.Duration("ttl", s.ttl),
		zap.Time("next_run", s.schedule.Next(s.now().UTC())))
}

// Stop stops scheduling and waits for a running sweep to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("retention sweeper stop: %w", ctx.Err())
	}
}

// Sweep prunes once and returns the number of removed analyses
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)

	n, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune analyses: %w", err)
	}

	if n > 0 {
		s.logger.Info("pruned analyses",
			zap.Int("count", n),
			zap.Time("cutoff", cutoff))
	}
	return n, nil
}
