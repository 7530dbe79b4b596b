package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/rules"
	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// NewMitigationAgent creates the agent proposing skew remedies scaled to the
// measured skew ratio
func NewMitigationAgent(opts ...Option) *Agent {
	var a *Agent
	a = New(MitigationAgentName, "skew", func(_ context.Context, state domain.JobState, out *domain.Update) error {
		strategies := rules.MitigationStrategies(state.SkewRatio)
		out.Recommend(strategies...)

		a.logger.Info("skew mitigation proposed",
			zap.String("job_id", state.JobID),
			zap.Float64("skew_ratio", state.SkewRatio),
			zap.Int("strategies", len(strategies)))
		return nil
	}, opts...)
	return a
}
