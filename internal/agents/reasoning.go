package agents

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// NewReasoningAgent creates the agent asking an advisor for further
// recommendations based on everything found so far
func NewReasoningAgent(advisor ports.Advisor, opts ...Option) *Agent {
	var a *Agent
	a = New(ReasoningAgentName, "reasoning", func(ctx context.Context, state domain.JobState, out *domain.Update) error {
		if advisor == nil {
			return errors.New("no advisor configured")
		}

		advice, err := advisor.Advise(ctx, state)
		if err != nil {
			return fmt.Errorf("advisor: %w", err)
		}

		out.Recommend(advice...)
		a.logger.Info("advice received",
			zap.String("job_id", state.JobID),
			zap.Int("recommendations", len(advice)))
		return nil
	}, opts...)
	return a
}
