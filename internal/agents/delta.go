package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// DeltaRecommendations are appended for jobs reading Delta Lake tables
var DeltaRecommendations = []string{
	"Enable Delta Lake Z-ordering for faster scans",
	"Run OPTIMIZE command to compact small files",
	"Configure auto-compaction for WRITE operations",
}

// NewDeltaAgent creates the agent advising on Delta Lake tables
func NewDeltaAgent(opts ...Option) *Agent {
	var a *Agent
	a = New(DeltaAgentName, "delta", func(_ context.Context, state domain.JobState, out *domain.Update) error {
		if state.SourceType != domain.SourceDelta {
			return nil
		}

		out.Recommend(DeltaRecommendations...)
		a.logger.Info("delta recommendations generated", zap.String("job_id", state.JobID))
		return nil
	}, opts...)
	return a
}
