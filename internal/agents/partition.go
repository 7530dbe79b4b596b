package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/rules"
	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// Partition count bounds
const (
	MinPartitions = 10
	MaxPartitions = 1000
)

// NewPartitionAgent creates the agent classifying the partition layout
func NewPartitionAgent(opts ...Option) *Agent {
	var a *Agent
	a = New(PartitionAgentName, "partition", func(_ context.Context, state domain.JobState, out *domain.Update) error {
		count := state.PartitionCount

		var strategy domain.PartitionStrategy
		switch {
		case count == 0:
			out.ReportIssue("partition", domain.SeverityWarning, "No partition information available")
			strategy = domain.PartitionUnpartitioned
		case count < MinPartitions:
			out.Recommend("Increase partition count for better parallelism")
			strategy = domain.PartitionUnderPartitioned
		case count > MaxPartitions:
			out.Recommend("Consider reducing partition count to avoid overhead")
			strategy = domain.PartitionOverPartitioned
		default:
			strategy = domain.PartitionOptimal
		}
		out.SetPartitionStrategy(strategy)

		if state.Schema.Known() {
			out.Recommend(rules.PartitionStrategyHints(state.Schema)...)
		}

		a.logger.Info("partition strategy identified",
			zap.String("job_id", state.JobID),
			zap.Int("partition_count", count),
			zap.String("strategy", string(strategy)))
		return nil
	}, opts...)
	return a
}
