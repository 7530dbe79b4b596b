package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/rules"
	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// Runtime thresholds
const (
	LongRunningMs  = 60_000
	LowCPU         = 0.5
	HighCPU        = 0.95
	HighMemoryMB   = 8192
	megabytesPerGB = 1024
)

// NewRuntimeAgent creates the agent reviewing execution metrics and Spark
// sizing
func NewRuntimeAgent(opts ...Option) *Agent {
	var a *Agent
	a = New(RuntimeAgentName, "runtime", func(_ context.Context, state domain.JobState, out *domain.Update) error {
		if state.ExecutionTimeMs > LongRunningMs {
			out.ReportIssue("runtime", domain.SeverityWarning, "Long execution time detected")
			out.Recommend(
				"Consider caching intermediate results",
				"Enable adaptive query execution",
			)
		}

		// zero means the metric was not reported
		switch cpu := state.CPUUtilization; {
		case cpu > 0 && cpu < LowCPU:
			out.Recommend("CPU utilization is low - consider reducing executor count")
		case cpu > HighCPU:
			out.Recommend("High CPU utilization - add more executors")
		}

		if state.MemoryUsedMB > HighMemoryMB {
			out.Recommend("High memory usage - consider data compression")
		}

		if state.Schema.Known() {
			executor := rules.ExecutorSizing(state.Schema.SizeGB)
			out.Recommend(
				fmt.Sprintf("Set spark.executor.memory=%s and spark.executor.cores=%d", executor.Memory, executor.Cores),
				fmt.Sprintf("Set spark.sql.shuffle.partitions=%d", rules.ShufflePartitions(state.Schema.RowCount)),
			)
			if b := rules.BroadcastThreshold(int64(state.Schema.SizeGB * megabytesPerGB)); b.ShouldBroadcast {
				out.Recommend(fmt.Sprintf("Broadcast %s in joins (spark.sql.autoBroadcastJoinThreshold=%s)", tableLabel(state), b.Threshold))
			}
		}

		a.logger.Info("runtime analysis completed",
			zap.String("job_id", state.JobID),
			zap.Int64("execution_time_ms", state.ExecutionTimeMs))
		return nil
	}, opts...)
	return a
}

func tableLabel(state domain.JobState) string {
	if state.TableName == "" {
		return "the table"
	}
	return state.TableName
}
