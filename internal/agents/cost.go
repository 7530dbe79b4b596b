package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// Cost model rates, per second of execution
const (
	CPUCostPerSecond      = 0.10
	MemoryCostPerGBSecond = 0.05
	SavingsPercent        = 30
)

// EstimateCost prices a run from its CPU utilization, duration and memory
func EstimateCost(state domain.JobState) float64 {
	seconds := float64(state.ExecutionTimeMs) / 1000
	cpu := state.CPUUtilization * seconds * CPUCostPerSecond
	memory := float64(state.MemoryUsedMB) / 1024 * seconds * MemoryCostPerGBSecond
	return cpu + memory
}

// NewCostAgent creates the agent estimating cost savings
func NewCostAgent(opts ...Option) *Agent {
	var a *Agent
	a = New(CostAgentName, "cost", func(_ context.Context, state domain.JobState, out *domain.Update) error {
		total := EstimateCost(state)
		savings := total * SavingsPercent / 100

		out.Recommend(fmt.Sprintf("Estimated cost savings: $%.2f (%d%%)", savings, SavingsPercent))
		a.logger.Info("cost analysis completed",
			zap.String("job_id", state.JobID),
			zap.Float64("estimated_cost", total),
			zap.Float64("estimated_savings", savings))
		return nil
	}, opts...)
	return a
}
