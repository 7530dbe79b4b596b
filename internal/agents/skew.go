package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/rules"
	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// DefaultSkewThreshold is the skew ratio above which a job is reported as skewed
const DefaultSkewThreshold = 0.3

// NewSkewAgent creates the agent detecting data skew. The ratio is computed
// from the partition sizes when they are known, otherwise the reported ratio
// is used. A threshold <= 0 selects DefaultSkewThreshold.
func NewSkewAgent(threshold float64, opts ...Option) *Agent {
	if threshold <= 0 {
		threshold = DefaultSkewThreshold
	}

	var a *Agent
	a = New(SkewAgentName, "skew", func(_ context.Context, state domain.JobState, out *domain.Update) error {
		ratio := state.SkewRatio
		if len(state.PartitionSizes) > 0 {
			ratio = rules.DetectSkew(state.PartitionSizes)
			out.SetSkewRatio(ratio)
		}

		if ratio > threshold {
			out.ReportIssue("skew", domain.SeverityWarning, fmt.Sprintf("Data skew detected: %.2f%%", ratio*100))
			out.SetSkewedColumns(skewCandidates(state.Schema))
			out.Recommend(
				"Use salting technique for join operations",
				"Consider repartitioning with hash distribution",
				"Use skew-aware aggregation strategies",
			)
		}

		a.logger.Info("skew analysis completed",
			zap.String("job_id", state.JobID),
			zap.Float64("skew_ratio", ratio),
			zap.Bool("skewed", ratio > threshold))
		return nil
	}, opts...)
	return a
}

// skewCandidates lists the columns most likely to concentrate keys: the
// primary key and time columns.
func skewCandidates(schema domain.SchemaInfo) []string {
	columns := []string{}
	if schema.PrimaryKey != "" {
		columns = append(columns, schema.PrimaryKey)
	}
	for _, c := range schema.Columns {
		if c.Name == schema.PrimaryKey {
			continue
		}
		t := strings.ToLower(c.Type)
		if t == "timestamp" || t == "date" {
			columns = append(columns, c.Name)
		}
	}
	return columns
}
