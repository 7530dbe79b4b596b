package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// MetadataSource describes the table read by a job
type MetadataSource interface {
	Describe(ctx context.Context, state domain.JobState) (domain.SchemaInfo, error)
}

// SampleCatalog is a MetadataSource returning a fixed four column schema.
// It stands in for a real catalog when none is configured.
type SampleCatalog struct{}

// Describe returns the sample schema
func (SampleCatalog) Describe(context.Context, domain.JobState) (domain.SchemaInfo, error) {
	return domain.SchemaInfo{
		Columns: []domain.Column{
			{Name: "id", Type: "bigint", Nullable: false},
			{Name: "name", Type: "string", Nullable: false},
			{Name: "value", Type: "double", Nullable: true},
			{Name: "timestamp", Type: "timestamp", Nullable: false},
		},
		PrimaryKey: "id",
		RowCount:   1_000_000,
		SizeGB:     2.5,
	}, nil
}

// NewMetadataAgent creates the agent collecting schema information. A nil
// source falls back to SampleCatalog.
func NewMetadataAgent(source MetadataSource, opts ...Option) *Agent {
	if source == nil {
		source = SampleCatalog{}
	}

	var a *Agent
	a = New(MetadataAgentName, "metadata", func(ctx context.Context, state domain.JobState, out *domain.Update) error {
		schema, err := source.Describe(ctx, state)
		if err != nil {
			return fmt.Errorf("describe table %q: %w", state.TableName, err)
		}

		out.SetSchema(schema)
		a.logger.Info("schema collected",
			zap.String("job_id", state.JobID),
			zap.Int("columns", len(schema.Columns)),
			zap.Int64("row_count", schema.RowCount))
		return nil
	}, opts...)
	return a
}
