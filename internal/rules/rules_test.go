package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

func TestOptimalPartitionCount(t *testing.T) {
	tests := []struct {
		name       string
		partitions int
		rows       int64
		optimal    bool
		message    string
	}{
		{"exact", 10, 10_000_000, true, "Partition count is optimal"},
		{"within tolerance", 12, 10_000_000, true, "Partition count is optimal"},
		{"too few", 5, 10_000_000, false, "Optimal partition count is 10"},
		{"too many", 13, 10_000_000, false, "Optimal partition count is 10"},
		{"small table floors at one", 1, 500, true, "Partition count is optimal"},
		{"small table with many partitions", 200, 500, false, "Optimal partition count is 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := OptimalPartitionCount(tt.partitions, tt.rows)
			assert.Equal(t, tt.optimal, ok)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestPartitionStrategyHints(t *testing.T) {
	schema := domain.SchemaInfo{Columns: []domain.Column{
		{Name: "event_date", Type: "date"},
		{Name: "Region", Type: "string"},
	}}
	assert.Equal(t, []string{"Consider date-based partitioning", "Consider geographic partitioning"}, PartitionStrategyHints(schema))

	plain := domain.SchemaInfo{Columns: []domain.Column{{Name: "id", Type: "bigint"}}}
	assert.Empty(t, PartitionStrategyHints(plain))
}

func TestDetectSkew(t *testing.T) {
	assert.Zero(t, DetectSkew(nil))
	assert.Zero(t, DetectSkew([]int64{0, 0}))
	assert.Zero(t, DetectSkew([]int64{10, 10, 10}))
	assert.InDelta(t, 0.5, DetectSkew([]int64{100, 0}), 1e-9)
	assert.InDelta(t, 0.6, DetectSkew([]int64{100, 20, 20, 20, 40}), 1e-9)
}

func TestMitigationStrategies(t *testing.T) {
	assert.Equal(t, []string{"No significant skew detected"}, MitigationStrategies(0.1))
	assert.Len(t, MitigationStrategies(0.2), 2)
	assert.Contains(t, MitigationStrategies(0.4), "Use salting for join operations")
	assert.Len(t, MitigationStrategies(0.5), 3)
}

func TestExecutorSizing(t *testing.T) {
	assert.Equal(t, ExecutorConfig{Memory: "4g", Cores: 4}, ExecutorSizing(2.5))
	assert.Equal(t, ExecutorConfig{Memory: "16g", Cores: 8}, ExecutorSizing(10))
	assert.Equal(t, ExecutorConfig{Memory: "32g", Cores: 16}, ExecutorSizing(100))
}

func TestShufflePartitions(t *testing.T) {
	assert.Equal(t, 100, ShufflePartitions(1_000_000))
	assert.Equal(t, 500, ShufflePartitions(50_000_000))
	assert.Equal(t, 10_000, ShufflePartitions(5_000_000_000))
}

func TestBroadcastThreshold(t *testing.T) {
	assert.Equal(t, Broadcast{Threshold: "200mb", ShouldBroadcast: true}, BroadcastThreshold(200))
	assert.Equal(t, Broadcast{Threshold: "500mb", ShouldBroadcast: false}, BroadcastThreshold(2560))
}
