package rules

import (
	"fmt"
	"strings"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// RowsPerPartition is the target number of rows held by one partition
const RowsPerPartition = 1_000_000

// PartitionTolerance is the relative deviation from the recommended count
// still considered optimal.
const PartitionTolerance = 0.2

// OptimalPartitionCount compares a partition count with the count suggested
// by the row count. It returns whether the current count is within
// tolerance and a human readable verdict.
func OptimalPartitionCount(partitions int, rows int64) (bool, string) {
	recommended := rows / RowsPerPartition
	if recommended < 1 {
		recommended = 1
	}

	deviation := float64(int64(partitions)-recommended) / float64(recommended)
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > PartitionTolerance {
		return false, fmt.Sprintf("Optimal partition count is %d", recommended)
	}
	return true, "Partition count is optimal"
}

// PartitionStrategyHints suggests partition keys from the column layout of
// the table.
func PartitionStrategyHints(schema domain.SchemaInfo) []string {
	var hints []string
	if schemaMentions(schema, "date") {
		hints = append(hints, "Consider date-based partitioning")
	}
	if schemaMentions(schema, "region") {
		hints = append(hints, "Consider geographic partitioning")
	}
	return hints
}

func schemaMentions(schema domain.SchemaInfo, word string) bool {
	if strings.Contains(strings.ToLower(schema.PrimaryKey), word) {
		return true
	}
	for _, c := range schema.Columns {
		if strings.Contains(strings.ToLower(c.Name), word) || strings.Contains(strings.ToLower(c.Type), word) {
			return true
		}
	}
	return false
}
