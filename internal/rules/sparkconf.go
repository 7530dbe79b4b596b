package rules

import "fmt"

// ExecutorConfig is a recommended executor shape
type ExecutorConfig struct {
	Memory string `json:"executor_memory" yaml:"executor_memory"`
	Cores  int    `json:"executor_cores" yaml:"executor_cores"`
}

// ExecutorSizing recommends executor memory and cores for the data size
func ExecutorSizing(sizeGB float64) ExecutorConfig {
	switch {
	case sizeGB < 10:
		return ExecutorConfig{Memory: "4g", Cores: 4}
	case sizeGB < 100:
		return ExecutorConfig{Memory: "16g", Cores: 8}
	default:
		return ExecutorConfig{Memory: "32g", Cores: 16}
	}
}

// ShufflePartitions recommends spark.sql.shuffle.partitions for the row
// count, clamped to [100, 10000].
func ShufflePartitions(rows int64) int {
	n := rows / 100_000
	if n > 10_000 {
		n = 10_000
	}
	if n < 100 {
		n = 100
	}
	return int(n)
}

// BroadcastLimitMB is the largest table size broadcast in joins
const BroadcastLimitMB = 500

// Broadcast is a broadcast join recommendation
type Broadcast struct {
	Threshold       string `json:"broadcast_threshold" yaml:"broadcast_threshold"`
	ShouldBroadcast bool   `json:"should_broadcast" yaml:"should_broadcast"`
}

// BroadcastThreshold recommends the auto broadcast join threshold for a table
func BroadcastThreshold(tableSizeMB int64) Broadcast {
	limit := tableSizeMB
	if limit > BroadcastLimitMB {
		limit = BroadcastLimitMB
	}
	return Broadcast{
		Threshold:       fmt.Sprintf("%dmb", limit),
		ShouldBroadcast: tableSizeMB < BroadcastLimitMB,
	}
}
