package domain

import (
	"slices"
	"time"
)

// SourceType identifies where the analyzed job reads its data from
type SourceType string

const (
	SourceParquet SourceType = "parquet"
	SourceDelta   SourceType = "delta"
	SourceJDBC    SourceType = "jdbc"
	SourceKafka   SourceType = "kafka"
	SourceFile    SourceType = "file"
	SourceAPI     SourceType = "api"
)

// Valid reports whether the source type is one of the known tags
func (s SourceType) Valid() bool {
	switch s {
	case SourceParquet, SourceDelta, SourceJDBC, SourceKafka, SourceFile, SourceAPI:
		return true
	}
	return false
}

// PartitionStrategy classifies the partition layout of a job.
// The zero value means no step has classified it yet.
type PartitionStrategy string

const (
	PartitionUnset            PartitionStrategy = ""
	PartitionUnpartitioned    PartitionStrategy = "unpartitioned"
	PartitionUnderPartitioned PartitionStrategy = "under-partitioned"
	PartitionOverPartitioned  PartitionStrategy = "over-partitioned"
	PartitionOptimal          PartitionStrategy = "optimal"
)

// Severity of a detected issue
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is a structured finding recorded by an analysis step
type Issue struct {
	Type        string   `json:"type" yaml:"type"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Description string   `json:"description" yaml:"description"`
}

// Column describes a single column of the analyzed table
type Column struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
}

// SchemaInfo describes the table read by the job
type SchemaInfo struct {
	Columns    []Column `json:"columns" yaml:"columns"`
	PrimaryKey string   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	RowCount   int64    `json:"row_count" yaml:"row_count"`
	SizeGB     float64  `json:"size_gb" yaml:"size_gb"`
}

// Known reports whether any schema information has been collected
func (s SchemaInfo) Known() bool {
	return len(s.Columns) > 0 || s.RowCount > 0 || s.SizeGB > 0
}

func (s SchemaInfo) clone() SchemaInfo {
	s.Columns = slices.Clone(s.Columns)
	return s
}

// JobState is the record threaded through every analysis step of a run.
//
// Recommendations and Issues are accumulators: steps only ever append to
// them. Every other field is last-write-wins. JobID and CreatedAt are fixed
// when the state is created.
type JobState struct {
	JobID      string     `json:"job_id" yaml:"job_id"`
	JobName    string     `json:"job_name" yaml:"job_name"`
	SourceType SourceType `json:"source_type" yaml:"source_type"`

	TableName string     `json:"table_name,omitempty" yaml:"table_name,omitempty"`
	Schema    SchemaInfo `json:"schema_info" yaml:"schema_info"`

	PartitionCount    int               `json:"partition_count" yaml:"partition_count"`
	PartitionStrategy PartitionStrategy `json:"partition_strategy,omitempty" yaml:"partition_strategy,omitempty"`
	PartitionSizes    []int64           `json:"partition_sizes,omitempty" yaml:"partition_sizes,omitempty"`
	SkewedColumns     []string          `json:"skewed_columns" yaml:"skewed_columns"`
	SkewRatio         float64           `json:"skew_ratio" yaml:"skew_ratio"`

	ExecutionTimeMs int64   `json:"execution_time_ms" yaml:"execution_time_ms"`
	CPUUtilization  float64 `json:"cpu_utilization" yaml:"cpu_utilization"`
	MemoryUsedMB    int64   `json:"memory_used_mb" yaml:"memory_used_mb"`

	Recommendations []string `json:"recommendations" yaml:"recommendations"`
	Issues          []Issue  `json:"issues_detected" yaml:"issues_detected"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// JobSpec carries the observed metrics a caller submits for analysis
type JobSpec struct {
	JobID           string     `json:"job_id" yaml:"job_id" binding:"required"`
	JobName         string     `json:"job_name" yaml:"job_name"`
	SourceType      SourceType `json:"source_type" yaml:"source_type"`
	TableName       string     `json:"table_name" yaml:"table_name"`
	PartitionCount  int        `json:"partition_count" yaml:"partition_count"`
	PartitionSizes  []int64    `json:"partition_sizes" yaml:"partition_sizes"`
	SkewRatio       float64    `json:"skew_ratio" yaml:"skew_ratio"`
	ExecutionTimeMs int64      `json:"execution_time_ms" yaml:"execution_time_ms"`
	CPUUtilization  float64    `json:"cpu_utilization" yaml:"cpu_utilization"`
	MemoryUsedMB    int64      `json:"memory_used_mb" yaml:"memory_used_mb"`
}

// NewJobState creates a fully defaulted state for the given job
func NewJobState(spec JobSpec, now time.Time) JobState {
	return JobState{
		JobID:           spec.JobID,
		JobName:         spec.JobName,
		SourceType:      spec.SourceType,
		TableName:       spec.TableName,
		PartitionCount:  spec.PartitionCount,
		PartitionSizes:  slices.Clone(spec.PartitionSizes),
		SkewedColumns:   []string{},
		SkewRatio:       spec.SkewRatio,
		ExecutionTimeMs: spec.ExecutionTimeMs,
		CPUUtilization:  spec.CPUUtilization,
		MemoryUsedMB:    spec.MemoryUsedMB,
		Recommendations: []string{},
		Issues:          []Issue{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy of the state
func (s JobState) Clone() JobState {
	s.Schema = s.Schema.clone()
	s.PartitionSizes = slices.Clone(s.PartitionSizes)
	s.SkewedColumns = slices.Clone(s.SkewedColumns)
	s.Recommendations = slices.Clone(s.Recommendations)
	s.Issues = slices.Clone(s.Issues)
	return s
}

// IssuesBySeverity counts issues of the given severity
func (s JobState) IssuesBySeverity(severity Severity) int {
	n := 0
	for _, issue := range s.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// OptimizationScore rates the job between 0 and 1, lowered by every
// warning and error found during analysis.
func (s JobState) OptimizationScore() float64 {
	score := 1.0 - 0.05*float64(s.IssuesBySeverity(SeverityWarning)) - 0.15*float64(s.IssuesBySeverity(SeverityError))
	if score < 0 {
		return 0
	}
	return score
}
