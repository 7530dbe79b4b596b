package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidSpec is returned for job specs that cannot be analyzed
var ErrInvalidSpec = errors.New("invalid job spec")

// Defaults applied to specs that leave them out
const (
	DefaultSourceType = SourceParquet
	DefaultTableName  = "unknown"
)

// Validate checks the spec for values no analysis can make sense of
func (s JobSpec) Validate() error {
	var errs []error
	if s.JobID == "" {
		errs = append(errs, errors.New("job_id is required"))
	}
	if s.SourceType != "" && !s.SourceType.Valid() {
		errs = append(errs, fmt.Errorf("unknown source_type %q", s.SourceType))
	}
	if s.PartitionCount < 0 {
		errs = append(errs, errors.New("partition_count must not be negative"))
	}
	if s.ExecutionTimeMs < 0 {
		errs = append(errs, errors.New("execution_time_ms must not be negative"))
	}
	if s.MemoryUsedMB < 0 {
		errs = append(errs, errors.New("memory_used_mb must not be negative"))
	}
	if s.CPUUtilization < 0 || s.CPUUtilization > 1 {
		errs = append(errs, errors.New("cpu_utilization must be between 0 and 1"))
	}
	if s.SkewRatio < 0 || s.SkewRatio > 1 {
		errs = append(errs, errors.New("skew_ratio must be between 0 and 1"))
	}
	for i, size := range s.PartitionSizes {
		if size < 0 {
			errs = append(errs, fmt.Errorf("partition_sizes[%d] must not be negative", i))
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, errors.Join(errs...))
	}
	return nil
}

// WithDefaults fills the source type and table name when they are missing
func (s JobSpec) WithDefaults() JobSpec {
	if s.SourceType == "" {
		s.SourceType = DefaultSourceType
	}
	if s.TableName == "" {
		s.TableName = DefaultTableName
	}
	return s
}
