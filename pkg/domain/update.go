package domain

import (
	"slices"
	"time"
)

// Field identifies a mergeable JobState field in an Update's set-mask
type Field uint32

const (
	FieldJobName Field = 1 << iota
	FieldSourceType
	FieldTableName
	FieldSchema
	FieldPartitionCount
	FieldPartitionStrategy
	FieldPartitionSizes
	FieldSkewedColumns
	FieldSkewRatio
	FieldExecutionTime
	FieldCPUUtilization
	FieldMemoryUsed
	FieldRecommendations
	FieldIssues
	FieldUpdatedAt
)

// Update is the contribution a step returns. Only fields explicitly set
// through its setters take part in the merge; everything else keeps the
// value already present in the running state.
//
// JobID and CreatedAt have no setter: they cannot be changed by a step.
type Update struct {
	set    Field
	values JobState
}

// NewUpdate returns an empty contribution
func NewUpdate() *Update {
	return &Update{}
}

// Replace returns a contribution that sets every overwritable field of s.
// Accumulator entries are not carried over; they are only ever added with
// Recommend and Report.
func Replace(s JobState) *Update {
	u := &Update{values: s.Clone()}
	u.values.Recommendations = nil
	u.values.Issues = nil
	for _, f := range Fields {
		if f.Kind == Overwrite {
			u.set |= f.Field
		}
	}
	return u
}

// Has reports whether the field was explicitly set
func (u *Update) Has(f Field) bool {
	return u != nil && u.set&f != 0
}

// Empty reports whether the update changes nothing
func (u *Update) Empty() bool {
	return u == nil || u.set == 0
}

func (u *Update) mark(f Field) *Update {
	u.set |= f
	return u
}

func (u *Update) SetJobName(name string) *Update {
	u.values.JobName = name
	return u.mark(FieldJobName)
}

func (u *Update) SetSourceType(t SourceType) *Update {
	u.values.SourceType = t
	return u.mark(FieldSourceType)
}

func (u *Update) SetTableName(name string) *Update {
	u.values.TableName = name
	return u.mark(FieldTableName)
}

func (u *Update) SetSchema(schema SchemaInfo) *Update {
	u.values.Schema = schema.clone()
	return u.mark(FieldSchema)
}

func (u *Update) SetPartitionCount(n int) *Update {
	u.values.PartitionCount = n
	return u.mark(FieldPartitionCount)
}

func (u *Update) SetPartitionStrategy(strategy PartitionStrategy) *Update {
	u.values.PartitionStrategy = strategy
	return u.mark(FieldPartitionStrategy)
}

func (u *Update) SetPartitionSizes(sizes []int64) *Update {
	u.values.PartitionSizes = slices.Clone(sizes)
	return u.mark(FieldPartitionSizes)
}

func (u *Update) SetSkewedColumns(columns []string) *Update {
	u.values.SkewedColumns = slices.Clone(columns)
	return u.mark(FieldSkewedColumns)
}

func (u *Update) SetSkewRatio(ratio float64) *Update {
	u.values.SkewRatio = ratio
	return u.mark(FieldSkewRatio)
}

func (u *Update) SetExecutionTime(ms int64) *Update {
	u.values.ExecutionTimeMs = ms
	return u.mark(FieldExecutionTime)
}

func (u *Update) SetCPUUtilization(ratio float64) *Update {
	u.values.CPUUtilization = ratio
	return u.mark(FieldCPUUtilization)
}

func (u *Update) SetMemoryUsed(mb int64) *Update {
	u.values.MemoryUsedMB = mb
	return u.mark(FieldMemoryUsed)
}

// Touch records when the contribution was produced
func (u *Update) Touch(t time.Time) *Update {
	u.values.UpdatedAt = t
	return u.mark(FieldUpdatedAt)
}

// Recommend appends recommendations in order
func (u *Update) Recommend(recommendations ...string) *Update {
	if len(recommendations) == 0 {
		return u
	}
	u.values.Recommendations = append(u.values.Recommendations, recommendations...)
	return u.mark(FieldRecommendations)
}

// Report appends issues in order
func (u *Update) Report(issues ...Issue) *Update {
	if len(issues) == 0 {
		return u
	}
	u.values.Issues = append(u.values.Issues, issues...)
	return u.mark(FieldIssues)
}

// ReportIssue is a shorthand for Report with a single issue
func (u *Update) ReportIssue(issueType string, severity Severity, description string) *Update {
	return u.Report(Issue{Type: issueType, Severity: severity, Description: description})
}

// Recommendations returns the recommendations carried by the update
func (u *Update) Recommendations() []string {
	if u == nil {
		return nil
	}
	return u.values.Recommendations
}

// Issues returns the issues carried by the update
func (u *Update) Issues() []Issue {
	if u == nil {
		return nil
	}
	return u.values.Issues
}
