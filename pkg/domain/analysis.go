package domain

import "time"

// AnalysisStatus represents the lifecycle status of a job analysis
type AnalysisStatus string

const (
	AnalysisStatusSubmitted AnalysisStatus = "submitted"
	AnalysisStatusRunning   AnalysisStatus = "running"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
	AnalysisStatusCancelled AnalysisStatus = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisStatusCompleted || s == AnalysisStatusFailed || s == AnalysisStatusCancelled
}

// Analysis is the persisted record of one pipeline run over a job
type Analysis struct {
	ID          string         `json:"analysis_id"`
	JobID       string         `json:"job_id"`
	Status      AnalysisStatus `json:"status"`
	Input       JobState       `json:"input"`
	Result      *JobState      `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// EventType identifies analysis lifecycle events
type EventType string

const (
	EventTypeAnalysisSubmitted EventType = "analysis.submitted"
	EventTypeAnalysisStarted   EventType = "analysis.started"
	EventTypeAnalysisCompleted EventType = "analysis.completed"
	EventTypeAnalysisFailed    EventType = "analysis.failed"
	EventTypeAnalysisCancelled EventType = "analysis.cancelled"
	EventTypeStepStarted       EventType = "step.started"
	EventTypeStepCompleted     EventType = "step.completed"
	EventTypeStepFailed        EventType = "step.failed"
	EventTypeStepRouted        EventType = "step.routed"
)

// Event is published on the event bus while analyses progress
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	AnalysisID string                 `json:"analysis_id"`
	JobID      string                 `json:"job_id,omitempty"`
	Step       string                 `json:"step,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Clone returns a deep copy of the analysis
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	out.Input = a.Input.Clone()
	if a.Result != nil {
		result := a.Result.Clone()
		out.Result = &result
	}
	if a.StartedAt != nil {
		t := *a.StartedAt
		out.StartedAt = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
