package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/agents"
	"github.com/aescanero/sparkcopilot/internal/application/orchestrator"
	"github.com/aescanero/sparkcopilot/internal/application/workers"
	"github.com/aescanero/sparkcopilot/internal/graph"
	"github.com/aescanero/sparkcopilot/internal/pipeline"
	"github.com/aescanero/sparkcopilot/internal/rules"
	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

// JobMetrics are the observed metrics of a job run
type JobMetrics struct {
	SourceType      domain.SourceType `json:"source_type"`
	TableName       string            `json:"table_name"`
	PartitionCount  int               `json:"partition_count"`
	PartitionSizes  []int64           `json:"partition_sizes"`
	SkewRatio       float64           `json:"skew_ratio"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	CPUUtilization  float64           `json:"cpu_utilization"`
	MemoryUsedMB    int64             `json:"memory_used_mb"`
}

// JobAnalysisRequest represents a synchronous job analysis request
type JobAnalysisRequest struct {
	JobID   string     `json:"job_id" binding:"required"`
	JobName string     `json:"job_name"`
	Metrics JobMetrics `json:"metrics"`
}

// Spec converts the request to a job spec
func (r JobAnalysisRequest) Spec() domain.JobSpec {
	return domain.JobSpec{
		JobID:           r.JobID,
		JobName:         r.JobName,
		SourceType:      r.Metrics.SourceType,
		TableName:       r.Metrics.TableName,
		PartitionCount:  r.Metrics.PartitionCount,
		PartitionSizes:  r.Metrics.PartitionSizes,
		SkewRatio:       r.Metrics.SkewRatio,
		ExecutionTimeMs: r.Metrics.ExecutionTimeMs,
		CPUUtilization:  r.Metrics.CPUUtilization,
		MemoryUsedMB:    r.Metrics.MemoryUsedMB,
	}
}

// EstimatedSavings prices the improvement expected from the recommendations
type EstimatedSavings struct {
	CurrentCostUSD float64 `json:"current_cost_usd"`
	SavingsUSD     float64 `json:"savings_usd"`
	Percent        int     `json:"percent"`
}

// JobAnalysisResponse represents a job analysis response
type JobAnalysisResponse struct {
	AnalysisID        string           `json:"analysis_id"`
	JobID             string           `json:"job_id"`
	Recommendations   []string         `json:"recommendations"`
	Issues            []domain.Issue   `json:"issues_detected"`
	OptimizationScore float64          `json:"optimization_score"`
	EstimatedSavings  EstimatedSavings `json:"estimated_savings"`
}

// PartitionAnalysisRequest represents a partition analysis request
type PartitionAnalysisRequest struct {
	TableName      string   `json:"table_name" binding:"required"`
	PartitionCount int      `json:"partition_count" binding:"min=0"`
	DataSkewRatio  *float64 `json:"data_skew_ratio"`
	PartitionSizes []int64  `json:"partition_sizes"`
	RowCount       int64    `json:"row_count"`
}

// SkewAnalysisResponse represents a partition analysis response
type SkewAnalysisResponse struct {
	TableName             string   `json:"table_name"`
	IsSkewed              bool     `json:"is_skewed"`
	SkewScore             float64  `json:"skew_score"`
	RecommendedPartitions int      `json:"recommended_partitions"`
	Mitigation            []string `json:"mitigation"`
	PartitionCountOptimal *bool    `json:"partition_count_optimal,omitempty"`
	PartitionAdvice       string   `json:"partition_advice,omitempty"`
}

// AnalysisSubmitResponse represents an asynchronous submission response
type AnalysisSubmitResponse struct {
	AnalysisID  string                `json:"analysis_id"`
	JobID       string                `json:"job_id"`
	Status      domain.AnalysisStatus `json:"status"`
	SubmittedAt time.Time             `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleRoot describes the service
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  ServiceName,
		"version":  Version,
		"pipeline": "/api/v1/pipeline",
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"orchestrator": "ok"}
	status := http.StatusOK
	healthy := "healthy"

	if s.health != nil {
		workersStatus := s.health.GetStatus()
		checks["workers"] = workersStatus
		if !workersStatus.Healthy {
			status = http.StatusServiceUnavailable
			healthy = "unhealthy"
		}
	}

	c.JSON(status, gin.H{
		"status":    healthy,
		"service":   ServiceName,
		"version":   Version,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleAnalyzeJob runs the pipeline over a job and waits for the result
func (s *Server) handleAnalyzeJob(c *gin.Context) {
	var req JobAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	analysis, err := s.orchestrator.Analyze(c.Request.Context(), req.Spec())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSpec) {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		s.logger.Error("job analysis failed",
			zap.String("job_id", req.JobID),
			zap.Error(err))
		var details interface{}
		if analysis != nil {
			details = gin.H{"analysis_id": analysis.ID, "status": analysis.Status}
		}
		respondError(c, http.StatusInternalServerError, "ANALYSIS_FAILED", err.Error(), details)
		return
	}

	result := analysis.Result
	cost := agents.EstimateCost(*result)
	c.JSON(http.StatusOK, JobAnalysisResponse{
		AnalysisID:        analysis.ID,
		JobID:             analysis.JobID,
		Recommendations:   result.Recommendations,
		Issues:            result.Issues,
		OptimizationScore: result.OptimizationScore(),
		EstimatedSavings: EstimatedSavings{
			CurrentCostUSD: cost,
			SavingsUSD:     cost * agents.SavingsPercent / 100,
			Percent:        agents.SavingsPercent,
		},
	})
}

// handleAnalyzePartition evaluates partition skew of a table without
// running the pipeline
func (s *Server) handleAnalyzePartition(c *gin.Context) {
	var req PartitionAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	var score float64
	switch {
	case len(req.PartitionSizes) > 0:
		score = rules.DetectSkew(req.PartitionSizes)
	case req.DataSkewRatio != nil:
		score = *req.DataSkewRatio
	}

	threshold := s.skewThreshold
	if threshold <= 0 {
		threshold = agents.DefaultSkewThreshold
	}
	skewed := score > threshold

	recommended := req.PartitionCount
	if skewed {
		recommended = max(req.PartitionCount/2, 1)
	}

	resp := SkewAnalysisResponse{
		TableName:             req.TableName,
		IsSkewed:              skewed,
		SkewScore:             score,
		RecommendedPartitions: recommended,
		Mitigation:            rules.MitigationStrategies(score),
	}
	if req.RowCount > 0 {
		optimal, advice := rules.OptimalPartitionCount(req.PartitionCount, req.RowCount)
		resp.PartitionCountOptimal = &optimal
		resp.PartitionAdvice = advice
	}

	c.JSON(http.StatusOK, resp)
}

// handleSubmitAnalysis queues an analysis for the worker pool
func (s *Server) handleSubmitAnalysis(c *gin.Context) {
	var spec domain.JobSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	analysis, err := s.orchestrator.Submit(c.Request.Context(), spec)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSpec):
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrPoolStopped), errors.Is(err, orchestrator.ErrNoQueue):
			respondError(c, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", err.Error(), nil)
		default:
			s.logger.Error("failed to submit analysis", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "SUBMISSION_FAILED", err.Error(), nil)
		}
		return
	}

	c.JSON(http.StatusAccepted, AnalysisSubmitResponse{
		AnalysisID:  analysis.ID,
		JobID:       analysis.JobID,
		Status:      analysis.Status,
		SubmittedAt: analysis.SubmittedAt,
	})
}

// lookup fetches the analysis named by the :id parameter, writing a 404
// when it does not exist
func (s *Server) lookup(c *gin.Context) (*domain.Analysis, bool) {
	analysis, err := s.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
		} else {
			s.logger.Error("failed to get analysis", zap.String("analysis_id", c.Param("id")), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), nil)
		}
		return nil, false
	}
	return analysis, true
}

// handleGetAnalysis returns the full analysis record
func (s *Server) handleGetAnalysis(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleGetStatus returns the lifecycle fields of an analysis
func (s *Server) handleGetStatus(c *gin.Context) {
	analysis, ok := s.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis_id":  analysis.ID,
		"job_id":       analysis.JobID,
		"status":       analysis.Status,
		"error":        analysis.Error,
		"submitted_at": analysis.SubmittedAt,
		"started_at":   analysis.StartedAt,
		"completed_at": analysis.CompletedAt,
	})
}

// handleCancelAnalysis handles analysis cancellation
func (s *Server) handleCancelAnalysis(c *gin.Context) {
	analysisID := c.Param("id")

	if err := s.orchestrator.Cancel(c.Request.Context(), analysisID); err != nil {
		switch {
		case errors.Is(err, ports.ErrNotFound):
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
		case errors.Is(err, ports.ErrAlreadyTerminal):
			respondError(c, http.StatusConflict, "CANCELLATION_FAILED", err.Error(), nil)
		default:
			respondError(c, http.StatusInternalServerError, "CANCELLATION_FAILED", err.Error(), nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis_id":  analysisID,
		"status":       domain.AnalysisStatusCancelled,
		"cancelled_at": time.Now().UTC(),
	})
}

// handleListJobAnalyses lists the analyses of a job, oldest first
func (s *Server) handleListJobAnalyses(c *gin.Context) {
	jobID := c.Param("job_id")

	analyses, err := s.orchestrator.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		s.logger.Error("failed to list analyses", zap.String("job_id", jobID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":   jobID,
		"analyses": analyses,
		"total":    len(analyses),
	})
}

// handleGetRecommendations returns the findings of the latest completed
// analysis of a job
func (s *Server) handleGetRecommendations(c *gin.Context) {
	jobID := c.Param("job_id")

	analysis, err := s.orchestrator.LatestForJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "No completed analysis for job", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":             jobID,
		"analysis_id":        analysis.ID,
		"recommendations":    analysis.Result.Recommendations,
		"issues_detected":    analysis.Result.Issues,
		"optimization_score": analysis.Result.OptimizationScore(),
		"completed_at":       analysis.CompletedAt,
	})
}

// handleGetJobMetrics returns the metrics reported with the latest
// analysis of a job
func (s *Server) handleGetJobMetrics(c *gin.Context) {
	jobID := c.Param("job_id")

	analyses, err := s.orchestrator.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error(), nil)
		return
	}
	if len(analyses) == 0 {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "No analysis for job", nil)
		return
	}

	latest := analyses[len(analyses)-1]
	state := latest.Input
	if latest.Result != nil {
		state = *latest.Result
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":            jobID,
		"analysis_id":       latest.ID,
		"execution_time_ms": state.ExecutionTimeMs,
		"cpu_utilization":   state.CPUUtilization,
		"memory_used_mb":    state.MemoryUsedMB,
		"partition_count":   state.PartitionCount,
		"skew_ratio":        state.SkewRatio,
		"estimated_cost":    agents.EstimateCost(state),
	})
}

// handleGetPipeline describes the compiled pipeline
func (s *Server) handleGetPipeline(c *gin.Context) {
	if s.plan == nil {
		respondError(c, http.StatusServiceUnavailable, "PIPELINE_UNAVAILABLE", "No pipeline configured", nil)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, pipeline.Describe(s.plan))
		return
	}

	transitions := s.plan.Transitions()
	if transitions == nil {
		transitions = []graph.Transition{}
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        s.plan.Name(),
		"entry":       s.plan.Entry(),
		"steps":       s.plan.Steps(),
		"transitions": transitions,
	})
}
