package agents

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// Agent names used as step names in the pipeline
const (
	MetadataAgentName   = "metadata_agent"
	PartitionAgentName  = "partition_agent"
	SkewAgentName       = "skew_agent"
	RuntimeAgentName    = "runtime_agent"
	DeltaAgentName      = "delta_agent"
	CostAgentName       = "cost_agent"
	MitigationAgentName = "mitigation_agent"
	ReasoningAgentName  = "reasoning_agent"
)

// Analyzer inspects the state and records its findings in out
type Analyzer func(ctx context.Context, state domain.JobState, out *domain.Update) error

// Agent is a named analysis step
type Agent struct {
	name      string
	issueType string
	analyze   Analyzer
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an agent
type Option func(*Agent)

// WithLogger sets the parent logger; the agent logs under its own name
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp contributions
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an agent. Failures of analyze are reported as issues of the
// given type.
func New(name, issueType string, analyze Analyzer, opts ...Option) *Agent {
	a := &Agent{
		name:      name,
		issueType: issueType,
		analyze:   analyze,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named(name)
	return a
}

// Name returns the step name of the agent
func (a *Agent) Name() string {
	return a.name
}

// Process runs the analyzer and returns its contribution
func (a *Agent) Process(ctx context.Context, state domain.JobState) (*domain.Update, error) {
	a.logger.Info("analyzing job",
		zap.String("job_id", state.JobID),
		zap.String("table_name", state.TableName))

	out := domain.NewUpdate()
	if err := a.analyze(ctx, state, out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var abort *abortError
		if errors.As(err, &abort) {
			return nil, abort.err
		}

		a.logger.Error("analysis failed",
			zap.String("job_id", state.JobID),
			zap.Error(err))
		out.ReportIssue(a.issueType, domain.SeverityError, err.Error())
	}

	return out.Touch(a.now()), nil
}

type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// Abort marks an analyzer error as fatal to the whole run instead of being
// recorded as an issue.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}
