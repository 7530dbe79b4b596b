package pipeline

import (
	"sort"
	"time"

	"github.com/aescanero/sparkcopilot/internal/agents"
	"github.com/aescanero/sparkcopilot/internal/graph"
	"github.com/aescanero/sparkcopilot/pkg/domain"
)

// Name of the standard graph
const Name = "spark_optimization"

// Routing outcomes of the skew branch
const (
	OutcomeSkewed   = "skewed"
	OutcomeBalanced = "balanced"
)

// Step is an analysis step over a job state
type Step = graph.Step[domain.JobState, *domain.Update]

// Plan is a compiled analysis pipeline
type Plan = graph.Plan[domain.JobState, *domain.Update]

// Sequence is the fixed order of the standard steps
var Sequence = []string{
	agents.MetadataAgentName,
	agents.PartitionAgentName,
	agents.SkewAgentName,
	agents.RuntimeAgentName,
	agents.DeltaAgentName,
	agents.CostAgentName,
}

// Options tunes the standard pipeline
type Options struct {
	// MaxSteps bounds step invocations per run, zero for no bound
	MaxSteps int

	// StepTimeout bounds every step, zero for no timeout
	StepTimeout time.Duration

	// SkewRouting sends skewed jobs through mitigation_agent
	SkewRouting bool

	// SkewThreshold is the routing threshold; <= 0 uses the skew agent default
	SkewThreshold float64
}

// Build wires the standard pipeline from the given steps and compiles it.
// Missing standard steps surface as graph.ErrUnknownStep.
func Build(steps map[string]Step, opts Options, graphOpts ...graph.Option) (*Plan, error) {
	b := graph.NewBuilder[domain.JobState, *domain.Update](graph.Config{
		Name:        Name,
		MaxSteps:    opts.MaxSteps,
		StepTimeout: opts.StepTimeout,
	}, domain.Merge, graphOpts...)

	for _, name := range registrationOrder(steps) {
		b.AddNode(name, steps[name])
	}

	b.SetEntryPoint(Sequence[0])
	for i := 0; i < len(Sequence)-1; i++ {
		from, to := Sequence[i], Sequence[i+1]
		if opts.SkewRouting && from == agents.SkewAgentName {
			b.AddConditionalEdge(from, SkewRouter(opts.SkewThreshold), map[string]string{
				OutcomeSkewed:   agents.MitigationAgentName,
				OutcomeBalanced: to,
			})
			b.AddEdge(agents.MitigationAgentName, to)
			continue
		}
		b.AddEdge(from, to)
	}

	last := Sequence[len(Sequence)-1]
	if _, ok := steps[agents.ReasoningAgentName]; ok {
		b.AddEdge(last, agents.ReasoningAgentName)
		last = agents.ReasoningAgentName
	}
	b.SetFinishPoint(last)

	return b.Compile()
}

// SkewRouter routes on the merged skew ratio
func SkewRouter(threshold float64) graph.Router[domain.JobState] {
	if threshold <= 0 {
		threshold = agents.DefaultSkewThreshold
	}
	return func(s domain.JobState) string {
		if s.SkewRatio > threshold {
			return OutcomeSkewed
		}
		return OutcomeBalanced
	}
}

// FromAgents indexes agents by name
func FromAgents(list []*agents.Agent) map[string]Step {
	steps := make(map[string]Step, len(list))
	for _, a := range list {
		steps[a.Name()] = a
	}
	return steps
}

// Standard builds the pipeline from the standard agents
func Standard(cfg agents.Config, opts Options, agentOpts []agents.Option, graphOpts ...graph.Option) (*Plan, error) {
	if cfg.SkewThreshold <= 0 {
		cfg.SkewThreshold = opts.SkewThreshold
	}
	return Build(FromAgents(agents.Standard(cfg, agentOpts...)), opts, graphOpts...)
}

// Describe renders the compiled pipeline
func Describe(p *Plan) string {
	return p.Describe()
}

// registrationOrder lists the standard steps first, in pipeline order,
// then any other step by name.
func registrationOrder(steps map[string]Step) []string {
	order := make([]string, 0, len(steps))
	known := make(map[string]bool, len(Sequence))
	for _, name := range Sequence {
		known[name] = true
		if _, ok := steps[name]; ok {
			order = append(order, name)
		}
	}

	var extra []string
	for name := range steps {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}
