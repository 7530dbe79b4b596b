package agents

import "github.com/aescanero/sparkcopilot/pkg/ports"

// Config selects the collaborators of the standard agents
type Config struct {
	// Metadata describes tables; nil uses SampleCatalog
	Metadata MetadataSource

	// SkewThreshold is the ratio above which skew is reported
	SkewThreshold float64

	// Advisor enables the reasoning agent when set
	Advisor ports.Advisor
}

// Standard returns every agent the pipeline knows about, in pipeline
// order. The reasoning agent is only included when an advisor is set.
func Standard(cfg Config, opts ...Option) []*Agent {
	list := []*Agent{
		NewMetadataAgent(cfg.Metadata, opts...),
		NewPartitionAgent(opts...),
		NewSkewAgent(cfg.SkewThreshold, opts...),
		NewRuntimeAgent(opts...),
		NewDeltaAgent(opts...),
		NewCostAgent(opts...),
		NewMitigationAgent(opts...),
	}
	if cfg.Advisor != nil {
		list = append(list, NewReasoningAgent(cfg.Advisor, opts...))
	}
	return list
}
