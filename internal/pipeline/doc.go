// Package pipeline assembles the standard job analysis graph from the
// analysis agents.
//
// The default pipeline is linear:
//
//	metadata_agent -> partition_agent -> skew_agent -> runtime_agent
//	  -> delta_agent -> cost_agent -> END
//
// With skew routing enabled, skew_agent branches to mitigation_agent when
// the measured skew ratio is above the threshold. When a reasoning_agent
// step is supplied it runs last.
package pipeline
