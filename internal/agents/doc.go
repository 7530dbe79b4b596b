// Package agents provides the analysis steps of the job pipeline.
//
// Each agent inspects the job state and contributes recommendations, issues
// and classification fields through a domain.Update. Agents fail soft: an
// analyzer error becomes an error issue of the agent's type and the run
// goes on. Only context cancellation and errors wrapped with Abort stop the
// run.
package agents
