// Package graph implements a sequential state-graph engine.
//
// A Builder registers named steps and the transitions between them:
// unconditional edges, conditional edges driven by a Router, and edges to
// the END marker. Compile validates the definition and resolves it into an
// immutable, index-based Plan. Plan.Run walks the plan one step at a time,
// folding every step's contribution into the running state with the graph's
// Reducer, and returns the final state once END is reached.
//
// The engine is generic over the state type S and the contribution type D,
// so the merge rules live with the caller's domain rather than here.
//
// Example:
//
//	b := graph.NewBuilder(graph.Config{Name: "jobs"}, domain.Merge)
//	b.AddNode("inspect", inspect).
//		AddNode("report", report).
//		AddEdge("inspect", "report").
//		SetEntryPoint("inspect").
//		SetFinishPoint("report")
//
//	plan, err := b.Compile()
//	if err != nil {
//		return err
//	}
//	final, err := plan.Run(ctx, initial)
package graph
