package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Transition is one edge of a compiled plan. Outcome is empty for
// unconditional edges.
type Transition struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Outcome string `json:"outcome,omitempty"`
}

// Transitions lists the plan's edges in walk order: breadth first from the
// entry point, conditional outcomes sorted by key.
func (p *Plan[S, D]) Transitions() []Transition {
	var out []Transition

	visited := make([]bool, len(p.steps))
	visited[p.entry] = true
	queue := []int{p.entry}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		s := p.steps[i]

		var next []int
		if s.router == nil {
			out = append(out, Transition{From: s.name, To: p.nameOf(s.next)})
			next = append(next, s.next)
		} else {
			keys := make([]string, 0, len(s.outcomes))
			for k := range s.outcomes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out = append(out, Transition{From: s.name, To: p.nameOf(s.outcomes[k]), Outcome: k})
				next = append(next, s.outcomes[k])
			}
		}

		for _, n := range next {
			if n != terminal && !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return out
}

// Describe renders the plan as text, one transition per line.
//
//	graph spark_optimization (entry: metadata_agent)
//	  metadata_agent --> partition_agent
//	  skew_agent --[skewed]--> mitigation_agent
func (p *Plan[S, D]) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s (entry: %s)\n", p.cfg.Name, p.Entry())
	for _, t := range p.Transitions() {
		if t.Outcome == "" {
			fmt.Fprintf(&sb, "  %s --> %s\n", t.From, t.To)
			continue
		}
		fmt.Fprintf(&sb, "  %s --[%s]--> %s\n", t.From, t.Outcome, t.To)
	}
	return sb.String()
}
