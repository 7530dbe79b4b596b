package graph

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// terminal is the plan index of END.
const terminal = -1

// planStep is a resolved step: its callable and its transition rule.
type planStep[S, D any] struct {
	name     string
	step     Step[S, D]
	next     int
	router   Router[S]
	outcomes map[string]int
	targets  map[string]string
}

// Plan is a validated, immutable graph ready for execution. Steps are
// addressed by index, so a run performs no name lookups. A Plan is safe for
// concurrent use by multiple runs.
type Plan[S, D any] struct {
	cfg      Config
	reduce   Reducer[S, D]
	logger   *zap.Logger
	observer Observer

	entry int
	steps []planStep[S, D]
	index map[string]int
}

// Compile validates the graph and produces an executable plan. It may be
// called any number of times; each call validates the current builder
// contents again and returns a fresh plan.
func (b *Builder[S, D]) Compile() (*Plan[S, D], error) {
	errs := append([]error(nil), b.errs...)

	if b.entry == "" {
		errs = append(errs, fmt.Errorf("%w: entry point not set", ErrIncompleteGraph))
	} else if _, ok := b.steps[b.entry]; !ok {
		errs = append(errs, fmt.Errorf("%w: entry point %s", ErrUnknownStep, b.entry))
	}

	for _, from := range b.sources {
		errs = append(errs, b.validateTransitions(from)...)
	}

	if len(errs) == 0 {
		errs = append(errs, b.validateReachable()...)
	}

	if err := errors.Join(errs...); err != nil {
		b.opts.logger.Warn("graph compilation failed",
			zap.String("graph", b.cfg.Name),
			zap.Error(err))
		return nil, err
	}

	plan := b.resolve()
	b.opts.logger.Info("graph compiled",
		zap.String("graph", b.cfg.Name),
		zap.String("entry", b.entry),
		zap.Int("steps", len(plan.steps)))
	return plan, nil
}

// validateTransitions checks the outgoing definitions of one source.
func (b *Builder[S, D]) validateTransitions(from string) []error {
	var errs []error

	if _, ok := b.steps[from]; !ok {
		errs = append(errs, fmt.Errorf("%w: edge source %s", ErrUnknownStep, from))
	}

	targets := distinct(b.edges[from])
	conds := b.conditional[from]

	switch {
	case len(targets) > 0 && len(conds) > 0:
		errs = append(errs, fmt.Errorf("%w: %s has both conditional and unconditional edges", ErrAmbiguousEdge, from))
	case len(targets) > 1:
		errs = append(errs, fmt.Errorf("%w: %s has unconditional edges to %v", ErrAmbiguousEdge, from, targets))
	case len(conds) > 1:
		errs = append(errs, fmt.Errorf("%w: %s has %d conditional edge sets", ErrAmbiguousEdge, from, len(conds)))
	}

	for _, to := range targets {
		if !b.known(to) {
			errs = append(errs, fmt.Errorf("%w: edge %s -> %s", ErrUnknownStep, from, to))
		}
	}

	for _, c := range conds {
		if c.router == nil {
			errs = append(errs, fmt.Errorf("%w: conditional edge from %s has no router", ErrIncompleteGraph, from))
		}
		if len(c.outcomes) == 0 {
			errs = append(errs, fmt.Errorf("%w: conditional edge from %s has no outcomes", ErrIncompleteGraph, from))
		}
		for key, to := range c.outcomes {
			if !b.known(to) {
				errs = append(errs, fmt.Errorf("%w: outcome %q of %s -> %s", ErrUnknownStep, key, from, to))
			}
		}
	}

	return errs
}

// validateReachable walks the graph from the entry point and checks that
// every reachable step has a transition and that END can be reached.
func (b *Builder[S, D]) validateReachable() []error {
	var errs []error

	visited := map[string]bool{b.entry: true}
	queue := []string{b.entry}
	endReachable := false

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		next := b.successors(current)
		if len(next) == 0 {
			errs = append(errs, fmt.Errorf("%w: step %s has no outgoing transition", ErrIncompleteGraph, current))
			continue
		}

		for _, to := range next {
			if to == END {
				endReachable = true
				continue
			}
			if !visited[to] {
				visited[to] = true
				queue = append(queue, to)
			}
		}
	}

	if len(errs) == 0 && !endReachable {
		errs = append(errs, fmt.Errorf("%w: %s cannot be reached from %s", ErrIncompleteGraph, END, b.entry))
	}
	return errs
}

func (b *Builder[S, D]) successors(name string) []string {
	if conds := b.conditional[name]; len(conds) > 0 {
		next := make([]string, 0, len(conds[0].outcomes))
		for _, to := range conds[0].outcomes {
			next = append(next, to)
		}
		return next
	}
	return distinct(b.edges[name])
}

func (b *Builder[S, D]) known(name string) bool {
	if name == END {
		return true
	}
	_, ok := b.steps[name]
	return ok
}

// resolve turns the validated builder into an index-based plan.
func (b *Builder[S, D]) resolve() *Plan[S, D] {
	index := make(map[string]int, len(b.order))
	for i, name := range b.order {
		index[name] = i
	}
	lookup := func(name string) int {
		if name == END {
			return terminal
		}
		return index[name]
	}

	steps := make([]planStep[S, D], len(b.order))
	for i, name := range b.order {
		ps := planStep[S, D]{
			name: name,
			step: b.steps[name],
			next: terminal,
		}
		if conds := b.conditional[name]; len(conds) > 0 {
			ps.router = conds[0].router
			ps.outcomes = make(map[string]int, len(conds[0].outcomes))
			ps.targets = make(map[string]string, len(conds[0].outcomes))
			for key, to := range conds[0].outcomes {
				ps.outcomes[key] = lookup(to)
				ps.targets[key] = to
			}
		} else if targets := distinct(b.edges[name]); len(targets) == 1 {
			ps.next = lookup(targets[0])
		}
		steps[i] = ps
	}

	return &Plan[S, D]{
		cfg:      b.cfg,
		reduce:   b.reduce,
		logger:   b.opts.logger,
		observer: b.opts.observer,
		entry:    index[b.entry],
		steps:    steps,
		index:    index,
	}
}

// Name returns the graph name.
func (p *Plan[S, D]) Name() string {
	return p.cfg.Name
}

// Entry returns the name of the first step.
func (p *Plan[S, D]) Entry() string {
	return p.steps[p.entry].name
}

// Steps returns the step names in registration order.
func (p *Plan[S, D]) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.name
	}
	return names
}

// Conditional reports whether the step leaves through a router.
func (p *Plan[S, D]) Conditional(name string) bool {
	i, ok := p.index[name]
	return ok && p.steps[i].router != nil
}

// Successors returns the possible next steps of name, END included.
// Conditional successors are keyed by outcome; the unconditional successor
// uses the empty key.
func (p *Plan[S, D]) Successors(name string) map[string]string {
	i, ok := p.index[name]
	if !ok {
		return nil
	}
	s := p.steps[i]
	if s.router != nil {
		out := make(map[string]string, len(s.targets))
		for k, v := range s.targets {
			out[k] = v
		}
		return out
	}
	return map[string]string{"": p.nameOf(s.next)}
}

func (p *Plan[S, D]) nameOf(i int) string {
	if i == terminal {
		return END
	}
	return p.steps[i].name
}

func distinct(names []string) []string {
	if len(names) < 2 {
		return names
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
