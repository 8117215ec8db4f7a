package cask

import (
	"context"
	"sync/atomic"
)

var resolutionSeq atomic.Uint64

// resolutionStack is the explicit set of definition names currently under
// construction, threaded through recursive resolution. It is per-call
// state, never shared between goroutines; the id identifies the resolution
// to the scope manager's creation-lock bookkeeping.
type resolutionStack struct {
	id    uint64
	chain []string
	seen  map[string]bool
}

func newResolutionStack() *resolutionStack {
	return &resolutionStack{id: resolutionSeq.Add(1), seen: make(map[string]bool, 8)}
}

func (s *resolutionStack) push(name string) {
	s.chain = append(s.chain, name)
	s.seen[name] = true
}

func (s *resolutionStack) pop() {
	last := len(s.chain) - 1
	delete(s.seen, s.chain[last])
	s.chain = s.chain[:last]
}

func (s *resolutionStack) contains(name string) bool {
	return s.seen[name]
}

// chainWith returns the construction chain closed by name, for cycle
// diagnostics.
func (s *resolutionStack) chainWith(name string) []string {
	out := make([]string, 0, len(s.chain)+1)
	out = append(out, s.chain...)
	return append(out, name)
}

// resolveDependencies resolves each declared dependency of def, in
// declaration order, through the candidate resolver and scope manager.
//
// Cycle policy: factory-wired dependencies are never resolved eagerly; the
// factory always receives a *Deferred forwarding handle that resolves to
// the real instance once construction completes, so a cycle closed through
// factory wiring cannot wedge a resolution. A cycle closed through
// constructor wiring is fatal, since a constructor cannot run without its
// arguments. The stack catches cycles within one resolution; a cycle whose
// halves are built by different goroutines is caught by the scope manager
// before it blocks on the other side's creation lock.
func (c *Container) resolveDependencies(ctx context.Context, def *Definition, stack *resolutionStack) ([]any, error) {
	if len(def.dependencies) == 0 {
		return nil, nil
	}

	deps := make([]any, len(def.dependencies))
	for i, dep := range def.dependencies {
		if dep.Kind == DepFactory {
			deps[i] = newDeferred(c, dep.Capability, dep.Name)
			continue
		}

		candidate, err := c.selectCandidate(dep.Capability, dep.Name)
		if err != nil {
			return nil, err
		}

		if stack.contains(candidate.name) {
			return nil, &CircularDependencyError{Chain: stack.chainWith(candidate.name)}
		}

		mi, err := c.resolveDefinition(ctx, candidate, stack)
		if err != nil {
			return nil, err
		}
		deps[i] = mi.Object()
	}
	return deps, nil
}

// dependencyGraph orders eager instantiation for Start. Nodes keep
// registration order so definitions without dependencies start FIFO.
type dependencyGraph struct {
	nodes map[string][]Dependency
	order []string
}

func newDependencyGraph(defs []*Definition) *dependencyGraph {
	g := &dependencyGraph{nodes: make(map[string][]Dependency, len(defs))}
	for _, def := range defs {
		g.nodes[def.name] = def.dependencies
		g.order = append(g.order, def.name)
	}
	return g
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// sort returns definition names in dependency order. Only constructor
// wiring participates in cycle detection; factory wiring is resolved
// on demand through deferred handles and cannot wedge startup.
func (g *dependencyGraph) sort(resolveName func(Dependency) (string, bool)) ([]string, error) {
	states := make(map[string]visitState, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	for _, name := range g.order {
		if err := g.visit(name, states, nil, resolveName, &result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (g *dependencyGraph) visit(name string, states map[string]visitState, chain []string, resolveName func(Dependency) (string, bool), result *[]string) error {
	switch states[name] {
	case visited:
		return nil
	case visiting:
		return &CircularDependencyError{Chain: append(chain, name)}
	}

	deps, ok := g.nodes[name]
	if !ok {
		return nil
	}

	states[name] = visiting
	chain = append(chain, name)

	for _, dep := range deps {
		if dep.Kind != DepConstructor {
			continue
		}
		target, ok := resolveName(dep)
		if !ok {
			// Unresolvable here; instantiation reports the real error.
			continue
		}
		if err := g.visit(target, states, chain, resolveName, result); err != nil {
			return err
		}
	}

	states[name] = visited
	*result = append(*result, name)
	return nil
}
