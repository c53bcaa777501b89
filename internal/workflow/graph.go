// Package workflow implements a resumable engine over a fixed graph of
// named steps. Nodes transform state; routers pick the next node. The
// graph topology is declared up front and validated once, then driven
// by an explicit iteration loop so back-edges never grow the call
// stack. Checkpoints make every step durable and let a session resume
// after an interrupt or a restart.
package workflow

import (
	"context"
	"sort"
)

// End is the reserved name of the terminal pseudo-node. Routing to End
// finishes the run.
const End = "__end__"

// Node is one named step: it may perform I/O through adapters but must
// not branch execution; routing lives in Router funcs.
type Node[S any] func(ctx context.Context, state S) (S, error)

// Router maps the state after a node ran to the name of the next node.
// It must be pure.
type Router[S any] func(state S) string

// Graph is a fixed set of nodes with declared transitions.
type Graph[S any] struct {
	nodes      map[string]Node[S]
	edges      map[string]string            // single declared successor
	routers    map[string]Router[S]         // conditional successor
	targets    map[string]map[string]bool   // allowed router outputs
	entry      string
	interrupts map[string]bool
	compiled   bool
}

// NewGraph returns an empty graph builder.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:      make(map[string]Node[S]),
		edges:      make(map[string]string),
		routers:    make(map[string]Router[S]),
		targets:    make(map[string]map[string]bool),
		interrupts: make(map[string]bool),
	}
}

// AddNode registers a named step.
func (g *Graph[S]) AddNode(name string, node Node[S]) *Graph[S] {
	g.nodes[name] = node
	return g
}

// AddEdge declares the single successor of from.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddConditionalEdges attaches a router to from; the router's output
// must be one of targets (or End, if listed).
func (g *Graph[S]) AddConditionalEdges(from string, router Router[S], targets ...string) *Graph[S] {
	g.routers[from] = router
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	g.targets[from] = set
	return g
}

// SetEntryPoint declares where a fresh session starts.
func (g *Graph[S]) SetEntryPoint(name string) *Graph[S] {
	g.entry = name
	return g
}

// InterruptBefore declares nodes the engine pauses before executing,
// pending a later resumption.
func (g *Graph[S]) InterruptBefore(names ...string) *Graph[S] {
	for _, n := range names {
		g.interrupts[n] = true
	}
	return g
}

// Compile validates the topology. Validation failures are fatal
// configuration errors, never runtime retries.
func (g *Graph[S]) Compile() error {
	if g.entry == "" {
		return configErrorf("no entry point declared")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return configErrorf("entry point %q is not a node", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return configErrorf("edge from unknown node %q", from)
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return configErrorf("edge %q -> unknown node %q", from, to)
			}
		}
	}
	for from, set := range g.targets {
		if _, ok := g.nodes[from]; !ok {
			return configErrorf("router on unknown node %q", from)
		}
		if len(set) == 0 {
			return configErrorf("router on %q declares no targets", from)
		}
		for t := range set {
			if t == End {
				continue
			}
			if _, ok := g.nodes[t]; !ok {
				return configErrorf("router on %q targets unknown node %q", from, t)
			}
		}
	}
	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasRouter := g.routers[name]
		if hasEdge && hasRouter {
			return configErrorf("node %q has both an edge and a router", name)
		}
		if !hasEdge && !hasRouter {
			return configErrorf("node %q has no successor", name)
		}
	}
	for n := range g.interrupts {
		if _, ok := g.nodes[n]; !ok {
			return configErrorf("interrupt on unknown node %q", n)
		}
	}
	g.compiled = true
	return nil
}

// next resolves the successor of node given the post-execution state.
// An unknown router output is a fatal configuration error.
func (g *Graph[S]) next(node string, state S) (string, error) {
	if router, ok := g.routers[node]; ok {
		out := router(state)
		if !g.targets[node][out] {
			return "", configErrorf("router on %q returned undeclared target %q", node, out)
		}
		return out, nil
	}
	return g.edges[node], nil
}

// Nodes lists the node names, sorted.
func (g *Graph[S]) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
