// Package dag provides the recipe dependency graph: cycle detection,
// topological ordering and upstream/downstream queries.
//
// An edge runs from a dependency to its dependent, so a recipe's parents are
// the recipes it reads from.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is a directed graph keyed by node name.
type Graph[T any] struct {
	nodes   map[string]T
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates an empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:   make(map[string]T),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the data of an existing one.
func (g *Graph[T]) AddNode(id string, data T) {
	if _, exists := g.nodes[id]; !exists {
		g.edges[id] = nil
		g.parents[id] = nil
	}
	g.nodes[id] = data
}

// AddEdge records that child depends on parent. Both nodes must exist.
// Self-loops are allowed so that cycle detection can report them.
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns the data stored for id.
func (g *Graph[T]) Node(id string) (T, bool) {
	data, ok := g.nodes[id]
	return data, ok
}

// Parents returns the dependencies of a node in insertion order.
func (g *Graph[T]) Parents(id string) []string {
	return slices.Clone(g.parents[id])
}

// Children returns the dependents of a node in insertion order.
func (g *Graph[T]) Children(id string) []string {
	return slices.Clone(g.edges[id])
}

// IDs returns all node names, sorted.
func (g *Graph[T]) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (g *Graph[T]) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph[T]) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// FindCycle returns a cycle as a closed path (first and last element equal),
// or nil when the graph is acyclic. The search is deterministic.
func (g *Graph[T]) FindCycle() []string {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = inProgress
		stack = append(stack, id)
		for _, child := range g.edges[id] {
			switch state[child] {
			case inProgress:
				start := slices.Index(stack, child)
				return append(slices.Clone(stack[start:]), child)
			case unvisited:
				if cycle := visit(child); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range g.IDs() {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort returns node names with dependencies before dependents.
// Ties are broken by name. It fails if the graph has a cycle.
func (g *Graph[T]) TopologicalSort() ([]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parent := range g.parents[id] {
			visit(parent)
		}
		result = append(result, id)
	}
	for _, id := range g.IDs() {
		visit(id)
	}
	return result, nil
}

// Affected returns the changed nodes plus everything downstream of them, sorted.
// Unknown names are ignored.
func (g *Graph[T]) Affected(changed ...string) []string {
	return g.walk(changed, g.edges, true)
}

// Upstream returns every transitive dependency of id, sorted.
func (g *Graph[T]) Upstream(id string) []string {
	return g.walk([]string{id}, g.parents, false)
}

func (g *Graph[T]) walk(from []string, next map[string][]string, includeStart bool) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		for _, n := range next[id] {
			if !seen[n] {
				seen[n] = true
				mark(n)
			}
		}
	}
	for _, id := range from {
		if _, exists := g.nodes[id]; !exists {
			continue
		}
		if includeStart {
			seen[id] = true
		}
		mark(id)
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Roots returns nodes without dependencies, sorted.
func (g *Graph[T]) Roots() []string {
	var roots []string
	for _, id := range g.IDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes nothing depends on, sorted.
func (g *Graph[T]) Leaves() []string {
	var leaves []string
	for _, id := range g.IDs() {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}
