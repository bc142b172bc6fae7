package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
)

// CycleError reports computations that embed each other.
//
// Path starts and ends at the same computation, e.g. [a, b, a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("computation cycle: %s", strings.Join(e.Path, " -> "))
}

// dependencyGraph maps a computation name to the names it embeds.
type dependencyGraph map[string][]string

// buildDependencyGraph scans each computation for `computation: "name"`
// nodes. Every document computation is a vertex, even without edges.
func buildDependencyGraph(defs map[string]cue.Value) dependencyGraph {
	graph := make(dependencyGraph, len(defs))
	for name, def := range defs {
		seen := map[string]bool{}
		graph[name] = []string{}
		def.LookupPath(cue.ParsePath("body")).Walk(func(v cue.Value) bool {
			if v.IncompleteKind() != cue.StructKind {
				return true
			}
			ref := v.LookupPath(cue.MakePath(cue.Str("computation")))
			if !ref.Exists() {
				return true
			}
			if target, err := ref.String(); err == nil && !seen[target] {
				seen[target] = true
				graph[name] = append(graph[name], target)
			}
			return true
		}, nil)
		sort.Strings(graph[name])
	}
	return graph
}

// compileOrder returns the computations so that every one comes after
// those it embeds, or a *CycleError for the first cycle found.
func compileOrder(graph dependencyGraph) ([]string, error) {
	var order []string
	for _, scc := range tarjanSCC(graph) {
		if _, defined := graph[scc[0]]; !defined {
			// Unknown targets fail later with a positioned error.
			continue
		}
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			return nil, &CycleError{Path: reconstructCyclePath(scc, graph)}
		}
		order = append(order, scc[0])
	}
	return order, nil
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Components are returned in reverse topological order: a component comes
// after every component it has an edge to. Vertices are visited in sorted
// order so the result is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath walks edges inside scc from its first member until
// it returns there.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
