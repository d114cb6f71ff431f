package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle. Cycle holds the project ids along
// the cycle in edge order, rotated so the lexicographically smallest id
// comes first; a single id means a project depends on itself.
type CycleError struct {
	Cycle []string
}

// Error renders the cycle closed, first id repeated at the end.
func (e *CycleError) Error() string {
	if len(e.Cycle) == 1 {
		return fmt.Sprintf("project %s depends on itself", e.Cycle[0])
	}
	closed := append(append([]string(nil), e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("dependency cycle: %s", strings.Join(closed, " -> "))
}

// Unwrap returns ErrCycle for use with errors.Is.
func (e *CycleError) Unwrap() error { return ErrCycle }

// DetectCycle searches the required edges for a cycle. Optional edges
// never participate; a workspace is valid as long as its hard dependency
// edges are acyclic. Returns nil for an acyclic graph, otherwise a
// *CycleError carrying the full cycle.
func (g *Graph) DetectCycle() error {
	if cyc := detectCycle(g.IDs(), g.requiredTargets); cyc != nil {
		return cyc
	}
	return nil
}

// requiredTargets returns the targets of id's required edges in
// declaration order.
func (g *Graph) requiredTargets(id string) []string {
	var out []string
	for _, e := range g.adjacency[id] {
		if e.required() {
			out = append(out, e.To)
		}
	}
	return out
}

const (
	unvisited = iota
	inPath
	done
)

// detectCycle runs a depth-first search over the edges produced by next,
// starting from each id in order. The first back edge found yields the
// cycle. Deterministic input order makes the reported cycle deterministic.
func detectCycle(ids []string, next func(string) []string) *CycleError {
	state := make(map[string]int, len(ids))
	var path []string
	var found []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inPath
		path = append(path, id)
		for _, to := range next(id) {
			switch state[to] {
			case inPath:
				for i, p := range path {
					if p == to {
						found = append([]string(nil), path[i:]...)
						return true
					}
				}
			case unvisited:
				if visit(to) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return false
	}

	for _, id := range ids {
		if state[id] == unvisited && visit(id) {
			return &CycleError{Cycle: rotateToSmallest(found)}
		}
	}
	return nil
}

// rotateToSmallest rotates the cycle so its lexicographically smallest id
// comes first, preserving edge order.
func rotateToSmallest(cycle []string) []string {
	if len(cycle) <= 1 {
		return cycle
	}
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	if min == 0 {
		return cycle
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[min:]...)
	out = append(out, cycle[:min]...)
	return out
}
