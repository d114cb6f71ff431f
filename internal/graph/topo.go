package graph

import (
	"fmt"
	"sort"
)

// TopologicalOrder returns every loaded project id ordered so dependencies
// come before dependents, considering required edges only. Whenever several
// projects are simultaneously ready, the lexicographically smallest id is
// emitted first, which makes the order total: the same workspace always
// produces the same sequence. Returns ErrCycle if the required edges
// contain a cycle.
func (g *Graph) TopologicalOrder() ([]string, error) {
	ids := g.IDs()
	inDegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		inDegree[id] = 0
	}
	for _, id := range ids {
		for _, e := range g.adjacency[id] {
			if !e.required() {
				continue
			}
			inDegree[id]++
			dependents[e.To] = append(dependents[e.To], id)
		}
	}

	// ready is kept sorted; the head is always the smallest eligible id.
	var ready []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, id)

		var freed []string
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				freed = append(freed, dep)
			}
		}
		if len(freed) > 0 {
			ready = append(ready, freed...)
			sort.Strings(ready)
		}
	}

	if len(ordered) != len(ids) {
		if err := g.DetectCycle(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ordered %d of %d projects", ErrCycle, len(ordered), len(ids))
	}
	return ordered, nil
}
