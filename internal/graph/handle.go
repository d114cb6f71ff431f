package graph

import (
	"fmt"
	"sync"

	"github.com/papapumpkin/pulsar/internal/project"
)

// Handle is the concurrent read surface over a validated graph. Project
// lookups never take a lock; listings and traversals share a read lock.
// Extend is the only mutation path and is append-only: projects and edges
// join the graph, nothing is ever removed or replaced, so a reader holding
// a project pointer can keep using it across extensions.
type Handle struct {
	// writeMu serializes Extend end to end, validation included.
	writeMu sync.Mutex
	// mu guards the edge structures, the known set, and the topo cache.
	mu sync.RWMutex

	g    *Graph
	topo []string
}

// NewHandle wraps a built graph. The caller hands over ownership and must
// not mutate g afterwards.
func NewHandle(g *Graph) *Handle {
	return &Handle{g: g}
}

// Get returns a loaded project. An id the workspace declares but this
// graph never loaded fails with ErrProjectNotLoaded; an id the workspace
// does not declare fails with ErrProjectNotFound.
func (h *Handle) Get(id string) (*project.Project, error) {
	if p, ok := h.g.store.Get(id); ok {
		return p, nil
	}
	h.mu.RLock()
	err := h.g.lookupErr(id)
	h.mu.RUnlock()
	return nil, fmt.Errorf("%w: %s", err, id)
}

// DependenciesOf lists id's dependencies as resolved (project, edge)
// pairs: required edges first, then optional ones, declaration order
// within each group. A target reached through edges of several kinds
// appears once, at its strongest position.
func (h *Handle) DependenciesOf(id string) ([]Dependency, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.g.store.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", h.g.lookupErr(id), id)
	}
	return h.g.dependenciesOf(id), nil
}

// DependentsOf lists the projects that depend on id, sorted by id. On a
// dependency-scoped graph the listing covers loaded projects only.
func (h *Handle) DependentsOf(id string) ([]*project.Project, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.g.store.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", h.g.lookupErr(id), id)
	}
	ids := h.g.dependentsOf(id)
	if len(ids) == 0 {
		return nil, nil
	}
	// Referrers are always loaded: edges only exist between loaded
	// endpoints.
	out := make([]*project.Project, 0, len(ids))
	for _, from := range ids {
		p, _ := h.g.store.Get(from)
		out = append(out, p)
	}
	return out, nil
}

// TopologicalOrder returns the full build order. The order is computed
// once and cached until the next Extend.
func (h *Handle) TopologicalOrder() ([]string, error) {
	h.mu.RLock()
	if h.topo != nil {
		out := append([]string(nil), h.topo...)
		h.mu.RUnlock()
		return out, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topo == nil {
		order, err := h.g.TopologicalOrder()
		if err != nil {
			return nil, err
		}
		h.topo = order
	}
	return append([]string(nil), h.topo...), nil
}

// Filter returns the loaded projects matching pred, in insertion order.
func (h *Handle) Filter(pred func(*project.Project) bool) []*project.Project {
	var out []*project.Project
	for _, p := range h.g.Projects() {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// Projects returns every loaded project in insertion order.
func (h *Handle) Projects() []*project.Project {
	return h.g.Projects()
}

// Len returns the number of loaded projects.
func (h *Handle) Len() int {
	return h.g.Len()
}

// EdgeCount returns the number of distinct edges.
func (h *Handle) EdgeCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.g.EdgeCount()
}

// Partial reports whether the workspace declares projects this graph never
// loaded.
func (h *Handle) Partial() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.g.Partial()
}

// Extend adds projects and edges to a live handle. The extension is
// validated up front and applied only whole: a duplicate id, an edge
// touching an unknown or unloaded project, or a cycle through the new
// edges rejects the entire batch with the graph untouched. Readers are
// blocked only for the brief apply step, never for validation.
func (h *Handle) Extend(projects []*project.Project, edges []Edge) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	adding := make(map[string]bool, len(projects))
	for _, p := range projects {
		if adding[p.ID] {
			return fmt.Errorf("%w: %s", project.ErrDuplicateID, p.ID)
		}
		if _, ok := h.g.store.Get(p.ID); ok {
			return fmt.Errorf("%w: %s", project.ErrDuplicateID, p.ID)
		}
		adding[p.ID] = true
	}

	loaded := func(id string) bool {
		if adding[id] {
			return true
		}
		_, ok := h.g.store.Get(id)
		return ok
	}
	pending := make(map[string][]string)
	for _, e := range edges {
		if e.From == e.To {
			return &CycleError{Cycle: []string{e.From}}
		}
		if !loaded(e.From) {
			return fmt.Errorf("%w: %s", h.g.lookupErr(e.From), e.From)
		}
		if !loaded(e.To) {
			return fmt.Errorf("%w: %s", h.g.lookupErr(e.To), e.To)
		}
		if e.required() {
			pending[e.From] = append(pending[e.From], e.To)
		}
	}

	// Acyclicity over the union of current and pending required edges.
	// Safe without mu: writeMu excludes other writers and readers never
	// mutate.
	ids := h.g.IDs()
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	next := func(id string) []string {
		return append(h.g.requiredTargets(id), pending[id]...)
	}
	if cyc := detectCycle(ids, next); cyc != nil {
		return cyc
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range projects {
		if err := h.g.AddProject(p); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if err := h.g.AddEdge(e); err != nil {
			return err
		}
	}
	h.topo = nil
	return nil
}
