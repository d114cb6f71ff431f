// Package graph builds and serves the workspace dependency graph. A Graph
// is the mutable form assembled by the builder: projects join a store,
// directed edges join adjacency lists, and nothing is validated until the
// whole workspace is in. A Handle is the read surface handed to the rest of
// the tool once construction and validation succeed.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/papapumpkin/pulsar/internal/project"
)

// ErrCycle is returned when the dependency graph contains a cycle.
var ErrCycle = errors.New("dependency cycle detected")

// ErrProjectNotFound is returned for ids the workspace does not declare at
// all.
var ErrProjectNotFound = errors.New("project not found")

// ErrProjectNotLoaded is returned for ids the workspace declares but this
// graph was built without loading, as happens in dependency-scoped builds.
var ErrProjectNotLoaded = errors.New("project not loaded")

// EdgeKind classifies why an edge exists.
type EdgeKind string

// The declared dependency kinds map onto the first three; KindTaskRef
// marks an edge implied by a cross-project task target rather than a
// declared dependency.
const (
	KindRuntime EdgeKind = "runtime"
	KindBuild   EdgeKind = "build"
	KindPeer    EdgeKind = "peer"
	KindTaskRef EdgeKind = "task-ref"
)

// Edge is one directed dependency: From depends on To.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
	// Optional edges never constrain ordering and never participate in
	// cycle detection; they are carried for listings and impact analysis.
	Optional bool `json:"optional,omitempty"`
	// ViaTask names the task whose cross-project target implied the edge.
	// Empty for declared dependencies.
	ViaTask string `json:"via_task,omitempty"`
}

// required reports whether the edge constrains build order.
func (e Edge) required() bool { return !e.Optional }

// Dependency pairs a resolved dependency target with the edge that
// reaches it.
type Dependency struct {
	Project *project.Project
	Edge    Edge
}

// edgeKey identifies an edge for dedup. Optionality is not part of the
// identity: declaring the same edge required anywhere makes it required.
type edgeKey struct {
	from, to string
	kind     EdgeKind
}

// Graph is the mutable dependency graph under construction. It is not safe
// for concurrent use; wrap the finished graph in a Handle for that.
type Graph struct {
	store *project.Store
	// adjacency holds each project's outgoing edges in declaration order.
	adjacency map[string][]Edge
	// reverse maps a project id to the set of ids that point at it.
	reverse map[string]map[string]bool
	// index locates an existing edge in its adjacency list by identity.
	index map[edgeKey]int
	// known holds every project id the workspace declares, loaded or not.
	known map[string]bool
}

// New creates an empty Graph with its own project store.
func New() *Graph {
	return &Graph{
		store:     project.NewStore(),
		adjacency: make(map[string][]Edge),
		reverse:   make(map[string]map[string]bool),
		index:     make(map[edgeKey]int),
		known:     make(map[string]bool),
	}
}

// AddProject loads a project into the graph. Returns
// project.ErrDuplicateID if the id is already loaded; the existing project
// is never replaced.
func (g *Graph) AddProject(p *project.Project) error {
	if err := g.store.Insert(p); err != nil {
		return err
	}
	g.known[p.ID] = true
	return nil
}

// MarkKnown records workspace project ids without loading them. Lookups on
// a marked id distinguish "not loaded into this graph" from "does not
// exist".
func (g *Graph) MarkKnown(ids ...string) {
	for _, id := range ids {
		g.known[id] = true
	}
}

// AddEdge records a dependency edge. Both endpoints must be loaded. A
// self-referencing edge is the degenerate one-project cycle and fails
// immediately with a CycleError. Duplicate edges (same endpoints and kind)
// collapse into one; a required duplicate upgrades an optional original.
func (g *Graph) AddEdge(e Edge) error {
	if e.From == e.To {
		return &CycleError{Cycle: []string{e.From}}
	}
	if _, ok := g.store.Get(e.From); !ok {
		return fmt.Errorf("%w: %s", g.lookupErr(e.From), e.From)
	}
	if _, ok := g.store.Get(e.To); !ok {
		return fmt.Errorf("%w: %s", g.lookupErr(e.To), e.To)
	}

	key := edgeKey{from: e.From, to: e.To, kind: e.Kind}
	if i, ok := g.index[key]; ok {
		if g.adjacency[e.From][i].Optional && e.required() {
			g.adjacency[e.From][i].Optional = false
		}
		return nil
	}

	g.index[key] = len(g.adjacency[e.From])
	g.adjacency[e.From] = append(g.adjacency[e.From], e)
	if g.reverse[e.To] == nil {
		g.reverse[e.To] = make(map[string]bool)
	}
	g.reverse[e.To][e.From] = true
	return nil
}

// lookupErr picks the sentinel for a failed id lookup.
func (g *Graph) lookupErr(id string) error {
	if g.known[id] {
		return ErrProjectNotLoaded
	}
	return ErrProjectNotFound
}

// Project returns a loaded project by id.
func (g *Graph) Project(id string) (*project.Project, bool) {
	return g.store.Get(id)
}

// Projects returns every loaded project in insertion order.
func (g *Graph) Projects() []*project.Project {
	return g.store.All()
}

// IDs returns every loaded project id in insertion order.
func (g *Graph) IDs() []string {
	return g.store.IDs()
}

// Len returns the number of loaded projects.
func (g *Graph) Len() int {
	return g.store.Len()
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return len(g.index)
}

// EdgesFrom returns a copy of id's outgoing edges in declaration order.
func (g *Graph) EdgesFrom(id string) []Edge {
	return append([]Edge(nil), g.adjacency[id]...)
}

// Partial reports whether the workspace declares projects this graph never
// loaded.
func (g *Graph) Partial() bool {
	for id := range g.known {
		if _, ok := g.store.Get(id); !ok {
			return true
		}
	}
	return false
}

// knownIDs returns every known id, loaded or not, sorted.
func (g *Graph) knownIDs() []string {
	ids := make([]string, 0, len(g.known))
	for id := range g.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// dependentsOf returns the ids with any edge pointing at id, sorted.
func (g *Graph) dependentsOf(id string) []string {
	set := g.reverse[id]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for from := range set {
		out = append(out, from)
	}
	sort.Strings(out)
	return out
}

// dependenciesOf returns id's dependencies as (project, edge) pairs,
// required edges before optional ones, declaration order within each
// group. A project reached through edges of several kinds is listed once,
// at its strongest position, carrying the first edge that reached it.
// Targets resolve unconditionally: AddEdge only accepts loaded endpoints.
func (g *Graph) dependenciesOf(id string) []Dependency {
	edges := g.adjacency[id]
	if len(edges) == 0 {
		return nil
	}
	out := make([]Dependency, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if e.required() && !seen[e.To] {
			seen[e.To] = true
			p, _ := g.store.Get(e.To)
			out = append(out, Dependency{Project: p, Edge: e})
		}
	}
	for _, e := range edges {
		if !e.required() && !seen[e.To] {
			seen[e.To] = true
			p, _ := g.store.Get(e.To)
			out = append(out, Dependency{Project: p, Edge: e})
		}
	}
	return out
}
