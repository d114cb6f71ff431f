package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/project"
	"github.com/papapumpkin/pulsar/internal/query"
	"github.com/papapumpkin/pulsar/internal/resolve"
)

// ErrMissingDependency is returned when a project depends on an id the
// workspace does not contain.
var ErrMissingDependency = errors.New("missing dependency")

// MissingDependencyError reports a dependency whose target id is not part
// of the workspace. Distinct from resolve.UnresolvedError: the reference
// was a plain project id, so the intent is clear and only the project is
// absent.
type MissingDependencyError struct {
	Referrer string
	Target   string
}

// Error names both the referring project and the absent target.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("project %s depends on %s which is not part of the workspace", e.Referrer, e.Target)
}

// Unwrap returns ErrMissingDependency for use with errors.Is.
func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// resolvedEdge pairs a graph edge with the reference that produced it,
// for constraint reporting.
type resolvedEdge struct {
	edge graph.Edge
	ref  project.DepRef
}

// workspaceSet is the fully expanded and resolved workspace before any
// scoping decision: every project, its index, the resolver built over
// it, and the resolved edge list per project in declaration order.
type workspaceSet struct {
	projects []*project.Project
	index    *project.Store
	resolver *resolve.Resolver
	edges    map[string][]resolvedEdge
}

// load discovers and expands every manifest and resolves every declared
// dependency. Tag-scoped task targets fan out here, once every project
// and its tags are known. The first unresolvable reference aborts the
// whole load.
func (b *Builder) load(ctx context.Context) (*workspaceSet, error) {
	discovered, err := b.Scanner.Discover(ctx)
	if err != nil {
		return nil, err
	}

	ws := &workspaceSet{
		projects: make([]*project.Project, 0, len(discovered)),
		index:    project.NewStore(),
		edges:    make(map[string][]resolvedEdge, len(discovered)),
	}
	for _, d := range discovered {
		p, expandErr := b.Expander.Project(d)
		if expandErr != nil {
			return nil, fmt.Errorf("expanding project %s: %w", d.ID, expandErr)
		}
		ws.projects = append(ws.projects, p)
	}

	// Index every project for resolution, catching id collisions across
	// manifests before any edge exists.
	for _, p := range ws.projects {
		if insertErr := ws.index.Insert(p); insertErr != nil {
			if existing, ok := ws.index.Get(p.ID); ok {
				return nil, fmt.Errorf("%w: %s declared by both %s and %s",
					project.ErrDuplicateID, p.ID, existing.ManifestPath, p.ManifestPath)
			}
			return nil, insertErr
		}
	}

	ws.resolver, err = resolve.NewResolver(ws.index, b.Config.Aliases)
	if err != nil {
		return nil, err
	}

	for _, p := range ws.projects {
		for _, ref := range p.DependsOn {
			if tag, ok := project.TagScope(ref.Ref); ok {
				targets, tagErr := tagTargets(ws, p.ID, tag)
				if tagErr != nil {
					return nil, fmt.Errorf("task %q of project %s: resolving %q: %w", ref.ViaTask, p.ID, ref.Ref, tagErr)
				}
				for _, to := range targets {
					ws.edges[p.ID] = append(ws.edges[p.ID], resolvedEdge{
						edge: graph.Edge{
							From:     p.ID,
							To:       to,
							Kind:     edgeKindFor(ref),
							Optional: ref.Optional,
							ViaTask:  ref.ViaTask,
						},
						ref: ref,
					})
				}
				continue
			}
			to, depErr := ws.resolver.Dependency(p.ID, ref)
			if depErr != nil {
				return nil, classifyUnresolved(depErr)
			}
			// Caught here rather than at graph assembly so a scoped
			// build rejects it even when the project is out of scope.
			if to == p.ID {
				return nil, &graph.CycleError{Cycle: []string{p.ID}}
			}
			ws.edges[p.ID] = append(ws.edges[p.ID], resolvedEdge{
				edge: graph.Edge{
					From:     p.ID,
					To:       to,
					Kind:     edgeKindFor(ref),
					Optional: ref.Optional,
					ViaTask:  ref.ViaTask,
				},
				ref: ref,
			})
		}
	}
	return ws, nil
}

// tagTargets resolves a tag scope to every workspace project carrying the
// tag, in discovery order. The referrer never matches itself, so a task
// may target its tag peers without declaring a self dependency. A tag no
// project carries fans out to nothing; tags select sets, and an empty set
// is not an error.
func tagTargets(ws *workspaceSet, referrer, tag string) ([]string, error) {
	q, err := query.Parse("tag=" + tag)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range ws.projects {
		if p.ID == referrer || !q.Match(p) {
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// scopeOf returns the set of project ids to load: everything, or the
// targets plus their transitive dependencies over every edge kind.
// Optional and task-reference edges are followed too, so a scoped graph
// can always answer traversal queries about the projects it holds.
func scopeOf(ws *workspaceSet, targets []string) (map[string]bool, error) {
	loaded := make(map[string]bool, ws.index.Len())
	if len(targets) == 0 {
		for _, id := range ws.index.IDs() {
			loaded[id] = true
		}
		return loaded, nil
	}

	queue := make([]string, 0, len(targets))
	for _, t := range targets {
		id, ok := ws.resolver.Resolve(t)
		if !ok {
			return nil, fmt.Errorf("%w: %s", graph.ErrProjectNotFound, t)
		}
		if !loaded[id] {
			loaded[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, re := range ws.edges[id] {
			if !loaded[re.edge.To] {
				loaded[re.edge.To] = true
				queue = append(queue, re.edge.To)
			}
		}
	}
	return loaded, nil
}

// classifyUnresolved converts an unresolved id-shaped reference into a
// MissingDependencyError; alias and path shaped references keep the
// resolution error.
func classifyUnresolved(err error) error {
	var unresolved *resolve.UnresolvedError
	if !errors.As(err, &unresolved) {
		return err
	}
	if !looksLikeID(unresolved.Reference) {
		return err
	}
	return &MissingDependencyError{
		Referrer: unresolved.Referrer,
		Target:   unresolved.Reference,
	}
}

// looksLikeID reports whether a reference is a plain project id rather
// than an alias or path form.
func looksLikeID(ref string) bool {
	if project.ValidateID(ref) != nil {
		return false
	}
	return !strings.HasPrefix(ref, "@") && !strings.HasPrefix(ref, ".") && !strings.Contains(ref, "/")
}

// edgeKindFor maps a declared dependency kind onto its graph edge kind.
func edgeKindFor(ref project.DepRef) graph.EdgeKind {
	if ref.ViaTask != "" {
		return graph.KindTaskRef
	}
	switch ref.Kind {
	case project.DepBuild:
		return graph.KindBuild
	case project.DepPeer:
		return graph.KindPeer
	default:
		return graph.KindRuntime
	}
}
