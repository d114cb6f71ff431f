package builder

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/project"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// Affected returns the sorted ids of every project whose files changed
// since base, together with every transitive dependent. An empty base
// considers only uncommitted changes. A change to the workspace config
// affects every project, because defaults and constraints feed into all
// of them.
func (b *Builder) Affected(ctx context.Context, base string) ([]string, error) {
	if b.VCS == nil {
		return nil, errors.New("affected detection requires a version control querier")
	}

	h, err := b.GetOrBuild(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := b.VCS.ChangedSince(ctx, base)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}

	for _, f := range changed {
		if f == workspace.ConfigPath {
			ids := make([]string, 0, h.Len())
			for _, p := range h.Projects() {
				ids = append(ids, p.ID)
			}
			sort.Strings(ids)
			return ids, nil
		}
	}

	affected := make(map[string]bool)
	queue := make([]string, 0, len(changed))
	for _, f := range changed {
		id, ok := owner(h.Projects(), f)
		if !ok || affected[id] {
			continue
		}
		affected[id] = true
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		dependents, depErr := h.DependentsOf(id)
		if depErr != nil {
			return nil, depErr
		}
		for _, d := range dependents {
			if !affected[d.ID] {
				affected[d.ID] = true
				queue = append(queue, d.ID)
			}
		}
	}

	out := make([]string, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// owner maps one changed file to the project whose source root contains
// it. Nested roots resolve to the deepest match; a root of "." claims
// only files no other project claims. Changed paths from the VCS are
// repo relative, so this assumes the workspace root is the repository
// root.
func owner(projects []*project.Project, file string) (string, bool) {
	best, bestLen := "", -1
	for _, p := range projects {
		root := path.Clean(p.SourceRoot)
		switch {
		case root == ".":
			if bestLen < 0 {
				best, bestLen = p.ID, 0
			}
		case file == root || strings.HasPrefix(file, root+"/"):
			if len(root) > bestLen {
				best, bestLen = p.ID, len(root)
			}
		}
	}
	return best, bestLen >= 0
}

// ExtendScope widens a scoped handle in place so that the targets and
// their transitive dependencies become loaded. The workspace is re-read
// for the new manifests; projects already captured by h are assumed
// unchanged, since extension is append-only.
func (b *Builder) ExtendScope(ctx context.Context, h *graph.Handle, targets ...string) error {
	if len(targets) == 0 {
		return errors.New("extending a graph needs at least one target")
	}

	ws, err := b.load(ctx)
	if err != nil {
		return err
	}
	closure, err := scopeOf(ws, targets)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, h.Len())
	for _, p := range h.Projects() {
		existing[p.ID] = true
	}

	var adding []*project.Project
	var edges []graph.Edge
	for _, p := range ws.projects {
		if !closure[p.ID] || existing[p.ID] {
			continue
		}
		if checkErr := b.checkEdges(p, ws.edges[p.ID], ws.index); checkErr != nil {
			return checkErr
		}
		adding = append(adding, p)
		for _, re := range ws.edges[p.ID] {
			edges = append(edges, re.edge)
		}
	}
	if len(adding) == 0 {
		return nil
	}

	if err := h.Extend(adding, edges); err != nil {
		return err
	}
	b.emit(telemetry.KindGraphExtended, "", map[string]any{
		"targets": targets,
		"added":   len(adding),
		"edges":   len(edges),
	})
	return nil
}
