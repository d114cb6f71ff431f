// Package builder assembles the workspace dependency graph end to end:
// discover manifests, expand them against workspace defaults, resolve
// dependency references, insert edges, and validate acyclicity and
// constraint policy. A build either produces a fully validated graph or
// fails with the first diagnosable problem; no partial result ever
// escapes.
package builder

import (
	"context"
	"errors"
	"time"

	"github.com/papapumpkin/pulsar/internal/cache"
	"github.com/papapumpkin/pulsar/internal/constraint"
	"github.com/papapumpkin/pulsar/internal/expand"
	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/project"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/vcs"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// Discoverer walks the workspace for project manifests: Locate is the
// cheap path-only pass cache keys are computed from, Discover the full
// parse. *workspace.Scanner is the canonical implementation.
type Discoverer interface {
	Locate(ctx context.Context) ([]string, error)
	Discover(ctx context.Context) ([]workspace.Discovered, error)
}

// Expander turns one discovered manifest into a complete project record,
// defaults and token substitution applied. *expand.Expander is the
// canonical implementation.
type Expander interface {
	Project(d workspace.Discovered) (*project.Project, error)
}

// EdgeChecker applies workspace constraint policy to a single dependency
// edge. *constraint.Checker is the canonical implementation.
type EdgeChecker interface {
	CheckEdge(from, to *project.Project) error
}

// Builder wires discovery, expansion, resolution, and validation into
// graph construction. Cache, VCS, and Telemetry are optional; a zero
// value there simply disables the concern.
type Builder struct {
	Root     string
	Config   *workspace.Config
	Scanner  Discoverer
	Expander Expander
	Checker  EdgeChecker

	// Cache, when set, lets GetOrBuild skip construction entirely.
	Cache *cache.Store
	// VCS supplies the revision for cache keys and the changed files for
	// affected detection.
	VCS vcs.Querier
	// Telemetry receives build lifecycle events. Nil is a no-op.
	Telemetry *telemetry.Emitter
	// ToolVersion scopes cache entries to the release that wrote them.
	ToolVersion string
}

// New creates a Builder for the workspace rooted at root.
func New(root string, cfg *workspace.Config) *Builder {
	return &Builder{
		Root:     root,
		Config:   cfg,
		Scanner:  workspace.NewScanner(root, cfg),
		Expander: expand.New(root, cfg.Defaults),
		Checker:  constraint.NewChecker(constraint.FromConfig(cfg.Constraints)...),
	}
}

// Build constructs and validates the full workspace graph.
func (b *Builder) Build(ctx context.Context) (*graph.Handle, error) {
	return b.timed(ctx, nil)
}

// BuildScoped constructs a graph containing only the target projects and
// their transitive dependencies. Remaining workspace ids are marked known
// so lookups distinguish "not loaded" from "does not exist". Targets may
// be ids, aliases, or source paths.
func (b *Builder) BuildScoped(ctx context.Context, targets ...string) (*graph.Handle, error) {
	if len(targets) == 0 {
		return nil, errors.New("scoped build needs at least one target")
	}
	return b.timed(ctx, targets)
}

// timed wraps graph construction with telemetry.
func (b *Builder) timed(ctx context.Context, targets []string) (*graph.Handle, error) {
	start := time.Now()
	b.emit(telemetry.KindBuildStarted, "", map[string]any{"targets": targets})

	h, err := b.build(ctx, targets)
	if err != nil {
		b.emit(telemetry.KindBuildFailed, "", map[string]string{"error": err.Error()})
		return nil, err
	}

	b.emit(telemetry.KindBuildDone, "", map[string]any{
		"projects":   h.Len(),
		"edges":      h.EdgeCount(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return h, nil
}

// build runs the pipeline. An empty targets slice means the whole
// workspace.
func (b *Builder) build(ctx context.Context, targets []string) (*graph.Handle, error) {
	ws, err := b.load(ctx)
	if err != nil {
		return nil, err
	}

	loaded, err := scopeOf(ws, targets)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	for _, p := range ws.projects {
		if !loaded[p.ID] {
			continue
		}
		if addErr := g.AddProject(p); addErr != nil {
			return nil, addErr
		}
	}
	g.MarkKnown(ws.index.IDs()...)

	for _, p := range ws.projects {
		if !loaded[p.ID] {
			continue
		}
		for _, re := range ws.edges[p.ID] {
			if addErr := g.AddEdge(re.edge); addErr != nil {
				return nil, addErr
			}
		}
	}

	if cycErr := g.DetectCycle(); cycErr != nil {
		return nil, cycErr
	}

	for _, p := range ws.projects {
		if !loaded[p.ID] {
			continue
		}
		if err := b.checkEdges(p, ws.edges[p.ID], ws.index); err != nil {
			return nil, err
		}
	}

	return graph.NewHandle(g), nil
}

// checkEdges applies the workspace constraint policy to one project's
// declared dependencies. Implicit task references are exempt: a task
// wiring does not couple architectures the way a declared dependency
// does. Constraints run only after the graph is known acyclic.
func (b *Builder) checkEdges(from *project.Project, edges []resolvedEdge, index *project.Store) error {
	for _, re := range edges {
		if re.edge.Kind == graph.KindTaskRef {
			continue
		}
		to, ok := index.Get(re.edge.To)
		if !ok {
			continue
		}
		if err := b.Checker.CheckEdge(from, to); err != nil {
			return err
		}
	}
	return nil
}

// emit sends a telemetry event, nil-safe.
func (b *Builder) emit(kind, projectID string, data any) {
	_ = b.Telemetry.Emit(telemetry.Event{
		Timestamp: time.Now(),
		Kind:      kind,
		Workspace: b.Config.Workspace.Name,
		ProjectID: projectID,
		Data:      data,
	})
}
