package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/hashing"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// Keyer computes the cache key for a workspace. The key covers everything
// that can change the built graph: the snapshot schema, the tool version,
// the workspace config, every manifest file's content, the VCS revision
// when one is known, and the build scope. Computing it needs only the
// cheap locate walk, never a manifest parse, so deciding hit or miss costs
// a fraction of a build.
type Keyer struct {
	// Root is the absolute workspace root path.
	Root string
	// ToolVersion invalidates entries written by other releases.
	ToolVersion string
	// Revision is the VCS revision, empty outside a repository.
	Revision string
}

// Locator lists workspace-relative manifest paths without parsing them.
// *workspace.Scanner satisfies it.
type Locator interface {
	Locate(ctx context.Context) ([]string, error)
}

// Key computes the cache key. A non-empty scope lists the target ids of a
// dependency-scoped build; scoped and full builds never share entries.
func (k *Keyer) Key(ctx context.Context, loc Locator, scope ...string) (string, error) {
	manifests, err := loc.Locate(ctx)
	if err != nil {
		return "", fmt.Errorf("computing cache key: %w", err)
	}

	parts := [][]byte{
		[]byte(fmt.Sprintf("schema=%d", graph.SnapshotSchema)),
		[]byte("tool=" + k.ToolVersion),
		[]byte("rev=" + k.Revision),
	}

	cfgSum, err := hashing.File(filepath.Join(k.Root, workspace.ConfigPath))
	if err != nil {
		return "", fmt.Errorf("computing cache key: %w", err)
	}
	parts = append(parts, []byte("config="+cfgSum))

	for _, rel := range manifests {
		sum, err := hashing.File(filepath.Join(k.Root, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("computing cache key: hashing %s: %w", rel, err)
		}
		parts = append(parts, []byte(rel+"="+sum))
	}

	if len(scope) > 0 {
		sorted := append([]string(nil), scope...)
		sort.Strings(sorted)
		for _, id := range sorted {
			parts = append(parts, []byte("scope="+id))
		}
	}

	return hashing.Sum(parts...), nil
}

// Stale reports whether a loaded snapshot no longer matches the workspace
// on disk. The key already covers manifest content, so this is a last
// sanity check: every project the snapshot recorded must still have its
// manifest file.
func Stale(root string, snap *graph.Snapshot) bool {
	for _, p := range snap.Projects {
		if p.ManifestPath == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p.ManifestPath))); err != nil {
			return true
		}
	}
	return false
}
