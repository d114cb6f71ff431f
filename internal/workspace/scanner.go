package workspace

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/papapumpkin/pulsar/internal/project"
)

// Discovered is one candidate project located by the scanner: where it
// lives, the id it falls back to when the manifest declares none, and its
// parsed manifest.
type Discovered struct {
	ID           string
	SourceRoot   string
	ManifestPath string
	Manifest     *project.Manifest
}

// Scanner walks the workspace source globs looking for project manifests.
// Ordering is deterministic: patterns in config order, matches in lexical
// order within a pattern, duplicates dropped on first occurrence.
type Scanner struct {
	// Root is the absolute workspace root path.
	Root string
	// Patterns are the source globs from the workspace config.
	Patterns []string
}

// NewScanner creates a Scanner for the workspace rooted at root.
func NewScanner(root string, cfg *Config) *Scanner {
	return &Scanner{Root: root, Patterns: cfg.Workspace.Projects}
}

// Locate returns the workspace-relative manifest paths matched by the
// source globs without parsing them. This is the cheap walk the cache key
// is computed from.
func (s *Scanner) Locate(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range s.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(filepath.Join(s.Root, pattern))
		if err != nil {
			return nil, fmt.Errorf("source pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, statErr := os.Stat(m)
			if statErr != nil || !info.IsDir() {
				continue
			}
			manifest := filepath.Join(m, project.ManifestName)
			if _, statErr := os.Stat(manifest); statErr != nil {
				continue // directory without a manifest is not a project
			}
			rel, relErr := filepath.Rel(s.Root, manifest)
			if relErr != nil {
				return nil, fmt.Errorf("relativizing %s: %w", manifest, relErr)
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] {
				continue
			}
			seen[rel] = true
			paths = append(paths, rel)
		}
	}
	return paths, nil
}

// Discover locates and parses every project manifest in the workspace. A
// malformed manifest fails discovery with the file path in the error; a
// broken project config must abort the build, not silently vanish from the
// graph.
func (s *Scanner) Discover(ctx context.Context) ([]Discovered, error) {
	manifests, err := s.Locate(ctx)
	if err != nil {
		return nil, err
	}

	discovered := make([]Discovered, 0, len(manifests))
	for _, rel := range manifests {
		m, loadErr := project.LoadManifest(filepath.Join(s.Root, filepath.FromSlash(rel)))
		if loadErr != nil {
			return nil, fmt.Errorf("discovering projects: %w", loadErr)
		}
		sourceRoot := path.Dir(rel)
		discovered = append(discovered, Discovered{
			ID:           path.Base(sourceRoot),
			SourceRoot:   sourceRoot,
			ManifestPath: rel,
			Manifest:     m,
		})
	}
	return discovered, nil
}
