package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/project"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// keyWorkspace writes a minimal workspace with the named projects and
// returns its root and scanner.
func keyWorkspace(t *testing.T, ids ...string) (string, *workspace.Scanner) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".pulsar"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := "[workspace]\nname = \"test\"\nprojects = [\"libs/*\"]\n"
	if err := os.WriteFile(filepath.Join(root, ".pulsar", "workspace.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	for _, id := range ids {
		dir := filepath.Join(root, "libs", id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		manifest := "[project]\nid = \"" + id + "\"\n"
		if err := os.WriteFile(filepath.Join(dir, "project.toml"), []byte(manifest), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
	}
	return root, &workspace.Scanner{Root: root, Patterns: []string{"libs/*"}}
}

func TestKeyerKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		root, scanner := keyWorkspace(t, "core", "util")
		k := &Keyer{Root: root, ToolVersion: "1.0.0"}
		k1, err := k.Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		k2, err := k.Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if k1 != k2 {
			t.Errorf("keys differ across identical runs: %s vs %s", k1, k2)
		}
		if !strings.HasPrefix(k1, "xxh64:") {
			t.Errorf("key = %q, want hashing prefix", k1)
		}
	})

	t.Run("manifest change changes the key", func(t *testing.T) {
		t.Parallel()
		root, scanner := keyWorkspace(t, "core")
		k := &Keyer{Root: root, ToolVersion: "1.0.0"}
		before, err := k.Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		manifest := filepath.Join(root, "libs", "core", "project.toml")
		if err := os.WriteFile(manifest, []byte("[project]\nid = \"core\"\ntype = \"library\"\n"), 0o644); err != nil {
			t.Fatalf("rewrite manifest: %v", err)
		}
		after, err := k.Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if before == after {
			t.Error("key unchanged after manifest edit")
		}
	})

	t.Run("new project changes the key", func(t *testing.T) {
		t.Parallel()
		root, scanner := keyWorkspace(t, "core")
		k := &Keyer{Root: root, ToolVersion: "1.0.0"}
		before, err := k.Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		dir := filepath.Join(root, "libs", "extra")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "project.toml"), []byte("[project]\nid = \"extra\"\n"), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
		after, err := k.Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if before == after {
			t.Error("key unchanged after adding a project")
		}
	})

	t.Run("tool version and revision change the key", func(t *testing.T) {
		t.Parallel()
		root, scanner := keyWorkspace(t, "core")
		base, err := (&Keyer{Root: root, ToolVersion: "1.0.0"}).Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		bumped, err := (&Keyer{Root: root, ToolVersion: "1.1.0"}).Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		revved, err := (&Keyer{Root: root, ToolVersion: "1.0.0", Revision: "abc123"}).Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if base == bumped || base == revved {
			t.Errorf("key ignored tool version or revision: %s %s %s", base, bumped, revved)
		}
	})

	t.Run("scope separates entries", func(t *testing.T) {
		t.Parallel()
		root, scanner := keyWorkspace(t, "core", "util")
		k := &Keyer{Root: root, ToolVersion: "1.0.0"}
		full, err := k.Key(ctx, scanner)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		scoped, err := k.Key(ctx, scanner, "core")
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if full == scoped {
			t.Error("scoped and full builds share a key")
		}
		// Scope order does not matter.
		ab, err := k.Key(ctx, scanner, "core", "util")
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		ba, err := k.Key(ctx, scanner, "util", "core")
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if ab != ba {
			t.Errorf("scope order changed the key: %s vs %s", ab, ba)
		}
	})

	t.Run("missing workspace config is an error", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		k := &Keyer{Root: root, ToolVersion: "1.0.0"}
		s := &workspace.Scanner{Root: root, Patterns: []string{"libs/*"}}
		if _, err := k.Key(ctx, s); err == nil {
			t.Error("expected error without workspace config")
		}
	})
}

func TestStale(t *testing.T) {
	t.Parallel()
	root, _ := keyWorkspace(t, "core")

	snap := &graph.Snapshot{
		Schema: graph.SnapshotSchema,
		Projects: []*project.Project{
			{ID: "core", ManifestPath: "libs/core/project.toml"},
		},
	}
	if Stale(root, snap) {
		t.Error("snapshot with existing manifests reported stale")
	}

	snap.Projects = append(snap.Projects, &project.Project{
		ID: "gone", ManifestPath: "libs/gone/project.toml",
	})
	if !Stale(root, snap) {
		t.Error("snapshot with deleted manifest not reported stale")
	}
}
