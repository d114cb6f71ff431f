package builder

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/papapumpkin/pulsar/internal/cache"
	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/project"
	"github.com/papapumpkin/pulsar/internal/telemetry"
)

func TestGetOrBuildCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := threeProjects(t)
	b := newBuilder(t, root)

	store, err := cache.Open(ctx, filepath.Join(root, ".pulsar", "cache", "graph.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer store.Close()
	b.Cache = store
	b.VCS = &fakeVCS{rev: "abc123"}
	b.ToolVersion = "1.0.0"
	kinds := captureTelemetry(t, b)

	h1, err := b.GetOrBuild(ctx)
	if err != nil {
		t.Fatalf("first GetOrBuild() error: %v", err)
	}
	h2, err := b.GetOrBuild(ctx)
	if err != nil {
		t.Fatalf("second GetOrBuild() error: %v", err)
	}

	want1, err := h1.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	got2, err := h2.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got2, want1) {
		t.Errorf("cached order = %v, want %v", got2, want1)
	}
	web, err := h2.Get("web")
	if err != nil {
		t.Fatalf("Get(web) from cached graph: %v", err)
	}
	if web.Type != project.TypeApplication {
		t.Errorf("cached web.Type = %q, want %q", web.Type, project.TypeApplication)
	}

	// Editing a manifest changes the fingerprint, forcing a rebuild.
	writeFile(t, root, "libs/core/project.toml", `
[project]
id = "core"
alias = "@core"
tags = ["edited"]
`)
	if _, err := b.GetOrBuild(ctx); err != nil {
		t.Fatalf("third GetOrBuild() error: %v", err)
	}

	want := []string{
		telemetry.KindCacheMiss, telemetry.KindBuildStarted, telemetry.KindBuildDone, telemetry.KindCacheStore,
		telemetry.KindCacheHit,
		telemetry.KindCacheMiss, telemetry.KindBuildStarted, telemetry.KindBuildDone, telemetry.KindCacheStore,
	}
	if got := kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("event kinds = %v, want %v", got, want)
	}
}

func TestGetOrBuildDegradedCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := threeProjects(t)
	b := newBuilder(t, root)

	store, err := cache.Open(ctx, filepath.Join(root, ".pulsar", "cache", "graph.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer store.Close()
	b.Cache = store

	if _, err := b.GetOrBuild(ctx); err != nil {
		t.Fatalf("priming GetOrBuild() error: %v", err)
	}
	key, err := b.cacheKey(ctx, nil)
	if err != nil {
		t.Fatalf("cacheKey() error: %v", err)
	}

	t.Run("stale entry rebuilds", func(t *testing.T) {
		snap, err := store.Load(ctx, key)
		if err != nil || snap == nil {
			t.Fatalf("Load() = %v, %v; want stored snapshot", snap, err)
		}
		snap.Projects[0].ManifestPath = "libs/ghost/project.toml"
		if err := store.Save(ctx, key, b.ToolVersion, snap); err != nil {
			t.Fatalf("Save() error: %v", err)
		}

		kinds := captureTelemetry(t, b)
		if _, err := b.GetOrBuild(ctx); err != nil {
			t.Fatalf("GetOrBuild() error: %v", err)
		}
		got := kinds()
		if len(got) == 0 || got[0] != telemetry.KindCacheStale {
			t.Errorf("event kinds = %v, want cache_stale first", got)
		}
	})

	t.Run("unrestorable entry rebuilds", func(t *testing.T) {
		snap, err := store.Load(ctx, key)
		if err != nil || snap == nil {
			t.Fatalf("Load() = %v, %v; want stored snapshot", snap, err)
		}
		snap.Edges = append(snap.Edges, graph.Edge{From: "core", To: "ghost", Kind: graph.KindRuntime})
		if err := store.Save(ctx, key, b.ToolVersion, snap); err != nil {
			t.Fatalf("Save() error: %v", err)
		}

		kinds := captureTelemetry(t, b)
		if _, err := b.GetOrBuild(ctx); err != nil {
			t.Fatalf("GetOrBuild() error: %v", err)
		}
		got := kinds()
		if len(got) == 0 || got[0] != telemetry.KindCacheCorrupt {
			t.Errorf("event kinds = %v, want cache_corrupt first", got)
		}
	})
}

func TestGetOrBuildWithoutCache(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, threeProjects(t))
	h, err := b.GetOrBuild(context.Background())
	if err != nil {
		t.Fatalf("GetOrBuild() error: %v", err)
	}
	if got := h.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}
