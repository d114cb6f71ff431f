package builder

import (
	"context"

	"github.com/papapumpkin/pulsar/internal/cache"
	"github.com/papapumpkin/pulsar/internal/graph"
	"github.com/papapumpkin/pulsar/internal/telemetry"
)

// GetOrBuild returns a cached graph when one matches the workspace's
// current fingerprint, and builds one otherwise. Targets scope the graph
// exactly as in BuildScoped; no targets means the full workspace. Cache
// trouble is never fatal: every degraded path falls back to a fresh
// build.
func (b *Builder) GetOrBuild(ctx context.Context, targets ...string) (*graph.Handle, error) {
	if b.Cache == nil {
		return b.timed(ctx, targets)
	}

	key, err := b.cacheKey(ctx, targets)
	if err != nil {
		// No key means no way to address the cache for this workspace
		// state. Build without saving.
		b.emit(telemetry.KindCacheMiss, "", map[string]string{"error": err.Error()})
		return b.timed(ctx, targets)
	}

	if h := b.fromCache(ctx, key); h != nil {
		return h, nil
	}

	h, err := b.timed(ctx, targets)
	if err != nil {
		return nil, err
	}
	if saveErr := b.Cache.Save(ctx, key, b.ToolVersion, h.Snapshot()); saveErr == nil {
		b.emit(telemetry.KindCacheStore, "", map[string]string{"key": key})
	}
	return h, nil
}

// cacheKey fingerprints the workspace for the given scope. The VCS
// revision is folded in when available; a revision lookup failure just
// produces a key without one.
func (b *Builder) cacheKey(ctx context.Context, targets []string) (string, error) {
	k := cache.Keyer{Root: b.Root, ToolVersion: b.ToolVersion}
	if b.VCS != nil {
		if rev, revErr := b.VCS.Revision(ctx); revErr == nil {
			k.Revision = rev
		}
	}
	return k.Key(ctx, b.Scanner, targets...)
}

// fromCache attempts to restore a handle for key. Any miss, staleness,
// or corruption returns nil and lets the caller rebuild.
func (b *Builder) fromCache(ctx context.Context, key string) *graph.Handle {
	snap, err := b.Cache.Load(ctx, key)
	if err != nil {
		b.emit(telemetry.KindCacheCorrupt, "", map[string]string{"key": key, "error": err.Error()})
		return nil
	}
	if snap == nil {
		b.emit(telemetry.KindCacheMiss, "", map[string]string{"key": key})
		return nil
	}
	if cache.Stale(b.Root, snap) {
		b.emit(telemetry.KindCacheStale, "", map[string]string{"key": key})
		return nil
	}
	h, err := graph.FromSnapshot(snap)
	if err != nil {
		b.emit(telemetry.KindCacheCorrupt, "", map[string]string{"key": key, "error": err.Error()})
		return nil
	}
	b.emit(telemetry.KindCacheHit, "", map[string]string{"key": key})
	return h
}
