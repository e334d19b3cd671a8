// Package views caches rendered JSON views per user and exposes the
// invalidation signal used after progress is saved.
package views

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DashboardPath = "/dashboard"
	ProgressPath  = "/progress"
)

func ActivityPath(id string) string { return "/activities/" + id }
func CoursePath(id string) string { return "/courses/" + id }

// Key scopes a view path to one viewer.
func Key(path, userID string) string { return path + "#" + userID }

// Invalidator marks cached render output stale.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Cache stores rendered views. Invalidate bumps a per-key version so a
// build that read the store before the invalidation cannot write its
// result back.
type Cache interface {
	Invalidator
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Version(ctx context.Context, key string) (uint64, error)
	// SetIfVersion stores val only while key is still at ver.
	SetIfVersion(ctx context.Context, key string, val []byte, ver uint64) (bool, error)
}

// buildTimeout bounds a shared build, which outlives any one caller.
const buildTimeout = 30 * time.Second

// Loader serves views from a Cache, building and storing them on a miss.
// Concurrent misses for the same key share one build.
type Loader struct {
	cache Cache
	group singleflight.Group
}

func NewLoader(c Cache) *Loader { return &Loader{cache: c} }

// Invalidate drops keys from the cache and detaches in-flight builds for
// them, so later callers start a fresh build.
func (l *Loader) Invalidate(ctx context.Context, keys ...string) error {
	err := l.cache.Invalidate(ctx, keys...)
	for _, k := range keys {
		l.group.Forget(k)
	}
	return err
}

// Load returns the cached bytes for key, or marshals build's result and
// caches it. A cache read or write fault falls through to build.
// The build runs detached from ctx; a caller whose ctx ends stops waiting
// without failing the others sharing it.
func (l *Loader) Load(ctx context.Context, key string, build func(ctx context.Context) (any, error)) ([]byte, error) {
	if b, ok, err := l.cache.Get(ctx, key); err == nil && ok {
		return b, nil
	}
	ch := l.group.DoChan(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()

		ver, verErr := l.cache.Version(bctx, key)
		val, err := build(bctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		if verErr == nil {
			_, _ = l.cache.SetIfVersion(bctx, key, b, ver)
		}
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
