package views

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-learn/internal/logger"
)

func TestKeys(t *testing.T) {
	if got := Key(ActivityPath("a1"), "u1"); got != "/activities/a1#u1" {
		t.Fatalf("key = %q", got)
	}
	if got := Key(CoursePath("c1"), "u2"); got != "/courses/c1#u2" {
		t.Fatalf("key = %q", got)
	}
}

func TestLoader_CachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewMemoryCache(time.Minute))
	builds := 0
	build := func(context.Context) (any, error) {
		builds++
		return map[string]int{"n": builds}, nil
	}

	b1, err := l.Load(ctx, "k", build)
	if err != nil {
		t.Fatal(err)
	}
	b2, _ := l.Load(ctx, "k", build)
	if string(b1) != `{"n":1}` || string(b2) != `{"n":1}` {
		t.Fatalf("unexpected bodies %s / %s", b1, b2)
	}
	if builds != 1 {
		t.Fatalf("builds = %d, want 1", builds)
	}

	if err := l.Invalidate(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	b3, _ := l.Load(ctx, "k", build)
	if string(b3) != `{"n":2}` {
		t.Fatalf("after invalidate got %s", b3)
	}
}

func TestLoader_BuildErrorNotCached(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewMemoryCache(time.Minute))
	boom := errors.New("boom")
	if _, err := l.Load(ctx, "k", func(context.Context) (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	b, err := l.Load(ctx, "k", func(context.Context) (any, error) { return "ok", nil })
	if err != nil || string(b) != `"ok"` {
		t.Fatalf("got %s, %v", b, err)
	}
}

func TestLoader_CollapsesConcurrentBuilds(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewMemoryCache(time.Minute))
	var builds int32
	release := make(chan struct{})
	build := func(context.Context) (any, error) {
		atomic.AddInt32(&builds, 1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Load(ctx, "same", build)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := atomic.LoadInt32(&builds); n < 1 || n > 5 {
		t.Fatalf("builds = %d", n)
	}
	if _, ok, _ := l.cache.Get(ctx, "same"); !ok {
		t.Fatal("expected cached value")
	}
}

func TestLoader_InvalidateDuringBuildDropsResult(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewMemoryCache(time.Minute))
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []byte, 1)
	go func() {
		b, _ := l.Load(ctx, "k", func(context.Context) (any, error) {
			close(started)
			<-release
			return map[string]int{"progress": 0}, nil
		})
		done <- b
	}()

	<-started
	if err := l.Invalidate(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	close(release)
	if b := <-done; string(b) != `{"progress":0}` {
		t.Fatalf("first load got %s", b)
	}

	b, err := l.Load(ctx, "k", func(context.Context) (any, error) {
		return map[string]int{"progress": 75}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"progress":75}` {
		t.Fatalf("after invalidate got %s", b)
	}
}

func TestLoader_CancelledCallerDoesNotFailOthers(t *testing.T) {
	l := NewLoader(NewMemoryCache(time.Minute))
	started := make(chan struct{})
	release := make(chan struct{})
	var buildErr atomic.Value
	build := func(ctx context.Context) (any, error) {
		select {
		case <-started:
		default:
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			buildErr.Store(err)
		}
		return "ok", nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Load(first, "k", build)
		firstErr <- err
	}()
	<-started

	second := make(chan []byte, 1)
	go func() {
		b, _ := l.Load(context.Background(), "k", build)
		second <- b
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v", err)
	}
	close(release)
	if b := <-second; string(b) != `"ok"` {
		t.Fatalf("second caller got %s", b)
	}
	if err := buildErr.Load(); err != nil {
		t.Fatalf("build saw %v", err)
	}
}

func TestMemoryCache_SetIfVersion(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	ver, _ := c.Version(ctx, "k")
	_ = c.Invalidate(ctx, "k")
	if ok, _ := c.SetIfVersion(ctx, "k", []byte("stale"), ver); ok {
		t.Fatal("stale version accepted")
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("stale value cached")
	}
	cur, _ := c.Version(ctx, "k")
	if cur != ver+1 {
		t.Fatalf("version = %d, want %d", cur, ver+1)
	}
	if ok, _ := c.SetIfVersion(ctx, "k", []byte("fresh"), cur); !ok {
		t.Fatal("current version rejected")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	if ok, _ := c.SetIfVersion(ctx, "k", []byte("v"), 0); !ok {
		t.Fatal("set at version 0 rejected")
	}
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected expiry")
	}
}

func TestNewRedisCache_RequiresConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRedisCache(ctx, nil, "localhost:6379", "ch", time.Minute); err == nil {
		t.Fatal("nil logger accepted")
	}
	if _, err := NewRedisCache(ctx, logger.Nop(), "", "ch", time.Minute); err == nil {
		t.Fatal("empty addr accepted")
	}
	var c *RedisCache
	if err := c.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
