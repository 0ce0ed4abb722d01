package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/stupside/reel/internal/app"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	r, err := NewRedis(ctx, app.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}

	s, err := NewSQLite(ctx, app.SQLiteConfig{Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}

	all := map[string]Store{
		"memory": NewMemory(0),
		"lru":    NewMemory(16),
		"redis":  r,
		"sqlite": s,
	}
	t.Cleanup(func() {
		for _, st := range all {
			st.Close()
		}
	})
	return all
}

func TestStoreWriteThenRead(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := st.Get(ctx, "abc123"); ok || err != nil {
				t.Fatalf("Get before Put = %v, %v; want absent", ok, err)
			}

			e := Entry{VideoSrc: "https://cdn.example/video.webm", CookieHeader: "accountToken=tok; lang=en"}
			if err := st.Put(ctx, "abc123", e); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, ok, err := st.Get(ctx, "abc123")
			if err != nil || !ok {
				t.Fatalf("Get = %v, %v", ok, err)
			}
			want := Entry{ContentID: "abc123", VideoSrc: e.VideoSrc, CookieHeader: e.CookieHeader}
			if got != want {
				t.Errorf("Get = %+v, want %+v", got, want)
			}
		})
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := Entry{VideoSrc: "https://cdn.example/one.webm", CookieHeader: "a=1"}
			second := Entry{VideoSrc: "https://cdn.example/two.webm", CookieHeader: "a=2"}

			if err := st.Put(ctx, "id", first); err != nil {
				t.Fatalf("Put first: %v", err)
			}
			if err := st.Put(ctx, "id", second); err != nil {
				t.Fatalf("Put second: %v", err)
			}

			got, ok, err := st.Get(ctx, "id")
			if err != nil || !ok {
				t.Fatalf("Get = %v, %v", ok, err)
			}
			if got.VideoSrc != second.VideoSrc || got.CookieHeader != second.CookieHeader {
				t.Errorf("Get = %+v, want second entry", got)
			}
		})
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(0)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i%5)
			_ = st.Put(ctx, id, Entry{VideoSrc: id})
			_, _, _ = st.Get(ctx, id)
		}()
	}
	wg.Wait()

	if n := st.(*Memory).Len(); n != 5 {
		t.Errorf("Len = %d, want 5", n)
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(2)

	_ = st.Put(ctx, "a", Entry{VideoSrc: "a"})
	_ = st.Put(ctx, "b", Entry{VideoSrc: "b"})
	_, _, _ = st.Get(ctx, "a")
	_ = st.Put(ctx, "c", Entry{VideoSrc: "c"})

	if _, ok, _ := st.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	for _, id := range []string{"a", "c"} {
		if _, ok, _ := st.Get(ctx, id); !ok {
			t.Errorf("%s should still be cached", id)
		}
	}
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	r, err := NewRedis(ctx, app.RedisConfig{Addr: mr.Addr(), Prefix: "test:", TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer r.Close()

	if err := r.Put(ctx, "abc", Entry{VideoSrc: "v"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !mr.Exists("test:abc") {
		t.Fatal("expected key under configured prefix")
	}

	mr.FastForward(2 * time.Minute)

	if _, ok, err := r.Get(ctx, "abc"); ok || err != nil {
		t.Errorf("Get after TTL = %v, %v; want absent", ok, err)
	}
}

func TestRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedis(ctx, app.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestSQLitePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	s, err := NewSQLite(ctx, app.SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := s.Put(ctx, "abc", Entry{VideoSrc: "v", CookieHeader: "c=1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	reopened, err := NewSQLite(ctx, app.SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "abc")
	if err != nil || !ok || got.VideoSrc != "v" || got.CookieHeader != "c=1" {
		t.Errorf("Get after reopen = %+v, %v, %v", got, ok, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, app.CacheConfig{Backend: app.CacheMemory})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := st.(*Memory); !ok {
		t.Errorf("Open memory returned %T", st)
	}

	st, err = Open(ctx, app.CacheConfig{Backend: app.CacheMemory, Capacity: 3})
	if err != nil {
		t.Fatalf("Open lru: %v", err)
	}
	if _, ok := st.(*LRU); !ok {
		t.Errorf("Open with capacity returned %T", st)
	}

	if _, err := Open(ctx, app.CacheConfig{Backend: "etcd"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := Open(ctx, app.CacheConfig{Backend: app.CacheSQLite}); err == nil {
		t.Error("expected error for sqlite without path")
	}
}
