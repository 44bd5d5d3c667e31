package destcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	return raw, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func TestValidate_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(newMemCache(), Config{}, nil)
	v, err := c.Validate(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !v.Reachable {
		t.Fatal("expected 200 destination to be reachable")
	}
}

func TestValidate_ServerErrorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(newMemCache(), Config{}, nil)
	v, err := c.Validate(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if v.Reachable {
		t.Fatal("expected 5xx destination to be unreachable")
	}
}

func TestValidate_ClientErrorStillReachable(t *testing.T) {
	// A destination answering 404 exists and responds; the verdict flags
	// dead servers, not dead pages.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(newMemCache(), Config{}, nil)
	v, err := c.Validate(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !v.Reachable {
		t.Fatal("expected 404 destination to be reachable")
	}
}

func TestValidate_HeadRejectedStillReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(newMemCache(), Config{}, nil)
	v, err := c.Validate(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !v.Reachable {
		t.Fatal("expected 405-on-HEAD destination to be reachable")
	}
}

func TestValidate_ConnectionRefusedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(newMemCache(), Config{ProbeTimeout: time.Second}, nil)
	v, err := c.Validate(context.Background(), url)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if v.Reachable {
		t.Fatal("expected refused connection to be unreachable")
	}
}

func TestValidate_CacheHitSkipsProbe(t *testing.T) {
	var probes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(newMemCache(), Config{}, nil)
	for i := 0; i < 3; i++ {
		v, err := c.Validate(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Validate %d returned error: %v", i+1, err)
		}
		if !v.Reachable {
			t.Fatalf("Validate %d returned unreachable", i+1)
		}
	}
	if probes != 1 {
		t.Fatalf("expected 1 probe, got %d", probes)
	}
}

func TestValidate_CorruptCacheEntryReprobes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cache := newMemCache()
	cache.Set(context.Background(), cacheKey(srv.URL), []byte("not json"), 0)

	c := New(cache, Config{}, nil)
	v, err := c.Validate(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !v.Reachable {
		t.Fatal("expected re-probe after corrupt cache entry")
	}
}
