package contextstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newStore(t *testing.T, remoteDocs map[string]string, docsDir string) *Store {
	t.Helper()
	f := NewFetcher(remoteDocs, docsDir, 5*time.Second, slog.Default())
	return NewStore(f, slog.Default(), nil)
}

func TestLoadFromLocalFile(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"astropy-context.txt": "astropy coordinates docs\n",
	})
	s := newStore(t, nil, dir)

	got := s.Load(context.Background(), "astropy")
	if got != "astropy coordinates docs" {
		t.Errorf("unexpected context %q", got)
	}
	if !s.Cached("astropy") {
		t.Error("local hit should be cached")
	}
}

func TestLoadPrefersRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content": "remote camb docs"}`)
	}))
	defer srv.Close()

	dir := writeDocs(t, map[string]string{
		"camb-context.txt": "local camb docs",
	})
	s := newStore(t, map[string]string{"camb": srv.URL}, dir)

	if got := s.Load(context.Background(), "camb"); got != "remote camb docs" {
		t.Errorf("remote should win over local, got %q", got)
	}
}

func TestLoadFallsBackToLocalOnRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := writeDocs(t, map[string]string{
		"healpy-context.txt": "local healpy docs",
	})
	s := newStore(t, map[string]string{"healpy": srv.URL}, dir)

	if got := s.Load(context.Background(), "healpy"); got != "local healpy docs" {
		t.Errorf("expected local fallback, got %q", got)
	}
}

func TestLoadSentinelNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "recovered docs")
	}))
	defer srv.Close()

	s := newStore(t, map[string]string{"camb": srv.URL}, t.TempDir())

	if got := s.Load(context.Background(), "camb"); got != Sentinel {
		t.Fatalf("expected sentinel while source is down, got %q", got)
	}
	if s.Cached("camb") {
		t.Fatal("sentinel must not be cached")
	}

	// The source recovered; the next load must retry instead of serving
	// a cached sentinel.
	if got := s.Load(context.Background(), "camb"); got != "recovered docs" {
		t.Errorf("expected recovery on retry, got %q", got)
	}
}

func TestLoadCoalescesConcurrentFetches(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		fmt.Fprint(w, "slow docs")
	}))
	defer srv.Close()

	s := newStore(t, map[string]string{"astropy": srv.URL}, t.TempDir())

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Load(context.Background(), "astropy")
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream fetch for %d concurrent loads, got %d", n, got)
	}
	for i, r := range results {
		if r != "slow docs" {
			t.Errorf("load %d got %q", i, r)
		}
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "version %d", calls.Add(1))
	}))
	defer srv.Close()

	s := newStore(t, map[string]string{"camb": srv.URL}, t.TempDir())

	if got := s.Load(context.Background(), "camb"); got != "version 1" {
		t.Fatalf("unexpected first load %q", got)
	}
	if got := s.Load(context.Background(), "camb"); got != "version 1" {
		t.Fatalf("second load should hit cache, got %q", got)
	}

	s.Invalidate("camb")
	if got := s.Load(context.Background(), "camb"); got != "version 2" {
		t.Errorf("load after invalidate should refetch, got %q", got)
	}
}

func TestLoadEmptyProgramID(t *testing.T) {
	s := newStore(t, nil, t.TempDir())
	if got := s.Load(context.Background(), ""); got != Sentinel {
		t.Errorf("empty program id should yield sentinel, got %q", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "plain docs\n", "plain docs"},
		{"json content field", `{"content": "from content"}`, "from content"},
		{"json context field", `{"context": "from context"}`, "from context"},
		{"json without known fields", `{"other": 1}`, `{"other": 1}`},
		{"invalid json braces", "{not json", "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize([]byte(tt.in)); got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadWithQuery(t *testing.T) {
	retrievalSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"snippets": [{"text": "snippet one"}, {"text": "snippet two"}]}`)
	}))
	defer retrievalSrv.Close()

	dir := writeDocs(t, map[string]string{
		"astropy-context.txt": "static docs",
	})
	s := newStore(t, nil, dir)
	rc := NewRetrievalClient(retrievalSrv.URL, 8, 4096, 5*time.Second, slog.Default())

	got := s.LoadWithQuery(context.Background(), rc, "astropy", "how do I convert coordinates")
	if got != "snippet one\n\nsnippet two" {
		t.Errorf("unexpected retrieval context %q", got)
	}
	// Query-scoped results must not pollute the static cache.
	if s.Cached("astropy") {
		t.Error("retrieval result must not be cached")
	}

	// No query falls back to static context.
	if got := s.LoadWithQuery(context.Background(), rc, "astropy", ""); got != "static docs" {
		t.Errorf("expected static context without query, got %q", got)
	}
}

func TestLoadWithQueryFallsBackOnFailure(t *testing.T) {
	retrievalSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer retrievalSrv.Close()

	dir := writeDocs(t, map[string]string{
		"camb-context.txt": "static camb docs",
	})
	s := newStore(t, nil, dir)
	rc := NewRetrievalClient(retrievalSrv.URL, 8, 4096, 5*time.Second, slog.Default())

	got := s.LoadWithQuery(context.Background(), rc, "camb", "power spectrum")
	if got != "static camb docs" {
		t.Errorf("expected static fallback, got %q", got)
	}
}

func TestWatcherInvalidates(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"astropy-context.txt": "version one",
	})
	s := newStore(t, nil, dir)

	w, err := NewWatcher(s, dir, slog.Default())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if got := s.Load(context.Background(), "astropy"); got != "version one" {
		t.Fatalf("unexpected first load %q", got)
	}

	path := filepath.Join(dir, "astropy-context.txt")
	if err := os.WriteFile(path, []byte("version two"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The watcher event is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !s.Cached("astropy") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := s.Load(context.Background(), "astropy"); got != "version two" {
		t.Errorf("expected reloaded context, got %q", got)
	}
}
