package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/R167/ipwatch/internal/output"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type listServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newListServer(t *testing.T, status int, body string) *listServer {
	t.Helper()
	ls := &listServer{}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.hits.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func newTestCatalog(t *testing.T, listURL string) (*Catalog, string) {
	t.Helper()
	dir := t.TempDir()
	c := New(Config{
		ListURL:   listURL + "/servers.json",
		CachePath: filepath.Join(dir, "serverCache.json"),
		Client:    http.DefaultClient,
		Now:       func() time.Time { return testNow },
	}, output.NewNoOpOutput())
	return c, dir
}

func writeCache(t *testing.T, path string, v interface{}) {
	t.Helper()
	var data []byte
	switch raw := v.(type) {
	case string:
		data = []byte(raw)
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal cache: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
}

func readCache(t *testing.T, path string) cacheFile {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		t.Fatalf("cache is not valid json: %v", err)
	}
	return cf
}

func TestServers_ValidCacheSkipsDownload(t *testing.T) {
	ls := newListServer(t, http.StatusOK, `["http://remote.example"]`)
	c, _ := newTestCatalog(t, ls.URL)

	expiry := testNow.Add(24 * time.Hour)
	writeCache(t, c.CachePath(), map[string]interface{}{
		"expiry":        toEpoch(expiry),
		"expiryDisplay": expiry.Format(displayLayout),
		"servers":       []string{"http://a.example", "http://b.example"},
	})

	pool, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("Servers() error = %v", err)
	}
	if ls.hits.Load() != 0 {
		t.Errorf("remote list fetched %d times, want 0", ls.hits.Load())
	}
	if !pool.FromCache {
		t.Error("pool should come from cache")
	}
	want := []string{"http://a.example", "http://b.example"}
	if !reflect.DeepEqual(pool.Servers, want) {
		t.Errorf("Servers = %v, want %v", pool.Servers, want)
	}
	if !pool.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", pool.Expiry, expiry)
	}
}

func TestServers_ExpiredCacheRefetches(t *testing.T) {
	ls := newListServer(t, http.StatusOK, `["http://fresh1.example","http://fresh2.example"]`)
	c, _ := newTestCatalog(t, ls.URL)

	past := testNow.Add(-time.Hour)
	writeCache(t, c.CachePath(), map[string]interface{}{
		"expiry":        toEpoch(past),
		"expiryDisplay": past.Format(displayLayout),
		"servers":       []string{"http://stale.example"},
	})

	pool, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("Servers() error = %v", err)
	}
	if ls.hits.Load() != 1 {
		t.Fatalf("remote list fetched %d times, want 1", ls.hits.Load())
	}
	if pool.FromCache {
		t.Error("pool should not come from cache")
	}
	want := []string{"http://fresh1.example", "http://fresh2.example"}
	if !reflect.DeepEqual(pool.Servers, want) {
		t.Errorf("Servers = %v, want %v", pool.Servers, want)
	}

	wantExpiry := testNow.Add(90 * 24 * time.Hour)
	if !pool.Expiry.Equal(wantExpiry) {
		t.Errorf("Expiry = %v, want %v", pool.Expiry, wantExpiry)
	}

	cf := readCache(t, c.CachePath())
	if !reflect.DeepEqual(cf.Servers, want) {
		t.Errorf("cached servers = %v, want %v", cf.Servers, want)
	}
	if got := fromEpoch(cf.Expiry); !got.Equal(wantExpiry) {
		t.Errorf("cached expiry = %v, want %v", got, wantExpiry)
	}
	if cf.ExpiryDisplay != wantExpiry.Format(displayLayout) {
		t.Errorf("cached expiryDisplay = %q", cf.ExpiryDisplay)
	}
}

func TestServers_InvalidCacheIsMiss(t *testing.T) {
	future := toEpoch(testNow.Add(time.Hour))
	tests := []struct {
		name  string
		cache string
	}{
		{"not json", "this is not json"},
		{"truncated write", `{"expiry": 1.5, "expiryDisplay": "2026-`},
		{"array instead of object", `["http://a.example"]`},
		{"missing expiry", `{"expiryDisplay": "x", "servers": ["http://a.example"]}`},
		{"missing expiryDisplay", fmt.Sprintf(`{"expiry": %f, "servers": ["http://a.example"]}`, future)},
		{"missing servers", fmt.Sprintf(`{"expiry": %f, "expiryDisplay": "x"}`, future)},
		{"null expiry", `{"expiry": null, "expiryDisplay": "x", "servers": ["http://a.example"]}`},
		{"null servers", fmt.Sprintf(`{"expiry": %f, "expiryDisplay": "x", "servers": null}`, future)},
		{"string expiry", `{"expiry": "soon", "expiryDisplay": "x", "servers": ["http://a.example"]}`},
		{"servers not a list", fmt.Sprintf(`{"expiry": %f, "expiryDisplay": "x", "servers": "http://a.example"}`, future)},
		{"empty servers", fmt.Sprintf(`{"expiry": %f, "expiryDisplay": "x", "servers": []}`, future)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := newListServer(t, http.StatusOK, `["http://fresh.example"]`)
			c, _ := newTestCatalog(t, ls.URL)
			writeCache(t, c.CachePath(), tt.cache)

			pool, err := c.Servers(context.Background())
			if err != nil {
				t.Fatalf("Servers() error = %v", err)
			}
			if ls.hits.Load() != 1 {
				t.Errorf("remote list fetched %d times, want 1", ls.hits.Load())
			}
			if !reflect.DeepEqual(pool.Servers, []string{"http://fresh.example"}) {
				t.Errorf("Servers = %v", pool.Servers)
			}
		})
	}
}

func TestServers_MissingCacheDownloads(t *testing.T) {
	ls := newListServer(t, http.StatusOK, `["http://a.example"]`)
	c, _ := newTestCatalog(t, ls.URL)

	pool, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("Servers() error = %v", err)
	}
	if len(pool.Servers) != 1 {
		t.Errorf("Servers = %v", pool.Servers)
	}
	if _, err := os.Stat(c.CachePath()); err != nil {
		t.Errorf("cache should be written: %v", err)
	}
}

func TestServers_MalformedDownloadIsFatal(t *testing.T) {
	body := `<html>502 Bad Gateway</html>`
	ls := newListServer(t, http.StatusOK, body)
	c, dir := newTestCatalog(t, ls.URL)

	pool, err := c.Servers(context.Background())
	if !errors.Is(err, ErrMalformedServerList) {
		t.Fatalf("Servers() error = %v, want ErrMalformedServerList", err)
	}
	if pool != nil {
		t.Errorf("pool = %+v, want nil", pool)
	}

	if c.ErrorPath() != filepath.Join(dir, "servers.json") {
		t.Errorf("ErrorPath = %q, want servers.json in cache dir", c.ErrorPath())
	}
	dump, err := os.ReadFile(c.ErrorPath())
	if err != nil {
		t.Fatalf("error artifact not written: %v", err)
	}
	if string(dump) != body {
		t.Errorf("error artifact = %q, want raw body %q", dump, body)
	}
	if _, err := os.Stat(c.CachePath()); !os.IsNotExist(err) {
		t.Errorf("cache path should not be written, stat err = %v", err)
	}
}

func TestServers_NonStringEntriesAreMalformed(t *testing.T) {
	ls := newListServer(t, http.StatusOK, `["http://a.example", 42]`)
	c, _ := newTestCatalog(t, ls.URL)

	if _, err := c.Servers(context.Background()); !errors.Is(err, ErrMalformedServerList) {
		t.Fatalf("Servers() error = %v, want ErrMalformedServerList", err)
	}
}

func TestServers_Non200DegradesToEmptyPool(t *testing.T) {
	ls := newListServer(t, http.StatusServiceUnavailable, `["http://a.example"]`)
	c, _ := newTestCatalog(t, ls.URL)

	pool, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("Servers() error = %v, want nil", err)
	}
	if !pool.Empty() {
		t.Errorf("Servers = %v, want empty", pool.Servers)
	}
	if pool.ExpiryDisplay == "" || pool.Expiry.IsZero() {
		t.Error("expiry fields should be populated")
	}
	if _, err := os.Stat(c.CachePath()); !os.IsNotExist(err) {
		t.Errorf("cache should not be written on failed download, stat err = %v", err)
	}
	if _, err := os.Stat(c.ErrorPath()); !os.IsNotExist(err) {
		t.Errorf("error artifact should not be written on failed download, stat err = %v", err)
	}
}

func TestServers_UnreachableListDegrades(t *testing.T) {
	c, _ := newTestCatalog(t, "http://127.0.0.1:1")

	pool, err := c.Servers(context.Background())
	if err != nil {
		t.Fatalf("Servers() error = %v, want nil", err)
	}
	if !pool.Empty() {
		t.Errorf("Servers = %v, want empty", pool.Servers)
	}
}

func TestServers_CancelledDownloadIsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	}))
	defer srv.Close()
	c, _ := newTestCatalog(t, srv.URL)

	pool, err := c.Servers(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Servers() error = %v, want context.Canceled", err)
	}
	if pool != nil {
		t.Errorf("Servers() pool = %+v, want nil", pool)
	}
	if _, err := os.Stat(c.CachePath()); !os.IsNotExist(err) {
		t.Errorf("cache written after cancellation, stat err = %v", err)
	}
}

func TestServers_RemovesStaleErrorArtifact(t *testing.T) {
	ls := newListServer(t, http.StatusOK, `["http://a.example"]`)
	c, _ := newTestCatalog(t, ls.URL)

	if err := os.WriteFile(c.ErrorPath(), []byte("old dump"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Servers(context.Background()); err != nil {
		t.Fatalf("Servers() error = %v", err)
	}
	if _, err := os.Stat(c.ErrorPath()); !os.IsNotExist(err) {
		t.Errorf("stale error artifact should be removed, stat err = %v", err)
	}
}

func TestErrorPathFor(t *testing.T) {
	tests := []struct {
		listURL string
		cache   string
		want    string
	}{
		{DefaultListURL, "serverCache.json", "servers.json"},
		{"https://example.com/lists/echo.json", "/var/lib/ipwatch/cache.json", "/var/lib/ipwatch/echo.json"},
		{"https://example.com/", "cache.json", "servers.json"},
	}
	for _, tt := range tests {
		if got := errorPathFor(tt.listURL, tt.cache); got != tt.want {
			t.Errorf("errorPathFor(%q, %q) = %q, want %q", tt.listURL, tt.cache, got, tt.want)
		}
	}
}

func TestEpochRoundTrip(t *testing.T) {
	ts := time.Date(2027, 1, 13, 8, 30, 15, 250_000_000, time.UTC)
	got := fromEpoch(toEpoch(ts))
	if d := got.Sub(ts); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("round trip drift %v", d)
	}
}
