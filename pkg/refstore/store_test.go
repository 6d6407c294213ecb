package refstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blimu-dev/typegen/pkg/diag"
)

func specBody(title string) string {
	return fmt.Sprintf(`{
  "openapi": "3.0.3",
  "info": {"title": %q, "version": "1.0.0"},
  "components": {"schemas": {"Thing": {"type": "string"}}}
}`, title)
}

func newSpecServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, specBody("Served "+r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveFetchesOnceWithinTTL(t *testing.T) {
	srv := newSpecServer(t)
	store := New(Options{})

	ctx := context.Background()
	doc1, sr, err := store.Resolve(ctx, srv.URL+"/a", "/components/schemas/Thing")
	require.NoError(t, err)
	require.NotNil(t, doc1)
	require.NotNil(t, sr)

	doc2, _, err := store.Resolve(ctx, srv.URL+"/a", "/components/schemas/Thing")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Fetches(), "second resolve must be served from cache")
	assert.Equal(t, doc1.Info.Title, doc2.Info.Title)
	assert.NotSame(t, doc1, doc2, "cache hits must return copies")
}

func TestFIFOEviction(t *testing.T) {
	srv := newSpecServer(t)
	store := New(Options{MaxCacheSize: 2})
	ctx := context.Background()

	for _, path := range []string{"/one", "/two", "/three"} {
		_, err := store.Document(ctx, srv.URL+path)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, store.Len())
	assert.False(t, store.Contains(srv.URL+"/one"), "oldest entry must be evicted first")
	assert.True(t, store.Contains(srv.URL+"/two"))
	assert.True(t, store.Contains(srv.URL+"/three"))
}

func TestTTLExpiry(t *testing.T) {
	srv := newSpecServer(t)
	store := New(Options{TTL: 30 * time.Millisecond})
	ctx := context.Background()

	_, err := store.Document(ctx, srv.URL+"/a")
	require.NoError(t, err)
	require.Equal(t, 1, store.Fetches())

	time.Sleep(50 * time.Millisecond)
	assert.False(t, store.Contains(srv.URL+"/a"))

	_, err = store.Document(ctx, srv.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Fetches(), "expired entry must be re-fetched")
}

func TestDomainAllowList(t *testing.T) {
	store := New(Options{AllowedDomains: []string{"specs.example.com"}})

	_, err := store.Document(context.Background(), "https://evil.example.net/openapi.json")
	require.Error(t, err)
	assert.True(t, diag.IsCode(err, diag.CodeDomainNotAllowed))
	assert.Equal(t, 0, store.Fetches(), "allow-list must be checked before any I/O")
}

func TestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := New(Options{})
	_, err := store.Document(context.Background(), srv.URL+"/missing.yaml")
	require.Error(t, err)
	assert.True(t, diag.IsCode(err, diag.CodeFetchFailed))
	assert.True(t, diag.IsCode(err.(*diag.Error).Cause, diag.CodeNotFound) ||
		diag.IsCode(err, diag.CodeNotFound))
}

func TestRetryOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, specBody("Eventually"))
	}))
	defer srv.Close()

	store := New(Options{Retries: 3, Backoff: time.Millisecond})
	doc, err := store.Document(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Eventually", doc.Info.Title)
	assert.Equal(t, 3, calls)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(path, []byte(specBody("On Disk")), 0o644))

	store := New(Options{})
	doc, err := store.Document(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "On Disk", doc.Info.Title)

	_, err = store.Document(context.Background(), filepath.Join(dir, "nope.json"))
	assert.True(t, diag.IsCode(err, diag.CodeNotFound))
}

func TestUnusableDocumentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"openapi": "3.0.3"}`)
	}))
	defer srv.Close()

	store := New(Options{})
	_, err := store.Document(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, diag.IsCode(err, diag.CodeParseFailed))
	assert.Equal(t, 0, store.Len(), "invalid documents must not be cached")
}
