// Package refstore fetches and caches external specification documents
// referenced from other documents, by URL or filesystem path.
//
// Cached documents are valid for a fixed TTL window; within the window a hit
// is returned unconditionally, with no conditional-GET revalidation. The
// cache is bounded and evicts in insertion order (FIFO) when full.
package refstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mohae/deepcopy"

	"github.com/blimu-dev/typegen/pkg/diag"
	"github.com/blimu-dev/typegen/pkg/openapi"
	"github.com/blimu-dev/typegen/pkg/pointer"
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultTTL          = 5 * time.Minute
	DefaultMaxCacheSize = 50
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 3
	DefaultRetries      = 2
	DefaultBackoff      = 500 * time.Millisecond
)

// Options configures a Store.
type Options struct {
	// TTL is the cache validity window.
	TTL time.Duration
	// MaxCacheSize bounds the number of cached documents.
	MaxCacheSize int
	// Timeout applies to each individual HTTP fetch.
	Timeout time.Duration
	// MaxRedirects bounds redirect following per fetch.
	MaxRedirects int
	// Retries is the number of additional attempts after a failed fetch.
	Retries int
	// Backoff is the base delay between attempts; attempt n sleeps n*Backoff.
	Backoff time.Duration
	// AllowedDomains, when non-empty, is the only set of hosts the store
	// will fetch from. Checked before any network I/O.
	AllowedDomains []string
	// HTTPClient overrides the default client; mainly for tests.
	HTTPClient *http.Client
}

type cachedDocument struct {
	doc          *openapi3.T
	fetchedAt    time.Time
	etag         string
	lastModified string
}

// Store is a bounded, TTL-invalidated document cache. Safe for concurrent
// use; all cache operations are atomic with respect to eviction.
type Store struct {
	opts   Options
	client *http.Client

	mu      sync.RWMutex
	entries map[string]*cachedDocument
	order   []string // insertion order, for FIFO eviction

	fetches int // external fetch count, observable in tests
}

// New creates a Store with defaults filled in.
func New(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxCacheSize <= 0 {
		opts.MaxCacheSize = DefaultMaxCacheSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.Retries < 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	maxRedirects := opts.MaxRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &Store{
		opts:    opts,
		client:  client,
		entries: map[string]*cachedDocument{},
	}
}

// Resolve fetches (or serves from cache) the document at location and, when
// fragment is non-empty, the schema it addresses inside that document.
func (s *Store) Resolve(ctx context.Context, location, fragment string) (*openapi3.T, *openapi3.SchemaRef, error) {
	doc, err := s.Document(ctx, location)
	if err != nil {
		return nil, nil, err
	}
	if fragment == "" {
		return doc, nil, nil
	}
	sr, err := pointer.Resolve(doc, fragment)
	if err != nil {
		return nil, nil, err
	}
	return doc, sr, nil
}

// Document returns the document at location, consulting the cache first.
// Cache hits within the TTL window are returned unconditionally.
func (s *Store) Document(ctx context.Context, location string) (*openapi3.T, error) {
	if doc, ok := s.cached(location); ok {
		return doc, nil
	}

	var (
		entry *cachedDocument
		err   error
	)
	if isHTTP(location) {
		entry, err = s.fetchHTTP(ctx, location)
	} else {
		entry, err = s.readFile(location)
	}
	if err != nil {
		return nil, err
	}
	if err := openapi.ValidateMinimal(entry.doc); err != nil {
		return nil, diag.New(diag.CodeParseFailed, "document %q is not a usable OpenAPI document", location).
			WithCause(err).
			WithSuggestion("external documents need a top-level version field and an info block")
	}
	s.put(location, entry)
	return entry.doc, nil
}

// Len returns the number of cached documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Contains reports whether location currently has a live cache entry.
func (s *Store) Contains(location string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[location]
	return ok && time.Since(e.fetchedAt) < s.opts.TTL
}

// Fetches returns the number of external reads performed so far.
func (s *Store) Fetches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches
}

func (s *Store) cached(location string) (*openapi3.T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[location]
	if !ok || time.Since(e.fetchedAt) >= s.opts.TTL {
		return nil, false
	}
	// Deep copy so callers cannot mutate the cached document.
	return deepcopy.Copy(e.doc).(*openapi3.T), true
}

func (s *Store) put(location string, entry *cachedDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[location]; !exists {
		s.order = append(s.order, location)
	}
	s.entries[location] = entry
	for len(s.order) > s.opts.MaxCacheSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
}

func (s *Store) readFile(path string) (*cachedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, diag.New(diag.CodeNotFound, "file not found: %s", path).
				WithCause(err).
				WithSuggestion("check the referenced path relative to the working directory")
		}
		return nil, diag.New(diag.CodeFetchFailed, "failed to read %s", path).WithCause(err)
	}
	doc, err := openapi.ParseDocument(data, path)
	if err != nil {
		return nil, err
	}
	s.countFetch()
	return &cachedDocument{doc: doc, fetchedAt: time.Now()}, nil
}

func (s *Store) fetchHTTP(ctx context.Context, location string) (*cachedDocument, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, diag.New(diag.CodeFetchFailed, "invalid URL %q", location).WithCause(err)
	}
	if !s.domainAllowed(u.Hostname()) {
		return nil, diag.New(diag.CodeDomainNotAllowed, "domain %q is not in the allow-list", u.Hostname()).
			WithSuggestion("add %q to allowedDomains or remove the allow-list to permit all hosts", u.Hostname())
	}

	var lastErr error
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			// Linear backoff between attempts.
			select {
			case <-ctx.Done():
				return nil, diag.New(diag.CodeFetchFailed, "fetch of %q canceled", location).WithCause(ctx.Err())
			case <-time.After(time.Duration(attempt) * s.opts.Backoff):
			}
		}
		entry, retryable, err := s.fetchOnce(ctx, location)
		if err == nil {
			return entry, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, diag.New(diag.CodeFetchFailed, "failed to fetch %q after %d attempts", location, s.opts.Retries+1).
		WithCause(lastErr).
		WithSuggestion("verify the URL is reachable and serves a JSON or YAML document")
}

func (s *Store) fetchOnce(ctx context.Context, location string) (*cachedDocument, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("server returned %s", resp.Status)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, diag.New(diag.CodeNotFound, "document not found: %s", location)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	doc, err := openapi.ParseDocument(data, location)
	if err != nil {
		return nil, false, err
	}
	s.countFetch()
	return &cachedDocument{
		doc:          doc,
		fetchedAt:    time.Now(),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, false, nil
}

func (s *Store) countFetch() {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
}

func (s *Store) domainAllowed(host string) bool {
	if len(s.opts.AllowedDomains) == 0 {
		return true
	}
	for _, d := range s.opts.AllowedDomains {
		if strings.EqualFold(d, host) {
			return true
		}
	}
	return false
}

func isHTTP(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
