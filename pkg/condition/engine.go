package condition

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultCacheSize bounds the result cache when no size is configured.
const DefaultCacheSize = 256

// Engine evaluates condition strings with a bounded result cache. Repeated
// evaluation with the same condition text and the same values for the fields
// the condition mentions is served from cache; entries are evicted FIFO.
// Safe for concurrent use.
type Engine struct {
	mu      sync.RWMutex
	results map[string]bool
	order   []string
	size    int
}

// NewEngine creates an Engine with the given cache bound (DefaultCacheSize
// when zero or negative).
func NewEngine(cacheSize int) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Engine{results: map[string]bool{}, size: cacheSize}
}

// Evaluate parses and evaluates text against data. Evaluation is pure, so
// the result is cacheable by condition text plus a projection of only the
// fields the condition actually mentions.
func (e *Engine) Evaluate(text string, data map[string]any) (bool, error) {
	key := e.cacheKey(text, data)
	if result, ok := e.lookup(key); ok {
		return result, nil
	}
	expr, err := Parse(text)
	if err != nil {
		return false, err
	}
	result := expr.Evaluate(data)
	e.store(key, result)
	return result, nil
}

// CacheLen returns the number of cached results.
func (e *Engine) CacheLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.results)
}

func (e *Engine) cacheKey(text string, data map[string]any) string {
	fields := Fields(text)
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString(text)
	for _, f := range fields {
		b.WriteByte(0x1f)
		b.WriteString(f)
		b.WriteByte('=')
		if v, ok := data[f]; ok {
			fmt.Fprintf(&b, "%v", v)
		} else {
			b.WriteString("\x00absent")
		}
	}
	return b.String()
}

func (e *Engine) lookup(key string) (bool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	result, ok := e.results[key]
	return result, ok
}

func (e *Engine) store(key string, result bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.results[key]; !exists {
		e.order = append(e.order, key)
	}
	e.results[key] = result
	for len(e.order) > e.size {
		oldest := e.order[0]
		e.order = e.order[1:]
		delete(e.results, oldest)
	}
}
