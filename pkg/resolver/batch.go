package resolver

import (
	"context"
	"sort"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/blimu-dev/typegen/pkg/ir"
	"github.com/blimu-dev/typegen/pkg/openapi"
)

// BatchResult holds the outcome of resolving every top-level component
// schema. Failures are isolated per schema name: one bad schema never stops
// its siblings, and every failure is surfaced, not discarded. The schema map
// is keyed by name precisely because batch completion order is not
// guaranteed.
type BatchResult struct {
	Schemas map[string]*ir.ResolvedSchema
	Errors  map[string]error
}

// Failed reports whether any schema failed to resolve.
func (r *BatchResult) Failed() bool { return len(r.Errors) > 0 }

// Names returns the resolved schema names in sorted order.
func (r *BatchResult) Names() []string {
	out := make([]string, 0, len(r.Schemas))
	for n := range r.Schemas {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ResolveDocument resolves every schema under components.schemas, fanning
// out across a bounded worker pool. Input malformation is fatal and returned
// directly; per-schema failures land in BatchResult.Errors.
func (e *Engine) ResolveDocument(ctx context.Context, doc *openapi3.T) (*BatchResult, error) {
	if err := openapi.ValidateMinimal(doc); err != nil {
		return nil, err
	}

	result := &BatchResult{
		Schemas: map[string]*ir.ResolvedSchema{},
		Errors:  map[string]error{},
	}
	if doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return result, nil
	}

	names := make([]string, 0, len(doc.Components.Schemas))
	for name := range doc.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, e.poolSize(len(names)))
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, sr *openapi3.SchemaRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resolved, err := e.ResolveSchema(ctx, doc, sr, "components", "schemas", name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[name] = err
				return
			}
			result.Schemas[name] = resolved
		}(name, doc.Components.Schemas[name])
	}
	wg.Wait()
	return result, nil
}

// poolSize bounds batch concurrency: the configured worker count when set,
// otherwise a small pool sized relative to the schema count.
func (e *Engine) poolSize(schemas int) int {
	workers := e.workers
	if workers <= 0 {
		workers = schemas / 4
		if workers < 2 {
			workers = 2
		}
	}
	if workers > 8 {
		workers = 8
	}
	if workers > schemas && schemas > 0 {
		workers = schemas
	}
	return workers
}
