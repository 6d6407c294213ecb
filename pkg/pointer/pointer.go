// Package pointer resolves JSON-pointer references inside an in-memory
// OpenAPI document.
package pointer

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-openapi/jsonpointer"

	"github.com/blimu-dev/typegen/pkg/diag"
)

const schemasPrefix = "/components/schemas/"

// Resolve walks a local reference such as "#/components/schemas/Pet" and
// returns the schema fragment it addresses. The leading "#" is optional.
func Resolve(doc *openapi3.T, ref string) (*openapi3.SchemaRef, error) {
	ptr := strings.TrimPrefix(ref, "#")
	if ptr == "" || !strings.HasPrefix(ptr, "/") {
		return nil, notFound(ref, "references must start with #/")
	}

	// Fast path: component schemas, by far the common case.
	if name, ok := strings.CutPrefix(ptr, schemasPrefix); ok && !strings.Contains(name, "/") {
		if doc.Components != nil {
			if sr, ok := doc.Components.Schemas[unescape(name)]; ok && sr != nil {
				return sr, nil
			}
		}
		return nil, notFound(ref, "check that components.schemas declares %q", unescape(name))
	}

	p, err := jsonpointer.New(ptr)
	if err != nil {
		return nil, notFound(ref, "the fragment is not a valid JSON pointer").WithCause(err)
	}
	v, _, err := p.Get(doc)
	if err != nil {
		return nil, notFound(ref, "verify every segment of the pointer exists in the document").WithCause(err)
	}
	switch t := v.(type) {
	case *openapi3.SchemaRef:
		return t, nil
	case openapi3.SchemaRef:
		return &t, nil
	case *openapi3.Schema:
		return &openapi3.SchemaRef{Value: t}, nil
	default:
		return nil, notFound(ref, "the pointer resolves to a non-schema node")
	}
}

func notFound(ref, format string, args ...any) *diag.Error {
	return diag.New(diag.CodeReferenceNotFound, "reference %q not found", ref).
		WithPath(segments(ref)...).
		WithSuggestion(format, args...)
}

// segments converts a pointer into the schema-path breadcrumb form.
func segments(ref string) []string {
	ptr := strings.TrimPrefix(strings.TrimPrefix(ref, "#"), "/")
	if ptr == "" {
		return nil
	}
	parts := strings.Split(ptr, "/")
	for i := range parts {
		parts[i] = unescape(parts[i])
	}
	return parts
}

// unescape decodes the two JSON-pointer escape sequences.
func unescape(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}
