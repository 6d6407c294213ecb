package pointer

import (
	"errors"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/blimu-dev/typegen/pkg/diag"
)

func testDoc() *openapi3.T {
	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: "Test", Version: "1.0.0"},
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Pet":      openapi3.NewSchemaRef("", openapi3.NewObjectSchema()),
				"a/b":      openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
				"weird~id": openapi3.NewSchemaRef("", openapi3.NewIntegerSchema()),
			},
		},
	}
}

func TestResolveComponentSchema(t *testing.T) {
	doc := testDoc()
	sr, err := Resolve(doc, "#/components/schemas/Pet")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if sr != doc.Components.Schemas["Pet"] {
		t.Error("Resolve() did not return the component schema ref")
	}
}

func TestResolveEscapedNames(t *testing.T) {
	doc := testDoc()
	tests := []struct {
		ref  string
		want string
	}{
		{"#/components/schemas/a~1b", "a/b"},
		{"#/components/schemas/weird~0id", "weird~id"},
	}
	for _, tt := range tests {
		sr, err := Resolve(doc, tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
		}
		if sr != doc.Components.Schemas[tt.want] {
			t.Errorf("Resolve(%q) did not return schema %q", tt.ref, tt.want)
		}
	}
}

func TestResolveMissing(t *testing.T) {
	doc := testDoc()
	_, err := Resolve(doc, "#/components/schemas/Nope")
	if !diag.IsCode(err, diag.CodeReferenceNotFound) {
		t.Fatalf("Resolve(missing) = %v, want REFERENCE_NOT_FOUND", err)
	}
	var de *diag.Error
	if !errors.As(err, &de) {
		t.Fatal("error is not a diag.Error")
	}
	if len(de.SchemaPath) != 3 || de.SchemaPath[2] != "Nope" {
		t.Errorf("SchemaPath = %v, want breadcrumb ending in Nope", de.SchemaPath)
	}
}

func TestResolveMalformed(t *testing.T) {
	doc := testDoc()
	for _, ref := range []string{"", "#", "no-slash", "#no-slash"} {
		if _, err := Resolve(doc, ref); !diag.IsCode(err, diag.CodeReferenceNotFound) {
			t.Errorf("Resolve(%q) = %v, want REFERENCE_NOT_FOUND", ref, err)
		}
	}
}
