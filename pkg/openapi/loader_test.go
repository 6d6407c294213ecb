package openapi

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/blimu-dev/typegen/pkg/diag"
)

func minimalDoc() *openapi3.T {
	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: "Test API", Version: "1.0.0"},
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Thing": openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
			},
		},
	}
}

func TestValidateMinimal(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(doc *openapi3.T)
		wantCode string
	}{
		{name: "valid", mutate: func(doc *openapi3.T) {}},
		{
			name:     "wrong version",
			mutate:   func(doc *openapi3.T) { doc.OpenAPI = "2.0" },
			wantCode: diag.CodeUnsupportedVersion,
		},
		{
			name:     "missing title",
			mutate:   func(doc *openapi3.T) { doc.Info.Title = "" },
			wantCode: diag.CodeMissingField,
		},
		{
			name:     "missing version field",
			mutate:   func(doc *openapi3.T) { doc.Info.Version = "" },
			wantCode: diag.CodeMissingField,
		},
		{
			name:     "no paths and no schemas",
			mutate:   func(doc *openapi3.T) { doc.Components = nil },
			wantCode: diag.CodeMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := minimalDoc()
			tt.mutate(doc)
			err := ValidateMinimal(doc)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ValidateMinimal() = %v, want nil", err)
				}
				return
			}
			if !diag.IsCode(err, tt.wantCode) {
				t.Fatalf("ValidateMinimal() = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestValidateMinimalNilDoc(t *testing.T) {
	if err := ValidateMinimal(nil); !diag.IsCode(err, diag.CodeInvalidDocument) {
		t.Fatalf("ValidateMinimal(nil) = %v, want INVALID_DOCUMENT", err)
	}
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		location string
		want     string
	}{
		{"json object", `{"openapi":"3.0.0"}`, "spec.bin", "JSON"},
		{"json with leading whitespace", "\n  {\"a\":1}", "spec", "JSON"},
		{"json extension", "openapi: 3.0.0", "spec.json", "JSON"},
		{"yaml", "openapi: 3.0.0", "spec.yaml", "YAML"},
		{"unknown defaults to yaml", "openapi: 3.0.0", "spec", "YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffFormat([]byte(tt.data), tt.location); got != tt.want {
				t.Errorf("SniffFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDocument(t *testing.T) {
	yaml := `
openapi: 3.0.3
info:
  title: Test API
  version: 1.0.0
components:
  schemas:
    Thing:
      type: string
`
	doc, err := ParseDocument([]byte(yaml), "inline.yaml")
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if doc.Components == nil || doc.Components.Schemas["Thing"] == nil {
		t.Fatal("ParseDocument() lost components.schemas.Thing")
	}

	if _, err := ParseDocument([]byte("{not json"), "bad.json"); !diag.IsCode(err, diag.CodeParseFailed) {
		t.Fatalf("ParseDocument(bad input) = %v, want PARSE_FAILED", err)
	}
}
