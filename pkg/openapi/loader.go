package openapi

import (
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/blimu-dev/typegen/pkg/diag"
)

// LoadDocument loads an OpenAPI document from a local file path or an HTTP(S) URL
func LoadDocument(input string) (*openapi3.T, error) {
	loader := &openapi3.Loader{IsExternalRefsAllowed: true}
	return LoadDocumentWithLoader(loader, input)
}

// LoadDocumentWithLoader loads an OpenAPI document using a custom loader
func LoadDocumentWithLoader(loader *openapi3.Loader, input string) (*openapi3.T, error) {
	// Try to parse as URL; if it looks like http(s), fetch via URL
	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return loader.LoadFromURI(u)
	}
	// Fallback to reading from filesystem path
	return loader.LoadFromFile(input)
}

// ParseDocument parses raw bytes as an OpenAPI document. The kin-openapi
// loader accepts both JSON and YAML input; SniffFormat is only used to label
// parse failures.
func ParseDocument(data []byte, location string) (*openapi3.T, error) {
	loader := &openapi3.Loader{IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, diag.New(diag.CodeParseFailed, "failed to parse %s document %q", SniffFormat(data, location), location).
			WithCause(err).
			WithSuggestion("check that the document is well-formed JSON or YAML")
	}
	return doc, nil
}

// SniffFormat guesses the serialization format of a document from its
// content, falling back to the location's extension.
func SniffFormat(data []byte, location string) string {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "JSON"
	}
	lower := strings.ToLower(location)
	if strings.HasSuffix(lower, ".json") {
		return "JSON"
	}
	return "YAML"
}

// ValidateMinimal checks the structural minimum the engine needs: a 3.x
// version field and a populated info block. Unlike full document validation
// this never dereferences anything; it mirrors what the resolution engine
// actually relies on.
func ValidateMinimal(doc *openapi3.T) error {
	if doc == nil {
		return diag.New(diag.CodeInvalidDocument, "document is empty")
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		return diag.New(diag.CodeUnsupportedVersion, "unsupported OpenAPI version %q", doc.OpenAPI).
			WithPath("openapi").
			WithSuggestion("only OpenAPI 3.x documents are supported")
	}
	if doc.Info == nil || doc.Info.Title == "" {
		return diag.New(diag.CodeMissingField, "missing required field %q", "info.title").
			WithPath("info", "title")
	}
	if doc.Info.Version == "" {
		return diag.New(diag.CodeMissingField, "missing required field %q", "info.version").
			WithPath("info", "version")
	}
	hasPaths := doc.Paths != nil && doc.Paths.Len() > 0
	hasSchemas := doc.Components != nil && len(doc.Components.Schemas) > 0
	if !hasPaths && !hasSchemas {
		return diag.New(diag.CodeMissingField, "document declares neither paths nor component schemas").
			WithPath("paths").
			WithSuggestion("add at least one path item or components.schemas entry")
	}
	return nil
}

// ValidateDocument loads a document and runs minimal validation
func ValidateDocument(input string) error {
	doc, err := LoadDocument(input)
	if err != nil {
		return err
	}
	return ValidateMinimal(doc)
}
