// Package diag defines the error type surfaced by the resolution engine.
//
// Every failure carries a stable error code, the schema path from the
// document root to the failing node, and a remediation suggestion so that
// callers (and tests) can assert on where a failure occurred, not just that
// one occurred.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/goutils"
)

// Error codes, one per failure kind.
const (
	CodeInvalidDocument            = "INVALID_DOCUMENT"
	CodeUnsupportedVersion         = "UNSUPPORTED_OPENAPI_VERSION"
	CodeMissingField               = "MISSING_FIELD"
	CodeNotFound                   = "NOT_FOUND"
	CodeDomainNotAllowed           = "DOMAIN_NOT_ALLOWED"
	CodeFetchFailed                = "EXTERNAL_FETCH_FAILED"
	CodeParseFailed                = "PARSE_FAILED"
	CodeReferenceNotFound          = "REFERENCE_NOT_FOUND"
	CodeCircularReference          = "CIRCULAR_REFERENCE"
	CodeAllOfConflict              = "ALL_OF_CONFLICT"
	CodeOneOfMissingDiscriminator  = "ONE_OF_MISSING_DISCRIMINATOR"
	CodeAnyOfEmpty                 = "ANY_OF_EMPTY"
	CodeUnsupportedType            = "UNSUPPORTED_TYPE"
	CodeMissingType                = "MISSING_TYPE"
	CodeConditionParse             = "CONDITION_PARSE"
	CodeUnknownRule                = "UNKNOWN_VALIDATION_RULE"
)

// Error is the payload shape surfaced across the engine boundary.
type Error struct {
	Code       string   `json:"errorCode"`
	Message    string   `json:"message"`
	SchemaPath []string `json:"schemaPath,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Cause      error    `json:"-"`
}

// New creates an Error with the given code and formatted message.
func New(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.SchemaPath) > 0 {
		b.WriteString(" at path: ")
		b.WriteString(strings.Join(e.SchemaPath, "."))
	}
	b.WriteString(" [")
	b.WriteString(e.Code)
	b.WriteString("]")
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Suggestion != "" {
		b.WriteString("\nSuggestion: ")
		b.WriteString(e.Suggestion)
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// WithPath sets the schema-path breadcrumb and returns the error.
func (e *Error) WithPath(path ...string) *Error {
	e.SchemaPath = append([]string(nil), path...)
	return e
}

// WithSuggestion attaches a remediation hint.
func (e *Error) WithSuggestion(format string, args ...any) *Error {
	e.Suggestion = fmt.Sprintf(format, args...)
	return e
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// CodeOf returns the engine error code carried by err, or "" when err is not
// an engine error.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Excerpt shortens free-form text (typically an offending condition string)
// for inclusion in messages.
func Excerpt(text string) string {
	short, err := goutils.Abbreviate(strings.TrimSpace(text), 60)
	if err != nil {
		return text
	}
	return short
}
