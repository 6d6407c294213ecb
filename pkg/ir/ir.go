// Package ir holds the normalized, language-agnostic schema model produced by
// the resolution engine. A ResolvedSchema is composition-free and
// reference-free: allOf/oneOf/anyOf and $ref have already been flattened into
// one concrete node plus auxiliary variant lists.
package ir

import "github.com/go-openapi/swag"

// Kind represents the kind of a resolved schema node.
type Kind string

const (
	KindPrimitive   Kind = "primitive"
	KindArray       Kind = "array"
	KindObject      Kind = "object"
	KindOneOfFamily Kind = "oneOfFamily"
	KindAnyOfUnion  Kind = "anyOfUnion"
)

// Annotations captures non-structural metadata carried through resolution.
type Annotations struct {
	Title       string
	Description string
	Default     any
	Example     any
	Deprecated  bool
	ReadOnly    bool
	WriteOnly   bool
}

// Property is a named member of an object schema. Property order is
// deterministic (lexicographic by name); the engine never relies on document
// order because the underlying parser does not preserve it.
type Property struct {
	Name   string
	Schema *ResolvedSchema
}

// Variant is a named member of a oneOf family or anyOf union, in member order.
type Variant struct {
	Name   string
	Schema *ResolvedSchema
}

// ResolvedSchema is the composition-free, reference-free normalized form.
//
// Kind is always concrete. Object kind carries Properties (names unique) and
// Required. OneOfFamily carries Discriminator and an ordered Variants list.
// AnyOfUnion carries the union of member properties and member required sets.
type ResolvedSchema struct {
	Kind     Kind
	Type     string // primitive type name: string, integer, number, boolean; empty means dynamic
	Format   string
	Nullable bool

	Annotations Annotations

	// Object
	Properties           []Property
	Required             []string
	AdditionalProperties *ResolvedSchema

	// Array
	Items *ResolvedSchema

	// oneOfFamily / anyOfUnion
	Discriminator string
	Variants      []Variant

	// Constraints
	Enum      []any
	MinLength *uint64
	MaxLength *uint64
	Pattern   string
	Minimum   *float64
	Maximum   *float64
	MinItems  *uint64
	MaxItems  *uint64

	// Vendor extensions (x-validation and friends), as parsed.
	Extensions map[string]any
}

// Property returns the named property schema, or nil when absent.
func (s *ResolvedSchema) Property(name string) *ResolvedSchema {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

// HasProperty reports whether the schema declares the named property.
func (s *ResolvedSchema) HasProperty(name string) bool {
	return s.Property(name) != nil
}

// IsRequired reports whether the named property is in the required set.
func (s *ResolvedSchema) IsRequired(name string) bool {
	return swag.ContainsStrings(s.Required, name)
}

// IsObjectLike reports whether the schema carries declared properties,
// either as a plain object or as a composition result.
func (s *ResolvedSchema) IsObjectLike() bool {
	switch s.Kind {
	case KindObject, KindOneOfFamily, KindAnyOfUnion:
		return true
	}
	return len(s.Properties) > 0
}

// IsDynamic reports whether the schema degraded to the open/dynamic type:
// no type, no properties, nothing else distinguishing.
func (s *ResolvedSchema) IsDynamic() bool {
	return s.Kind == KindPrimitive && s.Type == ""
}

// Variant returns the named variant schema, or nil when absent.
func (s *ResolvedSchema) Variant(name string) *ResolvedSchema {
	for _, v := range s.Variants {
		if v.Name == name {
			return v.Schema
		}
	}
	return nil
}
