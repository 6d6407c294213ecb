// Package typemap converts resolved schemas into target-language-neutral
// type descriptors: primitives, collections, records, sealed variant
// families, and open union wrappers.
package typemap

import (
	"strings"

	"github.com/blimu-dev/typegen/pkg/diag"
	"github.com/blimu-dev/typegen/pkg/ir"
	"github.com/blimu-dev/typegen/pkg/utils"
)

// Kind classifies a type descriptor.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindList      Kind = "list"
	KindMap       Kind = "map"
	KindRecord    Kind = "record"
	KindSum       Kind = "sum"
	KindUnion     Kind = "union"
	// KindDynamic is the explicit open/dynamic type produced when a schema
	// carries neither a type nor properties. Renderers must handle it
	// deliberately; it is not a magic string.
	KindDynamic Kind = "dynamic"
)

// Primitive is the concrete primitive flavor, refined by format.
type Primitive string

const (
	String   Primitive = "string"
	Email    Primitive = "email"
	Date     Primitive = "date"
	DateTime Primitive = "datetime"
	UUID     Primitive = "uuid"
	URI      Primitive = "uri"
	Binary   Primitive = "binary"
	Int32    Primitive = "int32"
	Int64    Primitive = "int64"
	Float32  Primitive = "float32"
	Float64  Primitive = "float64"
	Decimal  Primitive = "decimal"
	Bool     Primitive = "bool"
)

// Field is a named member of a record or variant type.
type Field struct {
	Name     string
	Type     *Descriptor
	Required bool
	Nullable bool
}

// VariantType is one member of a sum type: the common fields plus the
// variant's own, minus the discriminator (which lives only on the base).
type VariantType struct {
	Name   string
	Fields []Field
}

// Descriptor is the target type model for one schema node.
type Descriptor struct {
	Kind      Kind
	Primitive Primitive // when Kind == KindPrimitive
	Name      string    // record/sum name, when derived from a title or path

	Element *Descriptor // list element, or map value type

	Fields []Field // record fields, or the sum type's base carrier fields

	// Sum type
	Discriminator string
	Variants      []VariantType

	// Union wrapper: one named constructor per anyOf variant; the wrapped
	// value itself stays opaque (dynamic).
	Constructors []string
}

// String renders a compact human-readable label for the descriptor, e.g.
// "string", "List<Int64>", "Record(Order)".
func (d *Descriptor) String() string {
	switch d.Kind {
	case KindPrimitive:
		return string(d.Primitive)
	case KindList:
		return "List<" + d.Element.String() + ">"
	case KindMap:
		return "Map<string, " + d.Element.String() + ">"
	case KindRecord:
		if d.Name != "" {
			return "Record(" + d.Name + ")"
		}
		return "Record"
	case KindSum:
		if d.Name != "" {
			return "Sum(" + d.Name + ")"
		}
		return "Sum"
	case KindUnion:
		if d.Name != "" {
			return "Union(" + d.Name + ")"
		}
		return "Union"
	case KindDynamic:
		return "dynamic"
	}
	return string(d.Kind)
}

// Map converts a resolved schema into a type descriptor. path is the schema
// breadcrumb used for diagnostics and for naming anonymous records.
func Map(schema *ir.ResolvedSchema, path []string) (*Descriptor, error) {
	if schema == nil {
		return nil, diag.New(diag.CodeMissingType, "no schema to map").WithPath(path...)
	}
	switch schema.Kind {
	case ir.KindPrimitive:
		return mapPrimitive(schema, path)
	case ir.KindArray:
		elem, err := Map(schema.Items, append(path, "items"))
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindList, Element: elem}, nil
	case ir.KindObject:
		return mapObject(schema, path)
	case ir.KindOneOfFamily:
		return mapSum(schema, path)
	case ir.KindAnyOfUnion:
		return mapUnion(schema, path)
	}
	return nil, diag.New(diag.CodeUnsupportedType, "unsupported schema kind %q", schema.Kind).WithPath(path...)
}

func mapPrimitive(schema *ir.ResolvedSchema, path []string) (*Descriptor, error) {
	switch schema.Type {
	case "":
		return &Descriptor{Kind: KindDynamic}, nil
	case "string":
		return &Descriptor{Kind: KindPrimitive, Primitive: stringFlavor(schema.Format)}, nil
	case "integer":
		if schema.Format == "int64" {
			return &Descriptor{Kind: KindPrimitive, Primitive: Int64}, nil
		}
		return &Descriptor{Kind: KindPrimitive, Primitive: Int32}, nil
	case "number":
		switch schema.Format {
		case "float":
			return &Descriptor{Kind: KindPrimitive, Primitive: Float32}, nil
		case "double":
			return &Descriptor{Kind: KindPrimitive, Primitive: Float64}, nil
		default:
			// Unqualified numbers map to arbitrary-precision decimals.
			return &Descriptor{Kind: KindPrimitive, Primitive: Decimal}, nil
		}
	case "boolean":
		return &Descriptor{Kind: KindPrimitive, Primitive: Bool}, nil
	}
	return nil, diag.New(diag.CodeUnsupportedType, "unsupported primitive type %q", schema.Type).
		WithPath(path...).
		WithSuggestion("use one of string, integer, number, boolean")
}

func stringFlavor(format string) Primitive {
	switch format {
	case "email":
		return Email
	case "date":
		return Date
	case "date-time":
		return DateTime
	case "uuid":
		return UUID
	case "uri":
		return URI
	case "byte", "binary":
		return Binary
	default:
		return String
	}
}

func mapObject(schema *ir.ResolvedSchema, path []string) (*Descriptor, error) {
	if len(schema.Properties) == 0 {
		// No declared properties: a generic string-keyed map.
		value := &Descriptor{Kind: KindDynamic}
		if schema.AdditionalProperties != nil {
			v, err := Map(schema.AdditionalProperties, append(path, "additionalProperties"))
			if err != nil {
				return nil, err
			}
			value = v
		}
		return &Descriptor{Kind: KindMap, Element: value}, nil
	}
	fields, err := mapFields(schema, schema.Properties, path)
	if err != nil {
		return nil, err
	}
	return &Descriptor{Kind: KindRecord, Name: recordName(schema, path), Fields: fields}, nil
}

// mapSum builds the closed sum type for a oneOf family: a base carrier with
// the common fields (including the discriminator) and one variant type per
// member carrying common fields plus its own, minus the discriminator.
func mapSum(schema *ir.ResolvedSchema, path []string) (*Descriptor, error) {
	base, err := mapFields(schema, schema.Properties, path)
	if err != nil {
		return nil, err
	}

	var common []Field
	for _, f := range base {
		if f.Name != schema.Discriminator {
			common = append(common, f)
		}
	}

	out := &Descriptor{
		Kind:          KindSum,
		Name:          recordName(schema, path),
		Discriminator: schema.Discriminator,
		Fields:        base,
	}
	for _, v := range schema.Variants {
		vt := VariantType{Name: utils.ToPascalCase(v.Name)}
		vt.Fields = append(vt.Fields, common...)
		for _, p := range v.Schema.Properties {
			if p.Name == schema.Discriminator || hasField(vt.Fields, p.Name) {
				continue
			}
			ft, err := Map(p.Schema, append(path, "properties", p.Name))
			if err != nil {
				return nil, err
			}
			vt.Fields = append(vt.Fields, Field{
				Name:     p.Name,
				Type:     ft,
				Required: v.Schema.IsRequired(p.Name),
				Nullable: p.Schema.Nullable,
			})
		}
		out.Variants = append(out.Variants, vt)
	}
	return out, nil
}

// mapUnion builds the open wrapper for an anyOf union: an opaque value plus
// the set of variant names it may satisfy, with one named constructor per
// variant.
func mapUnion(schema *ir.ResolvedSchema, path []string) (*Descriptor, error) {
	out := &Descriptor{
		Kind:    KindUnion,
		Name:    recordName(schema, path),
		Element: &Descriptor{Kind: KindDynamic},
	}
	for _, v := range schema.Variants {
		out.Constructors = append(out.Constructors, "Of"+utils.ToPascalCase(v.Name))
	}
	fields, err := mapFields(schema, schema.Properties, path)
	if err != nil {
		return nil, err
	}
	out.Fields = fields
	return out, nil
}

func mapFields(owner *ir.ResolvedSchema, props []ir.Property, path []string) ([]Field, error) {
	var fields []Field
	for _, p := range props {
		ft, err := Map(p.Schema, append(path, "properties", p.Name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{
			Name:     p.Name,
			Type:     ft,
			Required: owner.IsRequired(p.Name),
			Nullable: p.Schema.Nullable,
		})
	}
	return fields, nil
}

func hasField(fields []Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// recordName derives a stable name for a record: its title when present,
// otherwise the last path segment.
func recordName(schema *ir.ResolvedSchema, path []string) string {
	if schema.Annotations.Title != "" {
		return utils.ToPascalCase(schema.Annotations.Title)
	}
	for i := len(path) - 1; i >= 0; i-- {
		seg := path[i]
		if seg == "" || seg == "properties" || seg == "items" || strings.HasPrefix(seg, "allOf") {
			continue
		}
		return utils.ToPascalCase(seg)
	}
	return ""
}
