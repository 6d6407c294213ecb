package typemap

import (
	"testing"

	"github.com/blimu-dev/typegen/pkg/diag"
	"github.com/blimu-dev/typegen/pkg/ir"
)

func prim(typ, format string) *ir.ResolvedSchema {
	return &ir.ResolvedSchema{Kind: ir.KindPrimitive, Type: typ, Format: format}
}

func TestMapPrimitives(t *testing.T) {
	tests := []struct {
		name   string
		schema *ir.ResolvedSchema
		want   Primitive
	}{
		{"plain string", prim("string", ""), String},
		{"email", prim("string", "email"), Email},
		{"date", prim("string", "date"), Date},
		{"date-time", prim("string", "date-time"), DateTime},
		{"uuid", prim("string", "uuid"), UUID},
		{"uri", prim("string", "uri"), URI},
		{"byte", prim("string", "byte"), Binary},
		{"binary", prim("string", "binary"), Binary},
		{"unknown format falls back", prim("string", "hostname"), String},
		{"int32 default", prim("integer", ""), Int32},
		{"int64", prim("integer", "int64"), Int64},
		{"float", prim("number", "float"), Float32},
		{"double", prim("number", "double"), Float64},
		{"bare number is decimal", prim("number", ""), Decimal},
		{"boolean", prim("boolean", ""), Bool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := Map(tt.schema, nil)
			if err != nil {
				t.Fatalf("Map() error = %v", err)
			}
			if desc.Kind != KindPrimitive {
				t.Fatalf("Map() kind = %q, want primitive", desc.Kind)
			}
			if desc.Primitive != tt.want {
				t.Errorf("Map() primitive = %q, want %q", desc.Primitive, tt.want)
			}
		})
	}
}

func TestMapDynamic(t *testing.T) {
	desc, err := Map(&ir.ResolvedSchema{Kind: ir.KindPrimitive}, nil)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if desc.Kind != KindDynamic {
		t.Errorf("Map(typeless schema) kind = %q, want dynamic", desc.Kind)
	}
}

func TestMapUnsupportedPrimitive(t *testing.T) {
	_, err := Map(prim("file", ""), []string{"components", "schemas", "Bad"})
	if !diag.IsCode(err, diag.CodeUnsupportedType) {
		t.Fatalf("Map(file) = %v, want UNSUPPORTED_TYPE", err)
	}
}

func TestMapNil(t *testing.T) {
	if _, err := Map(nil, nil); !diag.IsCode(err, diag.CodeMissingType) {
		t.Fatal("Map(nil) must fail with MISSING_TYPE")
	}
}

func TestMapArray(t *testing.T) {
	schema := &ir.ResolvedSchema{
		Kind:  ir.KindArray,
		Items: prim("integer", "int64"),
	}
	desc, err := Map(schema, nil)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if desc.Kind != KindList {
		t.Fatalf("Map() kind = %q, want list", desc.Kind)
	}
	if desc.Element.Primitive != Int64 {
		t.Errorf("element primitive = %q, want int64", desc.Element.Primitive)
	}
	if got := desc.String(); got != "List<int64>" {
		t.Errorf("String() = %q, want List<int64>", got)
	}
}

func TestMapObjectRecord(t *testing.T) {
	schema := &ir.ResolvedSchema{
		Kind:        ir.KindObject,
		Annotations: ir.Annotations{Title: "order item"},
		Properties: []ir.Property{
			{Name: "name", Schema: prim("string", "")},
			{Name: "qty", Schema: prim("integer", "")},
		},
		Required: []string{"name"},
	}
	desc, err := Map(schema, []string{"components", "schemas", "OrderItem"})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if desc.Kind != KindRecord {
		t.Fatalf("Map() kind = %q, want record", desc.Kind)
	}
	if desc.Name != "OrderItem" {
		t.Errorf("record name = %q, want OrderItem (from title)", desc.Name)
	}
	if len(desc.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(desc.Fields))
	}
	if !desc.Fields[0].Required || desc.Fields[1].Required {
		t.Error("required flags do not match the required set")
	}
}

func TestMapObjectWithoutPropertiesIsMap(t *testing.T) {
	desc, err := Map(&ir.ResolvedSchema{Kind: ir.KindObject}, nil)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if desc.Kind != KindMap {
		t.Fatalf("Map() kind = %q, want map", desc.Kind)
	}
	if desc.Element.Kind != KindDynamic {
		t.Errorf("value kind = %q, want dynamic", desc.Element.Kind)
	}

	typed, err := Map(&ir.ResolvedSchema{
		Kind:                 ir.KindObject,
		AdditionalProperties: prim("string", ""),
	}, nil)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if typed.Element.Primitive != String {
		t.Errorf("value primitive = %q, want string", typed.Element.Primitive)
	}
}

func sumFixture() *ir.ResolvedSchema {
	name := &ir.ResolvedSchema{Kind: ir.KindPrimitive, Type: "string"}
	return &ir.ResolvedSchema{
		Kind:          ir.KindOneOfFamily,
		Discriminator: "petType",
		Properties: []ir.Property{
			{Name: "petType", Schema: prim("string", "")},
		},
		Required: []string{"petType"},
		Variants: []ir.Variant{
			{Name: "Dog", Schema: &ir.ResolvedSchema{
				Kind:       ir.KindObject,
				Properties: []ir.Property{{Name: "name", Schema: name}},
				Required:   []string{"name"},
			}},
			{Name: "Cat", Schema: &ir.ResolvedSchema{
				Kind:       ir.KindObject,
				Properties: []ir.Property{{Name: "name", Schema: name}},
			}},
		},
	}
}

func TestMapSum(t *testing.T) {
	desc, err := Map(sumFixture(), []string{"components", "schemas", "Pet"})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if desc.Kind != KindSum {
		t.Fatalf("Map() kind = %q, want sum", desc.Kind)
	}
	if desc.Discriminator != "petType" {
		t.Errorf("discriminator = %q, want petType", desc.Discriminator)
	}
	if len(desc.Fields) != 1 || desc.Fields[0].Name != "petType" {
		t.Fatalf("base fields = %v, want just petType", desc.Fields)
	}
	if len(desc.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(desc.Variants))
	}
	for _, v := range desc.Variants {
		if len(v.Fields) != 1 || v.Fields[0].Name != "name" {
			t.Errorf("variant %s fields = %v, want just name (discriminator stays on the base)", v.Name, v.Fields)
		}
	}
	if desc.Variants[0].Fields[0].Required == desc.Variants[1].Fields[0].Required {
		t.Error("per-variant required sets must be preserved")
	}
}

func TestMapUnion(t *testing.T) {
	schema := &ir.ResolvedSchema{
		Kind: ir.KindAnyOfUnion,
		Variants: []ir.Variant{
			{Name: "Card Payment", Schema: &ir.ResolvedSchema{Kind: ir.KindObject}},
			{Name: "Option2", Schema: &ir.ResolvedSchema{Kind: ir.KindObject}},
		},
		Properties: []ir.Property{{Name: "amount", Schema: prim("number", "")}},
		Required:   []string{"amount"},
	}
	desc, err := Map(schema, []string{"components", "schemas", "Payment"})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if desc.Kind != KindUnion {
		t.Fatalf("Map() kind = %q, want union", desc.Kind)
	}
	if desc.Element.Kind != KindDynamic {
		t.Error("union wrapped value must stay dynamic")
	}
	want := []string{"OfCardPayment", "OfOption2"}
	if len(desc.Constructors) != 2 || desc.Constructors[0] != want[0] || desc.Constructors[1] != want[1] {
		t.Errorf("constructors = %v, want %v", desc.Constructors, want)
	}
	if len(desc.Fields) != 1 || !desc.Fields[0].Required {
		t.Errorf("union fields = %v, want required amount", desc.Fields)
	}
}
