// Package resolver turns a graph of schema references and composition
// keywords (allOf, oneOf, anyOf) into flat, conflict-free ResolvedSchema
// nodes. References may point inside the current document or into external
// documents served by a refstore.Store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/imdario/mergo"

	"github.com/blimu-dev/typegen/pkg/diag"
	"github.com/blimu-dev/typegen/pkg/ir"
	"github.com/blimu-dev/typegen/pkg/pointer"
	"github.com/blimu-dev/typegen/pkg/refstore"
)

// RequiredPolicy decides the required-name set of a resolved anyOf union
// from its resolved members. The default unions every member's required
// names; see AnyOfRequiredUnion for why that is a deliberate choice.
type RequiredPolicy func(members []*ir.ResolvedSchema) []string

// AnyOfRequiredUnion reports a field as required when any member requires
// it. Semantically debatable for "match any", but it is the documented
// behavior; swap in AnyOfRequiredIntersection to get the stricter reading.
func AnyOfRequiredUnion(members []*ir.ResolvedSchema) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range members {
		for _, r := range m.Required {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// AnyOfRequiredIntersection reports a field as required only when every
// member requires it.
func AnyOfRequiredIntersection(members []*ir.ResolvedSchema) []string {
	if len(members) == 0 {
		return nil
	}
	var out []string
	for _, r := range members[0].Required {
		inAll := true
		for _, m := range members[1:] {
			if !m.IsRequired(r) {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, r)
		}
	}
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the reference store used for external references.
func WithStore(store *refstore.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithWorkers sets the batch-resolution worker bound.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithAnyOfRequiredPolicy overrides the anyOf required-set policy.
func WithAnyOfRequiredPolicy(p RequiredPolicy) Option {
	return func(e *Engine) { e.anyOfRequired = p }
}

// Engine resolves schemas. It is stateless apart from the reference store
// and safe for concurrent use.
type Engine struct {
	store         *refstore.Store
	workers       int
	anyOfRequired RequiredPolicy
}

// New creates an Engine. Without options it resolves local references only
// through a default store and unions anyOf required sets.
func New(opts ...Option) *Engine {
	e := &Engine{anyOfRequired: AnyOfRequiredUnion}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = refstore.New(refstore.Options{})
	}
	return e
}

// state threads the document context, schema-path breadcrumb, and the
// visited-reference set through one resolution.
type state struct {
	doc      *openapi3.T
	path     []string
	visiting map[string]bool
}

func (st *state) at(segments ...string) *state {
	next := make([]string, 0, len(st.path)+len(segments))
	next = append(next, st.path...)
	next = append(next, segments...)
	return &state{doc: st.doc, path: next, visiting: st.visiting}
}

// ResolveSchema resolves one schema (usually a component) into its
// normalized form. basePath is the breadcrumb from the document root, e.g.
// "components", "schemas", "Order".
func (e *Engine) ResolveSchema(ctx context.Context, doc *openapi3.T, sr *openapi3.SchemaRef, basePath ...string) (*ir.ResolvedSchema, error) {
	st := &state{doc: doc, path: basePath, visiting: map[string]bool{}}
	return e.resolve(ctx, st, sr)
}

func (e *Engine) resolve(ctx context.Context, st *state, sr *openapi3.SchemaRef) (*ir.ResolvedSchema, error) {
	if sr == nil {
		// Nothing to say about this node; degrade to the dynamic type.
		return &ir.ResolvedSchema{Kind: ir.KindPrimitive}, nil
	}
	if sr.Ref != "" {
		return e.resolveRef(ctx, st, sr.Ref)
	}
	s := sr.Value
	if s == nil {
		return &ir.ResolvedSchema{Kind: ir.KindPrimitive}, nil
	}

	// Composition keywords are mutually exclusive per node; when mixed,
	// allOf > oneOf > anyOf wins.
	switch {
	case len(s.AllOf) > 0:
		return e.resolveAllOf(ctx, st, s)
	case len(s.OneOf) > 0:
		return e.resolveOneOf(ctx, st, s)
	case s.AnyOf != nil:
		// Present but empty anyOf is an error, not a silent object.
		return e.resolveAnyOf(ctx, st, s)
	}
	return e.lower(ctx, st, s)
}

// resolveRef dereferences a local or external reference, guarding against
// circular chains with the visited set. The set is stack-scoped: a reference
// is marked while its subtree resolves and unmarked afterwards, so diamonds
// are fine and only true cycles fail.
func (e *Engine) resolveRef(ctx context.Context, st *state, ref string) (*ir.ResolvedSchema, error) {
	if st.visiting[ref] {
		return nil, diag.New(diag.CodeCircularReference, "circular reference detected: %s", ref).
			WithPath(st.path...).
			WithSuggestion("break the cycle by making one side of the reference optional or extracting shared fields")
	}
	st.visiting[ref] = true
	defer delete(st.visiting, ref)

	if strings.HasPrefix(ref, "#") {
		target, err := pointer.Resolve(st.doc, ref)
		if err != nil {
			var de *diag.Error
			if ok := asDiag(err, &de); ok && len(de.SchemaPath) == 0 {
				de.SchemaPath = st.path
			}
			return nil, err
		}
		return e.resolve(ctx, st, target)
	}

	// External reference: location#/fragment, fetched through the store.
	location, fragment, _ := strings.Cut(ref, "#")
	extDoc, target, err := e.store.Resolve(ctx, location, fragment)
	if err != nil {
		return nil, wrapExternal(err, ref, st.path)
	}
	if target == nil {
		// Whole-document reference; resolve its root component set is not
		// meaningful, treat as dynamic.
		return &ir.ResolvedSchema{Kind: ir.KindPrimitive}, nil
	}
	ext := &state{doc: extDoc, path: st.path, visiting: st.visiting}
	return e.resolve(ctx, ext, target)
}

func wrapExternal(err error, ref string, path []string) error {
	var de *diag.Error
	if asDiag(err, &de) {
		if len(de.SchemaPath) == 0 {
			de.SchemaPath = path
		}
		return de
	}
	return diag.New(diag.CodeFetchFailed, "failed to resolve external reference %q", ref).
		WithPath(path...).
		WithCause(err)
}

// resolveAllOf merges every member, in array order, into one object schema.
// A property that reappears with a different primitive type is a hard
// conflict; title/description/example are filled from the first member that
// supplies them and never overwritten.
func (e *Engine) resolveAllOf(ctx context.Context, st *state, s *openapi3.Schema) (*ir.ResolvedSchema, error) {
	acc := &ir.ResolvedSchema{
		Kind:        ir.KindObject,
		Nullable:    s.Nullable,
		Annotations: annotationsOf(s),
		Extensions:  s.Extensions,
	}
	for i, member := range s.AllOf {
		m, err := e.resolve(ctx, st.at("allOf", strconv.Itoa(i)), member)
		if err != nil {
			return nil, err
		}
		for _, p := range m.Properties {
			existing := acc.Property(p.Name)
			if existing == nil {
				acc.Properties = append(acc.Properties, p)
				continue
			}
			if conflicts(existing, p.Schema) {
				return nil, diag.New(diag.CodeAllOfConflict,
					"allOf member %d redefines property %q with type %q (already %q)",
					i, p.Name, typeLabel(p.Schema), typeLabel(existing)).
					WithPath(append(st.path, "allOf", strconv.Itoa(i), "properties", p.Name)...).
					WithSuggestion("give the property the same type in every allOf member, or rename one of them")
			}
			// Same type: first definition wins.
		}
		for _, r := range m.Required {
			if !acc.IsRequired(r) {
				acc.Required = append(acc.Required, r)
			}
		}
		// Fill-only merge keeps the first member's metadata.
		if err := mergo.Merge(&acc.Annotations, m.Annotations); err != nil {
			return nil, fmt.Errorf("merging allOf metadata: %w", err)
		}
	}
	sortProperties(acc)
	return acc, nil
}

// resolveOneOf builds a discriminated variant family. A discriminator is
// mandatory; the engine intentionally does not guess one.
func (e *Engine) resolveOneOf(ctx context.Context, st *state, s *openapi3.Schema) (*ir.ResolvedSchema, error) {
	if s.Discriminator == nil || s.Discriminator.PropertyName == "" {
		return nil, diag.New(diag.CodeOneOfMissingDiscriminator, "oneOf schema has no discriminator").
			WithPath(st.path...).
			WithSuggestion("add discriminator.propertyName naming the property that selects the variant")
	}
	disc := s.Discriminator.PropertyName

	base := &ir.ResolvedSchema{
		Kind:          ir.KindOneOfFamily,
		Discriminator: disc,
		Nullable:      s.Nullable,
		Annotations:   annotationsOf(s),
		Extensions:    s.Extensions,
	}
	if err := e.lowerProperties(ctx, st, s, base); err != nil {
		return nil, err
	}

	for i, member := range s.OneOf {
		mst := st.at("oneOf", strconv.Itoa(i))
		m, err := e.resolve(ctx, mst, member)
		if err != nil {
			return nil, err
		}
		name := variantName(member, m, fmt.Sprintf("Variant%d", i+1))
		base.Variants = append(base.Variants, ir.Variant{Name: name, Schema: m})
	}

	// The discriminator lives on the base as a required string property.
	if !base.HasProperty(disc) {
		base.Properties = append(base.Properties, ir.Property{
			Name:   disc,
			Schema: &ir.ResolvedSchema{Kind: ir.KindPrimitive, Type: "string"},
		})
		sortProperties(base)
	}
	if !base.IsRequired(disc) {
		base.Required = append(base.Required, disc)
	}
	return base, nil
}

// resolveAnyOf builds an open union: the property set is the union of all
// members' properties (first seen wins) and the required set follows the
// configured policy.
func (e *Engine) resolveAnyOf(ctx context.Context, st *state, s *openapi3.Schema) (*ir.ResolvedSchema, error) {
	if len(s.AnyOf) == 0 {
		return nil, diag.New(diag.CodeAnyOfEmpty, "anyOf has no members").
			WithPath(st.path...).
			WithSuggestion("declare at least one member schema, or drop the anyOf keyword")
	}

	out := &ir.ResolvedSchema{
		Kind:        ir.KindAnyOfUnion,
		Nullable:    s.Nullable,
		Annotations: annotationsOf(s),
		Extensions:  s.Extensions,
	}
	members := make([]*ir.ResolvedSchema, 0, len(s.AnyOf))
	for i, member := range s.AnyOf {
		mst := st.at("anyOf", strconv.Itoa(i))
		m, err := e.resolve(ctx, mst, member)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		name := variantName(member, m, fmt.Sprintf("Option%d", i+1))
		out.Variants = append(out.Variants, ir.Variant{Name: name, Schema: m})
		for _, p := range m.Properties {
			if !out.HasProperty(p.Name) {
				out.Properties = append(out.Properties, p)
			}
		}
	}
	out.Required = e.anyOfRequired(members)
	sortProperties(out)
	return out, nil
}

// lower converts a composition-free schema node.
func (e *Engine) lower(ctx context.Context, st *state, s *openapi3.Schema) (*ir.ResolvedSchema, error) {
	out := &ir.ResolvedSchema{
		Kind:        ir.KindPrimitive,
		Format:      s.Format,
		Nullable:    s.Nullable,
		Annotations: annotationsOf(s),
		Enum:        s.Enum,
		Extensions:  s.Extensions,
	}

	switch {
	case s.Type == nil:
		if len(s.Properties) > 0 {
			// No type but declared properties: treat as object.
			out.Kind = ir.KindObject
			if err := e.lowerProperties(ctx, st, s, out); err != nil {
				return nil, err
			}
			return out, nil
		}
		// Neither type nor properties: the open/dynamic type. Deliberate
		// leniency for partially-specified documents.
		return out, nil
	case s.Type.Is(openapi3.TypeString):
		out.Type = "string"
		if s.MinLength > 0 {
			v := s.MinLength
			out.MinLength = &v
		}
		out.MaxLength = s.MaxLength
		out.Pattern = s.Pattern
	case s.Type.Is(openapi3.TypeInteger):
		out.Type = "integer"
		out.Minimum = s.Min
		out.Maximum = s.Max
	case s.Type.Is(openapi3.TypeNumber):
		out.Type = "number"
		out.Minimum = s.Min
		out.Maximum = s.Max
	case s.Type.Is(openapi3.TypeBoolean):
		out.Type = "boolean"
	case s.Type.Is(openapi3.TypeArray):
		out.Kind = ir.KindArray
		if s.MinItems > 0 {
			v := s.MinItems
			out.MinItems = &v
		}
		out.MaxItems = s.MaxItems
		item, err := e.resolve(ctx, st.at("items"), s.Items)
		if err != nil {
			return nil, err
		}
		out.Items = item
	case s.Type.Is(openapi3.TypeObject):
		out.Kind = ir.KindObject
		if err := e.lowerProperties(ctx, st, s, out); err != nil {
			return nil, err
		}
		if s.AdditionalProperties.Schema != nil {
			ap, err := e.resolve(ctx, st.at("additionalProperties"), s.AdditionalProperties.Schema)
			if err != nil {
				return nil, err
			}
			out.AdditionalProperties = ap
		}
	case s.Type.Is(openapi3.TypeNull):
		out.Nullable = true
	default:
		return nil, diag.New(diag.CodeUnsupportedType, "unsupported schema type %q", strings.Join(s.Type.Slice(), ",")).
			WithPath(st.path...).
			WithSuggestion("use one of string, integer, number, boolean, array, object")
	}
	return out, nil
}

func (e *Engine) lowerProperties(ctx context.Context, st *state, s *openapi3.Schema, out *ir.ResolvedSchema) error {
	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p, err := e.resolve(ctx, st.at("properties", n), s.Properties[n])
		if err != nil {
			return err
		}
		out.Properties = append(out.Properties, ir.Property{Name: n, Schema: p})
	}
	for _, r := range s.Required {
		if !out.IsRequired(r) {
			out.Required = append(out.Required, r)
		}
	}
	return nil
}

// conflicts reports a primitive type clash between two resolved property
// schemas. Same-kind non-primitive nodes merge silently (first wins).
func conflicts(a, b *ir.ResolvedSchema) bool {
	if a.Kind != b.Kind {
		return !(a.IsDynamic() || b.IsDynamic())
	}
	if a.Kind == ir.KindPrimitive {
		return a.Type != b.Type && a.Type != "" && b.Type != ""
	}
	return false
}

func typeLabel(s *ir.ResolvedSchema) string {
	if s.Kind == ir.KindPrimitive {
		if s.Type == "" {
			return "dynamic"
		}
		return s.Type
	}
	return string(s.Kind)
}

// variantName names a oneOf/anyOf member: its own title, else the component
// name its reference points at, else the positional fallback.
func variantName(member *openapi3.SchemaRef, resolved *ir.ResolvedSchema, fallback string) string {
	if resolved.Annotations.Title != "" {
		return resolved.Annotations.Title
	}
	if member != nil && member.Ref != "" {
		parts := strings.Split(member.Ref, "/")
		if name := parts[len(parts)-1]; name != "" {
			return name
		}
	}
	return fallback
}

func annotationsOf(s *openapi3.Schema) ir.Annotations {
	return ir.Annotations{
		Title:       s.Title,
		Description: s.Description,
		Default:     s.Default,
		Example:     s.Example,
		Deprecated:  s.Deprecated,
		ReadOnly:    s.ReadOnly,
		WriteOnly:   s.WriteOnly,
	}
}

func sortProperties(s *ir.ResolvedSchema) {
	sort.SliceStable(s.Properties, func(i, j int) bool {
		return s.Properties[i].Name < s.Properties[j].Name
	})
}

func asDiag(err error, target **diag.Error) bool {
	return errors.As(err, target)
}
