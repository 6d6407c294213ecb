package validation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-openapi/swag"

	"github.com/blimu-dev/typegen/pkg/condition"
	"github.com/blimu-dev/typegen/pkg/diag"
	"github.com/blimu-dev/typegen/pkg/ir"
)

// Options selects which format-driven rules are active. Email formats always
// get at least a plain email directive; the named registry rules fire only
// when explicitly requested.
type Options struct {
	UniqueEmail    bool
	StrongPassword bool
	PhoneNumber    bool
}

// Synthesizer derives validation directives for schema properties. The
// registry is passed in, not global, so callers and tests can construct
// isolated rule sets.
type Synthesizer struct {
	registry *Registry
	opts     Options
}

// NewSynthesizer creates a Synthesizer over the given registry (a fresh
// built-in registry when nil).
func NewSynthesizer(registry *Registry, opts Options) *Synthesizer {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Synthesizer{registry: registry, opts: opts}
}

// Registry exposes the rule registry for caller registrations.
func (s *Synthesizer) Registry() *Registry { return s.registry }

// Synthesize derives the ordered directive set for one property of owner.
// Directives are always returned; the error, when non-nil, aggregates the
// per-rule failures (unknown rule names, malformed condition text) that were
// skipped without aborting synthesis of the remaining directives.
func (s *Synthesizer) Synthesize(name string, prop *ir.ResolvedSchema, required bool, owner *ir.ResolvedSchema) ([]Directive, error) {
	if prop == nil {
		return nil, diag.New(diag.CodeMissingType, "property %s has no schema", name)
	}
	var set DirectiveSet
	var errs []error

	if required && !prop.Nullable {
		set.Add(notNull())
	}

	s.formatDirectives(&set, name, prop)
	boundsDirectives(&set, prop)

	if prop.IsObjectLike() || len(prop.Properties) > 0 {
		set.Add(valid())
	}

	if prop.Extensions != nil {
		errs = append(errs, s.applyExtension(&set, name, prop.Extensions[ExtensionKey])...)
	}
	if owner != nil && owner.Extensions != nil {
		errs = append(errs, s.applyOwnerExtension(&set, name, owner.Extensions[ExtensionKey])...)
	}
	return set.List(), errors.Join(errs...)
}

func (s *Synthesizer) formatDirectives(set *DirectiveSet, name string, prop *ir.ResolvedSchema) {
	switch prop.Format {
	case "email":
		if s.opts.UniqueEmail {
			if rule, ok := s.registry.Lookup("uniqueEmail"); ok {
				set.Add(fromRule(rule, name, nil))
				return
			}
		}
		set.Add(email())
	case "password":
		if s.opts.StrongPassword {
			if rule, ok := s.registry.Lookup("strongPassword"); ok {
				set.Add(fromRule(rule, name, nil))
			}
		}
	case "phone":
		if s.opts.PhoneNumber {
			if rule, ok := s.registry.Lookup("phoneNumber"); ok {
				set.Add(fromRule(rule, name, nil))
			}
		}
	}
}

func boundsDirectives(set *DirectiveSet, prop *ir.ResolvedSchema) {
	if prop.MinLength != nil || prop.MaxLength != nil {
		set.Add(size(prop.MinLength, prop.MaxLength))
	}
	if prop.Pattern != "" {
		set.Add(pattern(prop.Pattern))
	}
	if prop.Minimum != nil {
		set.Add(bound("Min", *prop.Minimum))
	}
	if prop.Maximum != nil {
		set.Add(bound("Max", *prop.Maximum))
	}
	if prop.MinItems != nil || prop.MaxItems != nil {
		set.Add(size(prop.MinItems, prop.MaxItems))
	}
}

// applyExtension handles the property's own x-validation block: explicit
// rule names and conditional rules.
func (s *Synthesizer) applyExtension(set *DirectiveSet, name string, raw any) []error {
	ext, err := ParseExtension(raw)
	if err != nil {
		return []error{err}
	}
	if ext == nil {
		return nil
	}
	var errs []error
	for _, ruleName := range ext.Rules {
		rule, ok := s.registry.Lookup(ruleName)
		if !ok {
			errs = append(errs, unknownRule(ruleName, s.registry))
			continue
		}
		set.Add(fromRule(rule, name, nil))
	}
	for _, cr := range ext.ConditionalRules {
		if _, err := condition.Parse(cr.Condition); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ruleName := range cr.Validations {
			rule, ok := s.registry.Lookup(ruleName)
			if !ok {
				errs = append(errs, unknownRule(ruleName, s.registry))
				continue
			}
			d := fromRule(rule, name, nil)
			d.Condition = cr.Condition
			if cr.Message != "" {
				d.Message = cr.Message
			}
			set.Add(d)
		}
	}
	return errs
}

// applyOwnerExtension handles the owning schema's x-validation block:
// field-equality groups this property belongs to, and dependencies
// targeting it.
func (s *Synthesizer) applyOwnerExtension(set *DirectiveSet, name string, raw any) []error {
	ext, err := ParseExtension(raw)
	if err != nil {
		return []error{err}
	}
	if ext == nil {
		return nil
	}
	var errs []error
	if fe := ext.FieldEquality; fe != nil && swag.ContainsStrings(fe.Fields, name) {
		d := Directive{
			Annotation: "FieldsEqual",
			Params:     []Param{{Name: "fields", Value: fieldList(fe.Fields)}},
			Imports:    []string{"com.example.validation.FieldsEqual"},
			Message:    fe.Message,
		}
		set.Add(d)
	}
	for _, dep := range ext.DependenciesFor(name) {
		switch dep.Kind {
		case DependencyRequired:
			set.Add(notNull())
		case DependencyForbidden:
			set.Add(forbidden())
		case DependencyConditional:
			if _, err := condition.Parse(dep.Condition); err != nil {
				errs = append(errs, err)
				continue
			}
			d := notNull()
			d.Condition = dep.Condition
			set.Add(d)
		}
	}
	return errs
}

func unknownRule(name string, registry *Registry) error {
	known := registry.Names()
	return diag.New(diag.CodeUnknownRule, "no validation rule registered under %q", name).
		WithSuggestion("register the rule first; known rules: %s", strings.Join(known, ", "))
}

func fieldList(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = strconv.Quote(f)
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}
