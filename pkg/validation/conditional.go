package validation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/blimu-dev/typegen/pkg/condition"
	"github.com/blimu-dev/typegen/pkg/diag"
)

// ExtensionKey is the schema extension the synthesizer reads custom,
// conditional and cross-field rules from.
const ExtensionKey = "x-validation"

// ConditionalRule applies its named validations only when the condition
// holds against the instance data.
type ConditionalRule struct {
	ID          string
	Condition   string
	Validations []string
	Message     string
	Priority    int
}

// FieldEquality requires a set of sibling fields to hold equal values.
type FieldEquality struct {
	Fields  []string
	Message string
}

// DependencyKind classifies how a target field depends on its source.
type DependencyKind string

const (
	DependencyRequired    DependencyKind = "Required"
	DependencyOptional    DependencyKind = "Optional"
	DependencyForbidden   DependencyKind = "Forbidden"
	DependencyConditional DependencyKind = "Conditional"
)

// FieldDependency makes the target field's presence depend on the source
// field. Conditional dependencies carry a condition string evaluated against
// the instance data.
type FieldDependency struct {
	SourceField string
	TargetField string
	Kind        DependencyKind
	Condition   string
}

// Extension is the decoded x-validation payload.
type Extension struct {
	Rules            []string
	ConditionalRules []ConditionalRule
	FieldEquality    *FieldEquality
	Dependencies     []FieldDependency
}

// DependenciesFor returns the dependencies whose target is the given field.
func (e *Extension) DependenciesFor(target string) []FieldDependency {
	var out []FieldDependency
	for _, d := range e.Dependencies {
		if d.TargetField == target {
			out = append(out, d)
		}
	}
	return out
}

// ParseExtension decodes an x-validation extension value. Rules without an
// id are assigned one; conditional rules come back sorted by descending
// priority, insertion order preserved on ties.
func ParseExtension(raw any) (*Extension, error) {
	if raw == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, diag.New(diag.CodeInvalidDocument, "x-validation must be an object").WithCause(err)
	}
	ext := &Extension{}

	if v, ok := m["rules"]; ok {
		names, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, diag.New(diag.CodeInvalidDocument, "x-validation rules must be a list of rule names").WithCause(err)
		}
		ext.Rules = names
	}

	if v, ok := m["conditionalRules"]; ok {
		items, err := cast.ToSliceE(v)
		if err != nil {
			return nil, diag.New(diag.CodeInvalidDocument, "x-validation conditionalRules must be a list").WithCause(err)
		}
		for _, item := range items {
			rule, err := parseConditionalRule(item)
			if err != nil {
				return nil, err
			}
			ext.ConditionalRules = append(ext.ConditionalRules, rule)
		}
		sort.SliceStable(ext.ConditionalRules, func(i, j int) bool {
			return ext.ConditionalRules[i].Priority > ext.ConditionalRules[j].Priority
		})
	}

	if v, ok := m["fieldEquality"]; ok {
		fe, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, diag.New(diag.CodeInvalidDocument, "x-validation fieldEquality must be an object").WithCause(err)
		}
		fields, err := cast.ToStringSliceE(fe["fields"])
		if err != nil || len(fields) < 2 {
			return nil, diag.New(diag.CodeInvalidDocument, "fieldEquality needs at least two field names")
		}
		ext.FieldEquality = &FieldEquality{
			Fields:  fields,
			Message: cast.ToString(fe["message"]),
		}
	}

	if v, ok := m["dependencies"]; ok {
		items, err := cast.ToSliceE(v)
		if err != nil {
			return nil, diag.New(diag.CodeInvalidDocument, "x-validation dependencies must be a list").WithCause(err)
		}
		for _, item := range items {
			dep, err := parseDependency(item)
			if err != nil {
				return nil, err
			}
			ext.Dependencies = append(ext.Dependencies, dep)
		}
	}
	return ext, nil
}

func parseConditionalRule(raw any) (ConditionalRule, error) {
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return ConditionalRule{}, diag.New(diag.CodeInvalidDocument, "conditional rule must be an object").WithCause(err)
	}
	rule := ConditionalRule{
		ID:        cast.ToString(m["id"]),
		Condition: cast.ToString(m["condition"]),
		Message:   cast.ToString(m["message"]),
		Priority:  cast.ToInt(m["priority"]),
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Condition == "" {
		return ConditionalRule{}, diag.New(diag.CodeInvalidDocument, "conditional rule %s has no condition", rule.ID)
	}
	rule.Validations, err = cast.ToStringSliceE(m["validations"])
	if err != nil || len(rule.Validations) == 0 {
		return ConditionalRule{}, diag.New(diag.CodeInvalidDocument, "conditional rule %s names no validations", rule.ID)
	}
	return rule, nil
}

func parseDependency(raw any) (FieldDependency, error) {
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return FieldDependency{}, diag.New(diag.CodeInvalidDocument, "field dependency must be an object").WithCause(err)
	}
	dep := FieldDependency{
		SourceField: cast.ToString(m["sourceField"]),
		TargetField: cast.ToString(m["targetField"]),
		Kind:        DependencyKind(cast.ToString(m["kind"])),
		Condition:   cast.ToString(m["condition"]),
	}
	if dep.SourceField == "" || dep.TargetField == "" {
		return FieldDependency{}, diag.New(diag.CodeInvalidDocument, "field dependency needs sourceField and targetField")
	}
	switch dep.Kind {
	case DependencyRequired, DependencyOptional, DependencyForbidden:
	case DependencyConditional:
		if dep.Condition == "" {
			return FieldDependency{}, diag.New(diag.CodeInvalidDocument, "conditional dependency on %s has no condition", dep.TargetField)
		}
	default:
		return FieldDependency{}, diag.New(diag.CodeInvalidDocument, "unknown dependency kind %q", string(dep.Kind)).
			WithSuggestion("use Required, Optional, Forbidden or Conditional")
	}
	return dep, nil
}

// ActiveRules evaluates each conditional rule's condition against data and
// returns the rules that fire, in priority order. A rule whose condition
// mentions fields absent from data simply never fires; only malformed
// condition text is an error, and it is reported per rule without
// suppressing the others.
func ActiveRules(engine *condition.Engine, rules []ConditionalRule, data map[string]any) ([]ConditionalRule, []error) {
	var active []ConditionalRule
	var errs []error
	for _, rule := range rules {
		ok, err := engine.Evaluate(rule.Condition, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			active = append(active, rule)
		}
	}
	return active, errs
}
