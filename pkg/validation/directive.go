package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Param is one named annotation parameter. An empty name renders as a bare
// positional value.
type Param struct {
	Name  string
	Value string
}

// Directive is one synthesized validation constraint. Its identity is the
// rendered annotation form plus the guarding condition, which is what the
// ordered set de-duplicates on.
type Directive struct {
	Annotation string
	Params     []Param
	Imports    []string
	Message    string
	// Condition guards the directive: it applies only when the condition
	// holds at runtime. Empty means unconditional.
	Condition string
}

// Render produces the annotation string form, e.g. "@NotNull" or
// "@Size(min = 1, max = 50)".
func (d Directive) Render() string {
	var b strings.Builder
	b.WriteString("@")
	b.WriteString(d.Annotation)
	if len(d.Params) == 0 {
		return b.String()
	}
	b.WriteString("(")
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Name != "" {
			b.WriteString(p.Name)
			b.WriteString(" = ")
		}
		b.WriteString(p.Value)
	}
	b.WriteString(")")
	return b.String()
}

func (d Directive) key() string {
	return d.Render() + "\x00" + d.Condition
}

// DirectiveSet is an insertion-ordered set of directives, de-duplicated by
// rendered form.
type DirectiveSet struct {
	items []Directive
	seen  map[string]bool
}

// Add appends d unless an equivalent directive is already present.
func (s *DirectiveSet) Add(d Directive) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	k := d.key()
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.items = append(s.items, d)
}

// List returns the directives in insertion order.
func (s *DirectiveSet) List() []Directive {
	return append([]Directive(nil), s.items...)
}

// Len returns the number of distinct directives.
func (s *DirectiveSet) Len() int { return len(s.items) }

func notNull() Directive { return Directive{Annotation: "NotNull"} }

func email() Directive { return Directive{Annotation: "Email"} }

func valid() Directive { return Directive{Annotation: "Valid"} }

func forbidden() Directive { return Directive{Annotation: "Null"} }

func size(min, max *uint64) Directive {
	d := Directive{Annotation: "Size"}
	if min != nil {
		d.Params = append(d.Params, Param{Name: "min", Value: strconv.FormatUint(*min, 10)})
	}
	if max != nil {
		d.Params = append(d.Params, Param{Name: "max", Value: strconv.FormatUint(*max, 10)})
	}
	return d
}

func pattern(expr string) Directive {
	return Directive{
		Annotation: "Pattern",
		Params:     []Param{{Name: "regexp", Value: strconv.Quote(expr)}},
	}
}

// bound renders Min/Max range directives. Values go through decimal so a
// bound like 0.1 renders exactly, not as the nearest float.
func bound(annotation string, value float64) Directive {
	return Directive{
		Annotation: annotation,
		Params:     []Param{{Name: "value", Value: decimal.NewFromFloat(value).String()}},
	}
}

// fromRule turns a registered rule into a directive, merging any parameter
// overrides over the rule's defaults.
func fromRule(rule Rule, field string, overrides map[string]any) Directive {
	params := map[string]any{}
	for k, v := range rule.Params {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	d := Directive{
		Annotation: rule.Annotation,
		Imports:    append([]string(nil), rule.Imports...),
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d.Params = append(d.Params, Param{Name: name, Value: paramValue(params[name])})
	}
	if rule.MessageTemplate != "" {
		d.Message = RenderMessage(rule.MessageTemplate, field, params)
	}
	return d
}

func paramValue(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case float64:
		return decimal.NewFromFloat(t).String()
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strconv.Quote(fmt.Sprintf("%v", v))
	}
}
