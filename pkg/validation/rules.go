// Package validation synthesizes the ordered set of validation directives
// attached to a schema property: presence and bounds constraints derived
// from the schema itself, named custom rules from a registry, and
// conditional plus cross-field rules declared through the x-validation
// extension.
package validation

import (
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Rule is a named custom validation. Annotation is the identifier the
// directive renders as, Params are its default parameters, and Imports are
// the dependencies a renderer must pull in to use it.
type Rule struct {
	Name            string
	Annotation      string
	Params          map[string]any
	MessageTemplate string
	Imports         []string
}

// Registry maps rule names to rules. Built-ins are installed by NewRegistry;
// callers may register more at runtime, and the last registration for a
// given name wins. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates a registry holding the built-in rule set.
func NewRegistry() *Registry {
	r := &Registry{rules: map[string]Rule{}}
	r.Register(Rule{
		Name:            "uniqueEmail",
		Annotation:      "UniqueEmail",
		MessageTemplate: "{{ .Field }} must be a unique email address",
		Imports:         []string{"com.example.validation.UniqueEmail"},
	})
	r.Register(Rule{
		Name:            "strongPassword",
		Annotation:      "StrongPassword",
		Params:          map[string]any{"minLength": 12, "classes": 3},
		MessageTemplate: "{{ .Field }} must be at least {{ .Params.minLength }} characters with {{ .Params.classes }} character classes",
		Imports:         []string{"com.example.validation.StrongPassword"},
	})
	r.Register(Rule{
		Name:            "phoneNumber",
		Annotation:      "PhoneNumber",
		Params:          map[string]any{"region": "US"},
		MessageTemplate: "{{ .Field }} must be a valid phone number",
		Imports:         []string{"com.example.validation.PhoneNumber"},
	})
	return r
}

// Register installs or replaces a rule under its name.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.Name] = rule
}

// Lookup returns the rule registered under name.
func (r *Registry) Lookup(name string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	return rule, ok
}

// Names returns the registered rule names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rules))
	for name := range r.rules {
		out = append(out, name)
	}
	return out
}

// RenderMessage expands a rule's message template with the field name and
// the effective parameters. Template syntax errors fall back to the raw
// template text so a bad message never blocks synthesis.
func RenderMessage(tmpl, field string, params map[string]any) string {
	t, err := template.New("message").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var b strings.Builder
	data := struct {
		Field  string
		Params map[string]any
	}{Field: field, Params: params}
	if err := t.Execute(&b, data); err != nil {
		return tmpl
	}
	return b.String()
}
