// Package typegen turns OpenAPI documents into a normalized, language-agnostic
// type and validation model: references (local and external) are resolved,
// composition keywords (allOf, oneOf, anyOf) are flattened, and each property
// gets a type descriptor plus an ordered set of validation directives.
//
// Quick Start:
//
//	import "github.com/blimu-dev/typegen"
//
//	// Resolve every component schema of a document
//	result, err := typegen.ResolveDocument(context.Background(), "./openapi.yaml")
//
//	// Evaluate a conditional-validation expression in isolation
//	ok, err := typegen.EvaluateCondition("status == 'ACTIVE'", map[string]any{"status": "ACTIVE"})
//
// For finer control (custom reference store, rule registry, worker bounds),
// construct an Engine explicitly.
package typegen

import (
	"context"
	"sync"

	"github.com/blimu-dev/typegen/pkg/condition"
	"github.com/blimu-dev/typegen/pkg/config"
	"github.com/blimu-dev/typegen/pkg/diag"
	"github.com/blimu-dev/typegen/pkg/ir"
	"github.com/blimu-dev/typegen/pkg/openapi"
	"github.com/blimu-dev/typegen/pkg/refstore"
	"github.com/blimu-dev/typegen/pkg/resolver"
	"github.com/blimu-dev/typegen/pkg/typemap"
	"github.com/blimu-dev/typegen/pkg/validation"
)

// Options configures an Engine. The zero value is usable: default reference
// store, built-in rule registry, automatic worker sizing.
type Options struct {
	// Store serves external document references.
	Store *refstore.Store
	// Workers bounds batch-resolution concurrency; zero sizes the pool from
	// the schema count.
	Workers int
	// AnyOfRequiredPolicy overrides how anyOf required sets are computed.
	AnyOfRequiredPolicy resolver.RequiredPolicy
	// Registry supplies the validation rules; nil means the built-ins.
	Registry *validation.Registry
	// Validation toggles the format-driven named rules.
	Validation validation.Options
	// ConditionCacheSize bounds the condition-result cache.
	ConditionCacheSize int
}

// Engine bundles the resolution pipeline behind one object.
type Engine struct {
	resolver    *resolver.Engine
	synthesizer *validation.Synthesizer
	conditions  *condition.Engine
}

// NewEngine creates an Engine from options.
func NewEngine(opts Options) *Engine {
	var ropts []resolver.Option
	if opts.Store != nil {
		ropts = append(ropts, resolver.WithStore(opts.Store))
	}
	if opts.Workers > 0 {
		ropts = append(ropts, resolver.WithWorkers(opts.Workers))
	}
	if opts.AnyOfRequiredPolicy != nil {
		ropts = append(ropts, resolver.WithAnyOfRequiredPolicy(opts.AnyOfRequiredPolicy))
	}
	return &Engine{
		resolver:    resolver.New(ropts...),
		synthesizer: validation.NewSynthesizer(opts.Registry, opts.Validation),
		conditions:  condition.NewEngine(opts.ConditionCacheSize),
	}
}

// NewEngineFromConfig creates an Engine from a loaded configuration file,
// registering any custom rules it declares.
func NewEngineFromConfig(cfg *config.Config) (*Engine, error) {
	ttl, err := cfg.Cache.TTLDuration()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Fetch.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	backoff, err := cfg.Fetch.BackoffDuration()
	if err != nil {
		return nil, err
	}
	store := refstore.New(refstore.Options{
		TTL:            ttl,
		MaxCacheSize:   cfg.Cache.MaxSize,
		Timeout:        timeout,
		MaxRedirects:   cfg.Fetch.MaxRedirects,
		Retries:        cfg.Fetch.Retries,
		Backoff:        backoff,
		AllowedDomains: cfg.AllowedDomains,
	})
	registry := validation.NewRegistry()
	for _, r := range cfg.Rules {
		registry.Register(validation.Rule{
			Name:            r.Name,
			Annotation:      r.Annotation,
			Params:          r.Params,
			MessageTemplate: r.Message,
			Imports:         r.Imports,
		})
	}
	return NewEngine(Options{
		Store:    store,
		Workers:  cfg.Workers,
		Registry: registry,
		Validation: validation.Options{
			UniqueEmail:    cfg.UniqueEmail,
			StrongPassword: cfg.StrongPassword,
			PhoneNumber:    cfg.PhoneNumber,
		},
		ConditionCacheSize: cfg.ConditionCacheSize,
	}), nil
}

// ResolveDocument loads the document at input (file path or HTTP(S) URL) and
// resolves every schema under components.schemas. Per-schema failures are
// isolated in the returned BatchResult; only input malformation is fatal.
func (e *Engine) ResolveDocument(ctx context.Context, input string) (*resolver.BatchResult, error) {
	doc, err := openapi.LoadDocument(input)
	if err != nil {
		return nil, err
	}
	return e.resolver.ResolveDocument(ctx, doc)
}

// TypeAndValidationsFor maps one property of a resolved schema to its type
// descriptor and ordered validation directives.
//
// Example:
//
//	desc, directives, err := engine.TypeAndValidationsFor(dog, "name")
func (e *Engine) TypeAndValidationsFor(schema *ir.ResolvedSchema, property string) (*typemap.Descriptor, []validation.Directive, error) {
	prop := schema.Property(property)
	if prop == nil {
		return nil, nil, notFoundProperty(property)
	}
	desc, err := typemap.Map(prop, []string{"properties", property})
	if err != nil {
		return nil, nil, err
	}
	directives, err := e.synthesizer.Synthesize(property, prop, schema.IsRequired(property), schema)
	if err != nil {
		return desc, directives, err
	}
	return desc, directives, nil
}

// EvaluateCondition parses and evaluates a conditional-validation expression
// against flat field data, with result caching. Usable standalone, outside
// the validation pipeline.
func (e *Engine) EvaluateCondition(text string, data map[string]any) (bool, error) {
	return e.conditions.Evaluate(text, data)
}

// Registry exposes the engine's validation-rule registry so callers can
// register custom rules at runtime.
func (e *Engine) Registry() *validation.Registry {
	return e.synthesizer.Registry()
}

func notFoundProperty(property string) error {
	return diag.New(diag.CodeNotFound, "schema has no property %q", property).
		WithPath("properties", property).
		WithSuggestion("declare the property on the schema or one of its composition members")
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

func def() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = NewEngine(Options{})
	})
	return defaultEngine
}

// ResolveDocument resolves a document with a default Engine.
func ResolveDocument(ctx context.Context, input string) (*resolver.BatchResult, error) {
	return def().ResolveDocument(ctx, input)
}

// TypeAndValidationsFor maps a property with a default Engine.
func TypeAndValidationsFor(schema *ir.ResolvedSchema, property string) (*typemap.Descriptor, []validation.Directive, error) {
	return def().TypeAndValidationsFor(schema, property)
}

// EvaluateCondition evaluates a condition string with a default Engine.
func EvaluateCondition(text string, data map[string]any) (bool, error) {
	return def().EvaluateCondition(text, data)
}

// ValidateSpec loads a document and checks the structural minimum the engine
// needs. Useful before attempting full resolution.
func ValidateSpec(input string) error {
	return openapi.ValidateDocument(input)
}
