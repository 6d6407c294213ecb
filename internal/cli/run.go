package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"

	typegen "github.com/blimu-dev/typegen"
	"github.com/blimu-dev/typegen/pkg/config"
	"github.com/blimu-dev/typegen/pkg/ir"
	"github.com/blimu-dev/typegen/pkg/typemap"
	"github.com/blimu-dev/typegen/pkg/validation"
)

// RunResolveParams carries the resolve command's flags.
type RunResolveParams struct {
	ConfigPath string
	Input      string
	Schema     string
	Verbose    bool
}

// RunResolve resolves a document's component schemas and prints the type and
// validation model as JSON. With --schema only the named schema is printed.
func RunResolve(p RunResolveParams) error {
	engine, input, verbose, err := buildEngine(p.ConfigPath, p.Input)
	if err != nil {
		return err
	}
	if p.Verbose {
		verbose = true
	}
	if input == "" {
		return errors.New("either --config or --input must be provided")
	}

	result, err := engine.ResolveDocument(context.Background(), input)
	if err != nil {
		return err
	}
	if verbose {
		log.Printf("resolved %d schemas, %d failed", len(result.Schemas), len(result.Errors))
	}

	names := result.Names()
	if p.Schema != "" {
		if schemaErr, failed := result.Errors[p.Schema]; failed {
			return schemaErr
		}
		if _, ok := result.Schemas[p.Schema]; !ok {
			return fmt.Errorf("document has no schema named %q", p.Schema)
		}
		names = []string{p.Schema}
	}

	out := map[string]schemaModel{}
	for _, name := range names {
		model, err := buildModel(engine, result.Schemas[name])
		if err != nil {
			return err
		}
		out[name] = model
	}
	if err := printJSON(out); err != nil {
		return err
	}
	return reportFailures(result.Errors, p.Schema)
}

// schemaModel is the printable projection of one resolved schema.
type schemaModel struct {
	Kind       string                   `json:"kind"`
	Properties map[string]propertyModel `json:"properties,omitempty"`
	Required   []string                 `json:"required,omitempty"`
	Variants   []string                 `json:"variants,omitempty"`
}

type propertyModel struct {
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Validations []string `json:"validations,omitempty"`
}

func buildModel(engine *typegen.Engine, schema *ir.ResolvedSchema) (schemaModel, error) {
	model := schemaModel{
		Kind:     string(schema.Kind),
		Required: schema.Required,
	}
	for _, v := range schema.Variants {
		model.Variants = append(model.Variants, v.Name)
	}
	if len(schema.Properties) > 0 {
		model.Properties = map[string]propertyModel{}
	}
	for _, prop := range schema.Properties {
		desc, directives, err := engine.TypeAndValidationsFor(schema, prop.Name)
		if err != nil && desc == nil {
			return schemaModel{}, err
		}
		model.Properties[prop.Name] = propertyModel{
			Type:        typeLabel(desc),
			Required:    schema.IsRequired(prop.Name),
			Validations: renderDirectives(directives),
		}
	}
	return model, nil
}

func typeLabel(desc *typemap.Descriptor) string {
	if desc == nil {
		return ""
	}
	return desc.String()
}

func renderDirectives(directives []validation.Directive) []string {
	out := make([]string, 0, len(directives))
	for _, d := range directives {
		out = append(out, d.Render())
	}
	return out
}

func reportFailures(failures map[string]error, only string) error {
	if len(failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(failures))
	for name := range failures {
		if only != "" && name != only {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	for _, name := range names {
		log.Printf("schema %s failed: %v", name, failures[name])
	}
	return fmt.Errorf("%d schema(s) failed to resolve", len(names))
}

// RunValidate loads a document and runs the structural checks the resolution
// engine relies on.
func RunValidate(input string) error {
	return typegen.ValidateSpec(input)
}

// RunCondition evaluates a condition expression against --data key=value
// pairs and prints the result.
func RunCondition(expr string, pairs []string) error {
	data := map[string]any{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --data entry %q, expected key=value", pair)
		}
		data[key] = coerce(raw)
	}
	result, err := typegen.EvaluateCondition(expr, data)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

// coerce turns a command-line value string into the closest typed value.
func coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := cast.ToFloat64E(raw); err == nil {
		return n
	}
	return raw
}

func buildEngine(configPath, input string) (*typegen.Engine, string, bool, error) {
	if configPath == "" {
		return typegen.NewEngine(typegen.Options{}), input, false, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", false, err
	}
	engine, err := typegen.NewEngineFromConfig(cfg)
	if err != nil {
		return nil, "", false, err
	}
	if input == "" {
		input = cfg.Spec
	}
	return engine, input, cfg.Verbose, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
