package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	cli "github.com/blimu-dev/typegen/internal/cli"
)

func main() {
	root := &cobra.Command{
		Use:   "typegen",
		Short: "Resolve OpenAPI schemas into a type and validation model",
	}

	root.AddCommand(newResolveCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newConditionCmd())

	if err := root.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func newResolveCmd() *cobra.Command {
	var configPath string
	var input string
	var schema string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve component schemas and print the type/validation model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunResolve(cli.RunResolveParams{
				ConfigPath: configPath,
				Input:      input,
				Schema:     schema,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to typegen.yaml config")
	cmd.Flags().StringVar(&input, "input", "", "OpenAPI document (yaml/json path or URL)")
	cmd.Flags().StringVar(&schema, "schema", "", "Print only the named component schema")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log resolution progress")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an OpenAPI document's structural minimum",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunValidate(input)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "OpenAPI document (yaml/json path or URL)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newConditionCmd() *cobra.Command {
	var expr string
	var data []string
	cmd := &cobra.Command{
		Use:   "condition",
		Short: "Evaluate a conditional-validation expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCondition(expr, data)
		},
	}
	cmd.Flags().StringVar(&expr, "expr", "", "Condition expression, e.g. \"age >= 18 AND status == 'ACTIVE'\"")
	cmd.Flags().StringArrayVar(&data, "data", nil, "Field values as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("expr")
	return cmd
}
