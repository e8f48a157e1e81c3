package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/policyforge/decisionengine/internal/domain/policy"
	"github.com/policyforge/decisionengine/internal/service/compiler"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Compile a policy document and report errors",
	Long: `validate decodes and compiles a policy YAML document, surfacing any
SpecError (unresolved identifiers, arity mismatches, type mismatches,
duplicate names) without running any decision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		factory, err := compiler.Compile(doc)
		if err != nil {
			return fmt.Errorf("policy invalid: %w", err)
		}
		fmt.Printf("ok: %s (content hash %s)\n", factory.PolicyID(), factory.ContentHash())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func loadDocument(path string) (*policy.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc policy.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &doc, nil
}
