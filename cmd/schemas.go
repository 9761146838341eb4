// =============================================================================
// filingsync - Schemas Command
// =============================================================================
//
// This file defines the 'schemas' command, which prints the report category
// registry as YAML: source A field detection rules, the source B columns
// and the import file mapping of each category.
//
// COMMAND USAGE:
//   filingsync schemas                  # every category
//   filingsync schemas --category annual
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/filingsync/internal/schema"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// schemaCategory restricts the output to one category.
var schemaCategory string

// schemasCmd represents the 'schemas' command.
var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Print the report category registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		categories := schema.Categories()
		if schemaCategory != "" {
			c, err := schema.ParseCategory(schemaCategory)
			if err != nil {
				return err
			}
			categories = []types.Category{c}
		}

		docs := make([]schemaDoc, 0, len(categories))
		for _, c := range categories {
			def, err := schema.Lookup(c)
			if err != nil {
				return err
			}
			docs = append(docs, newSchemaDoc(def.WithMinExpectedRecords(cfg.MinExpectedFor(string(c)))))
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		if err := enc.Encode(docs); err != nil {
			return fmt.Errorf("failed to encode registry: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	schemasCmd.Flags().StringVarP(&schemaCategory, "category", "c", "", "Only print this category")
}

// =============================================================================
// YAML DOCUMENT
// =============================================================================

type schemaDoc struct {
	Category           string      `yaml:"category"`
	DisplayName        string      `yaml:"display_name"`
	DisplayNameEN      string      `yaml:"display_name_en"`
	MinExpectedRecords int         `yaml:"min_expected_records"`
	StatusCompleted    string      `yaml:"status_completed"`
	SourceA            sourceADoc  `yaml:"source_a"`
	SourceB            sourceBDoc  `yaml:"source_b"`
	Output             []outputDoc `yaml:"output"`
}

type sourceADoc struct {
	MatchKey string     `yaml:"match_key"`
	Fields   []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name     string   `yaml:"name"`
	Headers  []string `yaml:"headers"`
	Required bool     `yaml:"required,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
}

type sourceBDoc struct {
	MatchKeyHeader  string   `yaml:"match_key_header"`
	Columns         []string `yaml:"columns"`
	RequiredHeaders []string `yaml:"required_headers"`
	DateHeaders     []string `yaml:"date_headers"`
}

type outputDoc struct {
	Header string `yaml:"header"`
	Derive string `yaml:"derive"`
}

func newSchemaDoc(def *schema.Definition) schemaDoc {
	doc := schemaDoc{
		Category:           string(def.Category),
		DisplayName:        def.DisplayName,
		DisplayNameEN:      def.DisplayNameEN,
		MinExpectedRecords: def.MinExpectedRecords,
		StatusCompleted:    schema.StatusCompletedLabel,
		SourceA:            sourceADoc{MatchKey: def.SourceA.MatchKey},
		SourceB: sourceBDoc{
			MatchKeyHeader:  def.MatchKeyHeader,
			Columns:         def.Columns,
			RequiredHeaders: def.RequiredHeaders,
			DateHeaders:     def.DateHeaders,
		},
	}
	for _, f := range def.SourceA.Fields {
		fd := fieldDoc{Name: f.Name, Headers: f.Headers, Required: f.Required}
		if f.Pattern != nil {
			fd.Pattern = f.Pattern.String()
		}
		doc.SourceA.Fields = append(doc.SourceA.Fields, fd)
	}
	for _, c := range def.Output {
		doc.Output = append(doc.Output, outputDoc{Header: c.Header, Derive: c.Derive.String()})
	}
	return doc
}
