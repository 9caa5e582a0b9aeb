package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dvergnet/tagcat/internal/models"
)

// exportDoc is the YAML document written by export and read by import.
type exportDoc struct {
	Types     []exportType     `yaml:"types,omitempty"`
	Tags      []exportTag      `yaml:"tags,omitempty"`
	Compounds []exportCompound `yaml:"compounds,omitempty"`
}

type exportType struct {
	Label  string `yaml:"label"`
	Symbol string `yaml:"symbol,omitempty"`
	Color  int    `yaml:"color,omitempty"`
}

type exportTag struct {
	Label string `yaml:"label"`
	Type  string `yaml:"type,omitempty"`
}

type exportCompound struct {
	Tag        string   `yaml:"tag"`
	Type       string   `yaml:"type,omitempty"`
	Components []string `yaml:"components"`
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the catalogue as YAML",
	Long:  "Export all tag types, tags and compound definitions as YAML to a file or stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := ""
		if len(args) == 1 {
			file = args[0]
		}
		return exportRun(file)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML catalogue",
	Long: `Import tag types, tags and compound definitions from a YAML file.
The whole file is staged as one batch, validated, and committed
atomically; an invalid file changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return importRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func exportRun(file string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	var doc exportDoc
	for _, row := range e.Types() {
		doc.Types = append(doc.Types, exportType{
			Label:  row.Type.Label,
			Symbol: row.Type.Symbol,
			Color:  row.Type.Color,
		})
	}
	for _, row := range e.Tags() {
		typeLabel := ""
		if t, ok := e.ResolveType(row.Tag.Type); ok {
			typeLabel = t.Label
		}
		if !row.Tag.Compound {
			doc.Tags = append(doc.Tags, exportTag{Label: row.Tag.Label, Type: typeLabel})
			continue
		}
		c, _ := e.ResolveCompound(row.Ref)
		comp := exportCompound{Tag: row.Tag.Label, Type: typeLabel}
		for _, ref := range c.Components {
			if t, ok := e.ResolveTag(ref); ok {
				comp.Components = append(comp.Components, t.Label)
			}
		}
		doc.Compounds = append(doc.Compounds, comp)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode catalogue: %w", err)
	}

	if file == "" {
		fmt.Fprint(ui.Out, string(data))
		return nil
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	ui.Success("Exported catalogue to %s", file)
	return nil
}

func importRun(file string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	var doc exportDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	for _, t := range doc.Types {
		e.AddType(models.TagType{Label: t.Label, Symbol: t.Symbol, Color: t.Color})
	}

	typeRef := func(label string) (models.Ref, error) {
		if label == "" {
			return models.Ref{}, nil
		}
		row, ok := e.FindType(label)
		if !ok {
			return models.Ref{}, fmt.Errorf("unknown tag type %q", label)
		}
		return row.Ref, nil
	}

	for _, t := range doc.Tags {
		ref, err := typeRef(t.Type)
		if err != nil {
			return err
		}
		e.AddTag(models.Tag{Label: t.Label, Type: ref})
	}

	// Create all compound tags before wiring components, so compounds may
	// reference each other regardless of file order.
	compoundRefs := make(map[string]models.Ref, len(doc.Compounds))
	for _, c := range doc.Compounds {
		ref, err := typeRef(c.Type)
		if err != nil {
			return err
		}
		if row, ok := e.FindTag(c.Tag); ok {
			compoundRefs[c.Tag] = row.Ref
			continue
		}
		compoundRefs[c.Tag] = e.AddTag(models.Tag{Label: c.Tag, Type: ref, Compound: true})
	}

	for _, c := range doc.Compounds {
		components := make([]models.Ref, 0, len(c.Components))
		for _, cl := range c.Components {
			comp, ok := e.FindTag(cl)
			if !ok {
				return fmt.Errorf("compound tag %q: unknown component %q", c.Tag, cl)
			}
			components = append(components, comp.Ref)
		}
		if err := e.SetComponents(compoundRefs[c.Tag], components); err != nil {
			return err
		}
	}

	n := e.PendingCount()
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Imported %d row(s) from %s", n, file)
	return nil
}
