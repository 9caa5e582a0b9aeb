package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/output"
)

var compoundCmd = &cobra.Command{
	Use:   "compound",
	Short: "Manage compound tags",
	Long: `Manage compound tags: tags composed of other tags.

The composed-of graph must stay acyclic; a definition that would make a
compound tag contain itself, directly or through other compound tags,
is refused.`,
}

var compoundSetCmd = &cobra.Command{
	Use:   "set <tag> <component>...",
	Short: "Define a tag as the composition of other tags",
	Long: `Define a tag as the composition of the given component tags,
replacing any previous definition. The tag is created if it does not
exist yet; compound tags need no type.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compoundSetRun(args[0], args[1:])
	},
}

var compoundUnsetCmd = &cobra.Command{
	Use:   "unset <tag>",
	Short: "Drop a tag's compound definition, keeping the tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compoundUnsetRun(args[0])
	},
}

var compoundShowCmd = &cobra.Command{
	Use:   "show <tag>",
	Short: "Show a compound tag's components",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compoundShowRun(args[0])
	},
}

func init() {
	compoundCmd.AddCommand(compoundSetCmd)
	compoundCmd.AddCommand(compoundUnsetCmd)
	compoundCmd.AddCommand(compoundShowCmd)
	rootCmd.AddCommand(compoundCmd)
}

func compoundSetRun(label string, componentLabels []string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindTag(label)
	if !ok {
		if !models.ValidTagLabel(label) {
			return fmt.Errorf("invalid tag label %q: letters, digits and underscores only", label)
		}
		row.Ref = e.AddTag(models.Tag{Label: label, Compound: true})
		ui.VerboseLog("Creating compound tag %s", label)
	}

	components := make([]models.Ref, 0, len(componentLabels))
	for _, cl := range componentLabels {
		comp, ok := e.FindTag(cl)
		if !ok {
			return fmt.Errorf("component tag not found: %s", cl)
		}
		components = append(components, comp.Ref)
	}

	if err := e.SetComponents(row.Ref, components); err != nil {
		return err
	}
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Compound tag %s = %s", output.Cyan(label), strings.Join(componentLabels, " + "))
	return nil
}

func compoundUnsetRun(label string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindTag(label)
	if !ok {
		return fmt.Errorf("tag not found: %s", label)
	}

	if err := e.RemoveCompound(row.Ref); err != nil {
		return fmt.Errorf("tag %s has no compound definition", label)
	}
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Dropped compound definition of %s", label)
	return nil
}

func compoundShowRun(label string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindTag(label)
	if !ok {
		return fmt.Errorf("tag not found: %s", label)
	}
	c, ok := e.ResolveCompound(row.Ref)
	if !ok {
		return fmt.Errorf("tag %s has no compound definition", label)
	}

	table := ui.Table([]string{"Component", "Type"})
	for _, comp := range c.Components {
		t, ok := e.ResolveTag(comp)
		if !ok {
			continue
		}
		typeLabel := ""
		if tt, ok := e.ResolveType(t.Type); ok {
			typeLabel = tt.Label
		}
		_ = table.Append([]string{output.Cyan(t.Label), typeLabel})
	}
	_ = table.Render()
	return nil
}
