package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/output"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
	Long:  "Create, list, retype, rename, and delete tags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun()
	},
}

var tagListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun()
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add <label> <type-label>",
	Short: "Create a new tag of the given type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagAddRun(args[0], args[1])
	},
}

var tagSetTypeCmd = &cobra.Command{
	Use:   "set-type <label> <type-label>",
	Short: "Change a tag's type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagSetTypeRun(args[0], args[1])
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename <label> <new-label>",
	Short: "Rename a tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagRenameRun(args[0], args[1])
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:     "delete <label>",
	Aliases: []string{"rm"},
	Short:   "Delete a tag",
	Long:    "Delete a tag. Refused while any compound tag still uses it as a component.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagDeleteRun(args[0])
	},
}

func init() {
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagSetTypeCmd)
	tagCmd.AddCommand(tagRenameCmd)
	tagCmd.AddCommand(tagDeleteCmd)
	rootCmd.AddCommand(tagCmd)
}

func tagListRun() error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	rows := e.Tags()
	if len(rows) == 0 {
		ui.Info("No tags. Use 'tagcat tag add <label> <type>' to create one.")
		return nil
	}

	counts, err := e.Counts(ctx)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "Label", "Type", "Compound", "Used by"})
	for _, row := range rows {
		typeLabel := ""
		if t, ok := e.ResolveType(row.Tag.Type); ok {
			typeLabel = t.Label
		}
		compound := ""
		if row.Tag.Compound {
			compound = output.Yellow("yes")
		}
		_ = table.Append([]string{
			strconv.FormatInt(row.Tag.ID, 10),
			output.Cyan(row.Tag.Label),
			typeLabel,
			compound,
			strconv.Itoa(counts[row.Tag.ID]),
		})
	}
	_ = table.Render()
	return nil
}

func tagAddRun(label, typeLabel string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	if !models.ValidTagLabel(label) {
		return fmt.Errorf("invalid tag label %q: letters, digits and underscores only", label)
	}
	typeRow, ok := e.FindType(typeLabel)
	if !ok {
		return fmt.Errorf("tag type not found: %s", typeLabel)
	}

	e.AddTag(models.Tag{Label: label, Type: typeRow.Ref})
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Created tag: %s (%s)", output.Cyan(label), typeLabel)
	return nil
}

func tagSetTypeRun(label, typeLabel string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindTag(label)
	if !ok {
		return fmt.Errorf("tag not found: %s", label)
	}
	typeRow, ok := e.FindType(typeLabel)
	if !ok {
		return fmt.Errorf("tag type not found: %s", typeLabel)
	}

	t := row.Tag
	t.Type = typeRow.Ref
	if err := e.UpdateTag(row.Ref, t); err != nil {
		return err
	}
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Tag %s is now of type %s", output.Cyan(label), typeLabel)
	return nil
}

func tagRenameRun(label, newLabel string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindTag(label)
	if !ok {
		return fmt.Errorf("tag not found: %s", label)
	}
	if !models.ValidTagLabel(newLabel) {
		return fmt.Errorf("invalid tag label %q: letters, digits and underscores only", newLabel)
	}

	t := row.Tag
	t.Label = newLabel
	if err := e.UpdateTag(row.Ref, t); err != nil {
		return err
	}
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Renamed tag: %s -> %s", label, output.Cyan(newLabel))
	return nil
}

func tagDeleteRun(label string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindTag(label)
	if !ok {
		return fmt.Errorf("tag not found: %s", label)
	}

	if err := e.RemoveTag(row.Ref); err != nil {
		return err
	}
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Deleted tag: %s", label)
	return nil
}
