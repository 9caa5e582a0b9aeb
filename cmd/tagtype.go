package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/output"
)

var (
	typeSymbol string
	typeColor  string
)

var typeCmd = &cobra.Command{
	Use:   "type",
	Short: "Manage tag types",
	Long:  "Create, list, rename, and delete the tag types that classify tags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return typeListRun()
	},
}

var typeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all tag types",
	RunE: func(cmd *cobra.Command, args []string) error {
		return typeListRun()
	},
}

var typeAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Create a new tag type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return typeAddRun(args[0])
	},
}

var typeRenameCmd = &cobra.Command{
	Use:   "rename <label> <new-label>",
	Short: "Rename a tag type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return typeRenameRun(args[0], args[1])
	},
}

var typeDeleteCmd = &cobra.Command{
	Use:     "delete <label>",
	Aliases: []string{"rm"},
	Short:   "Delete a tag type",
	Long:    "Delete a tag type. Refused while any tag still references it.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return typeDeleteRun(args[0])
	},
}

func init() {
	typeAddCmd.Flags().StringVar(&typeSymbol, "symbol", "", "Single-character prefix symbol")
	typeAddCmd.Flags().StringVar(&typeColor, "color", "", "Display color, e.g. #1e90ff")
	typeCmd.AddCommand(typeListCmd)
	typeCmd.AddCommand(typeAddCmd)
	typeCmd.AddCommand(typeRenameCmd)
	typeCmd.AddCommand(typeDeleteCmd)
	rootCmd.AddCommand(typeCmd)
}

// parseColor parses "#rrggbb" (or "rrggbb") into a packed RGB int.
func parseColor(s string) (int, error) {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: expected hex like #1e90ff", s)
	}
	return int(v), nil
}

func formatColor(c int) string {
	return fmt.Sprintf("#%06x", c)
}

func typeListRun() error {
	e, err := newEditor(context.Background())
	if err != nil {
		return err
	}

	rows := e.Types()
	if len(rows) == 0 {
		ui.Info("No tag types. Use 'tagcat type add <label>' to create one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Label", "Symbol", "Color"})
	for _, row := range rows {
		_ = table.Append([]string{
			strconv.FormatInt(row.Type.ID, 10),
			output.Cyan(row.Type.Label),
			row.Type.Symbol,
			formatColor(row.Type.Color),
		})
	}
	_ = table.Render()
	return nil
}

func typeAddRun(label string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	if !models.ValidTypeLabel(label) {
		return fmt.Errorf("invalid type label %q", label)
	}
	if typeSymbol != "" && !models.ValidTypeSymbol(typeSymbol) {
		return fmt.Errorf("invalid type symbol %q: must be a single character, not a letter, digit or query operator", typeSymbol)
	}

	t := models.TagType{Label: label, Symbol: typeSymbol}
	if typeColor != "" {
		if t.Color, err = parseColor(typeColor); err != nil {
			return err
		}
	}

	e.AddType(t)
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Created tag type: %s", output.Cyan(label))
	return nil
}

func typeRenameRun(label, newLabel string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindType(label)
	if !ok {
		return fmt.Errorf("tag type not found: %s", label)
	}
	if !models.ValidTypeLabel(newLabel) {
		return fmt.Errorf("invalid type label %q", newLabel)
	}

	t := row.Type
	t.Label = newLabel
	if err := e.UpdateType(row.Ref, t); err != nil {
		return err
	}
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Renamed tag type: %s -> %s", label, output.Cyan(newLabel))
	return nil
}

func typeDeleteRun(label string) error {
	ctx := context.Background()
	e, err := newEditor(ctx)
	if err != nil {
		return err
	}

	row, ok := e.FindType(label)
	if !ok {
		return fmt.Errorf("tag type not found: %s", label)
	}

	if err := e.RemoveType(row.Ref); err != nil {
		return err
	}
	if err := finishCommit(ctx, e); err != nil {
		return err
	}
	ui.Success("Deleted tag type: %s", label)
	return nil
}
