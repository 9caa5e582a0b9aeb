package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dvergnet/tagcat/internal/output"
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search tags and tag types by name",
	Long: `Search committed tags and tag types whose label contains the text as
a substring (case-insensitive) or matches it as a regular expression
(case-sensitive), e.g. 'tagcat search ^Ani'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return searchRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func searchRun(text string) error {
	g, err := getGateway()
	if err != nil {
		return err
	}

	m, err := g.Search(context.Background(), text)
	if err != nil {
		return err
	}

	if len(m.Types) == 0 && len(m.Tags) == 0 {
		ui.Info("No match found.")
		return nil
	}

	table := ui.Table([]string{"Kind", "ID", "Label"})
	for _, t := range m.Types {
		_ = table.Append([]string{"type", strconv.FormatInt(t.ID, 10), output.Cyan(t.Label)})
	}
	for _, t := range m.Tags {
		_ = table.Append([]string{"tag", strconv.FormatInt(t.ID, 10), output.Cyan(t.Label)})
	}
	_ = table.Render()
	return nil
}
