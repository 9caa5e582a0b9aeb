package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvergnet/tagcat/internal/catalog"
	"github.com/dvergnet/tagcat/internal/output"
)

// newEditor opens an editing session over the shared gateway.
func newEditor(ctx context.Context) (*catalog.Editor, error) {
	g, err := getGateway()
	if err != nil {
		return nil, err
	}
	return catalog.NewEditor(ctx, g)
}

// finishCommit commits the staged edits, printing integrity violations as a
// table instead of committing when the working set is invalid.
func finishCommit(ctx context.Context, e *catalog.Editor) error {
	if dryRun {
		ui.DryRunMsg("Would commit %d pending change(s)", e.PendingCount())
		if !e.Valid() {
			printViolations(e)
		}
		return nil
	}

	err := e.Commit(ctx)
	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		printViolations(e)
		return fmt.Errorf("nothing committed: %w", verr)
	}
	return err
}

func printViolations(e *catalog.Editor) {
	ui.Error("Catalogue integrity violations:")
	table := ui.Table([]string{"Rule", "Kind", "Problem"})
	for _, v := range e.Report().Violations {
		_ = table.Append([]string{
			output.RuleColor(string(v.Rule)),
			v.Kind,
			v.Detail,
		})
	}
	_ = table.Render()
}
