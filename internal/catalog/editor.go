// Package catalog implements the editing session a presentation layer talks
// to: a working set over the persisted catalogue, re-validated after every
// mutation and committed atomically through the persistence gateway.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/store"
	"github.com/dvergnet/tagcat/internal/validate"
	"github.com/dvergnet/tagcat/internal/workset"
)

// ValidationError is returned when a commit is attempted while the working
// set violates integrity rules. It is user-correctable, not fatal.
type ValidationError struct {
	Report validate.Report
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalogue has %d integrity violations", len(e.Report.Violations))
}

// Editor is a single-session catalogue editor. It is not safe for concurrent
// use; all mutations, validation and commits happen on one goroutine.
type Editor struct {
	gw     store.Gateway
	ws     *workset.WorkingSet
	report validate.Report

	// Pending compound rows keyed by their owner tag's ref; persisted
	// compound rows are keyed by the tag's store ID directly.
	compoundByTag map[models.Ref]models.Ref
}

// NewEditor loads the persisted state into a fresh working set.
func NewEditor(ctx context.Context, gw store.Gateway) (*Editor, error) {
	e := &Editor{gw: gw, ws: workset.New()}
	if err := e.reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Editor) reload(ctx context.Context) error {
	snap, err := e.gw.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}
	e.ws.Load(snap.Types, snap.Tags, snap.Compounds)
	e.compoundByTag = make(map[models.Ref]models.Ref)
	e.revalidate()
	return nil
}

func (e *Editor) revalidate() {
	e.report = validate.Check(e.ws)
}

// Report returns the validation report for the current working-set state.
func (e *Editor) Report() validate.Report {
	return e.report
}

// Valid reports whether the working set may be committed.
func (e *Editor) Valid() bool {
	return e.report.Valid()
}

// PendingCount returns the number of rows with uncommitted changes.
func (e *Editor) PendingCount() int {
	return e.ws.PendingCount()
}

// --- Tag types ---

// AddType stages a new tag type and returns its local handle.
func (e *Editor) AddType(t models.TagType) models.Ref {
	ref := e.ws.Types.Add(t)
	e.revalidate()
	return ref
}

// UpdateType stages a modification of a tag type.
func (e *Editor) UpdateType(ref models.Ref, t models.TagType) error {
	if err := e.ws.Types.Update(ref, t); err != nil {
		return err
	}
	e.revalidate()
	return nil
}

// RemoveType stages a tag type deletion.
func (e *Editor) RemoveType(ref models.Ref) error {
	if err := e.ws.Types.Remove(ref); err != nil {
		return err
	}
	e.revalidate()
	return nil
}

// ResolveType returns the effective value of a tag type.
func (e *Editor) ResolveType(ref models.Ref) (models.TagType, bool) {
	return e.ws.Types.Resolve(ref)
}

// --- Tags ---

// AddTag stages a new tag and returns its local handle.
func (e *Editor) AddTag(t models.Tag) models.Ref {
	ref := e.ws.Tags.Add(t)
	e.revalidate()
	return ref
}

// UpdateTag stages a modification of a tag.
func (e *Editor) UpdateTag(ref models.Ref, t models.Tag) error {
	if err := e.ws.Tags.Update(ref, t); err != nil {
		return err
	}
	e.revalidate()
	return nil
}

// RemoveTag stages a tag deletion. The tag's compound definition, if any, is
// removed in the same batch.
func (e *Editor) RemoveTag(ref models.Ref) error {
	if err := e.ws.Tags.Remove(ref); err != nil {
		return err
	}
	if cref, ok := e.compoundRef(ref); ok {
		_ = e.ws.Compounds.Remove(cref)
		delete(e.compoundByTag, ref)
	}
	e.revalidate()
	return nil
}

// ResolveTag returns the effective value of a tag.
func (e *Editor) ResolveTag(ref models.Ref) (models.Tag, bool) {
	return e.ws.Tags.Resolve(ref)
}

// --- Compound definitions ---

// compoundRef locates the working-set row holding the compound definition of
// a tag.
func (e *Editor) compoundRef(tag models.Ref) (models.Ref, bool) {
	if ref, ok := e.compoundByTag[tag]; ok {
		return ref, true
	}
	if !tag.IsLocal() {
		ref := models.StoreRef(tag.ID)
		if _, ok := e.ws.Compounds.Resolve(ref); ok {
			return ref, true
		}
	}
	return models.Ref{}, false
}

// SetComponents stages the compound definition of a tag, replacing any
// previous definition, and marks the tag compound.
func (e *Editor) SetComponents(tag models.Ref, components []models.Ref) error {
	t, ok := e.ws.Tags.Resolve(tag)
	if !ok {
		return workset.ErrNotFound
	}

	seen := make(map[models.Ref]bool, len(components))
	deduped := make([]models.Ref, 0, len(components))
	for _, c := range components {
		if seen[c] {
			continue
		}
		seen[c] = true
		deduped = append(deduped, c)
	}

	c := models.CompoundTag{Tag: tag, Components: deduped}
	if cref, ok := e.compoundRef(tag); ok {
		if err := e.ws.Compounds.Update(cref, c); err != nil {
			return err
		}
	} else {
		e.compoundByTag[tag] = e.ws.Compounds.Add(c)
	}

	if !t.Compound {
		t.Compound = true
		if err := e.ws.Tags.Update(tag, t); err != nil {
			return err
		}
	}
	e.revalidate()
	return nil
}

// RemoveCompound stages the removal of a tag's compound definition and
// clears its compound flag. The tag itself stays.
func (e *Editor) RemoveCompound(tag models.Ref) error {
	cref, ok := e.compoundRef(tag)
	if !ok {
		return workset.ErrNotFound
	}
	if err := e.ws.Compounds.Remove(cref); err != nil {
		return err
	}
	delete(e.compoundByTag, tag)

	if t, ok := e.ws.Tags.Resolve(tag); ok && t.Compound {
		t.Compound = false
		if err := e.ws.Tags.Update(tag, t); err != nil {
			return err
		}
	}
	e.revalidate()
	return nil
}

// ResolveCompound returns the effective compound definition of a tag.
func (e *Editor) ResolveCompound(tag models.Ref) (models.CompoundTag, bool) {
	cref, ok := e.compoundRef(tag)
	if !ok {
		return models.CompoundTag{}, false
	}
	return e.ws.Compounds.Resolve(cref)
}

// --- Listings ---

// TypeRow pairs a tag type with the ref addressing it in this session.
type TypeRow struct {
	Ref  models.Ref
	Type models.TagType
}

// TagRow pairs a tag with the ref addressing it in this session.
type TagRow struct {
	Ref models.Ref
	Tag models.Tag
}

// Types returns the effective tag types sorted by label.
func (e *Editor) Types() []TypeRow {
	eff := e.ws.Types.Effective()
	rows := make([]TypeRow, 0, len(eff))
	for ref, t := range eff {
		rows = append(rows, TypeRow{Ref: ref, Type: t})
	}
	sort.Slice(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Type.Label) < strings.ToLower(rows[j].Type.Label)
	})
	return rows
}

// Tags returns the effective tags sorted by label.
func (e *Editor) Tags() []TagRow {
	eff := e.ws.Tags.Effective()
	rows := make([]TagRow, 0, len(eff))
	for ref, t := range eff {
		rows = append(rows, TagRow{Ref: ref, Tag: t})
	}
	sort.Slice(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Tag.Label) < strings.ToLower(rows[j].Tag.Label)
	})
	return rows
}

// FindType locates an effective tag type by label, case-insensitively.
func (e *Editor) FindType(label string) (TypeRow, bool) {
	for _, row := range e.Types() {
		if strings.EqualFold(row.Type.Label, label) {
			return row, true
		}
	}
	return TypeRow{}, false
}

// FindTag locates an effective tag by label, case-insensitively.
func (e *Editor) FindTag(label string) (TagRow, bool) {
	for _, row := range e.Tags() {
		if strings.EqualFold(row.Tag.Label, label) {
			return row, true
		}
	}
	return TagRow{}, false
}

// --- Persistence ---

// Commit validates and applies all pending edits as one transaction, then
// reloads the snapshot so the session starts clean. A *ValidationError is
// returned, and nothing written, if any integrity rule is violated.
func (e *Editor) Commit(ctx context.Context) error {
	e.revalidate()
	if !e.report.Valid() {
		return &ValidationError{Report: e.report}
	}
	if e.ws.PendingCount() == 0 {
		return nil
	}
	if err := e.gw.Commit(ctx, e.ws); err != nil {
		return err
	}
	return e.reload(ctx)
}

// Search queries the committed state for labels matching text as a substring
// or regular expression. Pending edits are not observed.
func (e *Editor) Search(ctx context.Context, text string) (store.Matches, error) {
	return e.gw.Search(ctx, text)
}

// Counts returns per-tag compound membership counts from the committed
// state.
func (e *Editor) Counts(ctx context.Context) (map[int64]int, error) {
	return e.gw.Counts(ctx)
}
