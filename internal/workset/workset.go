// Package workset buffers catalogue edits in memory until they are committed.
//
// Each entity kind gets its own Set: a snapshot of the last-loaded persisted
// rows plus three pending buckets (inserted, modified, deleted). Rows are
// value-like; the snapshot is never mutated in place.
package workset

import (
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/dvergnet/tagcat/internal/models"
)

// ErrNotFound is returned when an update or remove targets a row the set
// does not know about.
var ErrNotFound = errors.New("row not found")

// newHandle generates a local handle for an uncommitted row. ulid.Make uses
// a shared monotonic entropy source, so handles stay distinct even within
// one timestamp tick.
func newHandle() string {
	return ulid.Make().String()
}

// Set is an editable overlay over a snapshot of rows of one entity kind.
// A persisted row is keyed by its store ID, an uncommitted row by the local
// handle returned from Add. A store ID appears in at most one of the
// modified and deleted buckets.
type Set[T any] struct {
	id       func(T) int64
	snapshot map[int64]T
	inserted map[string]T
	modified map[int64]T
	deleted  map[int64]struct{}
}

// NewSet creates an empty set. id extracts the store ID from a row
// (0 for rows that were never persisted).
func NewSet[T any](id func(T) int64) *Set[T] {
	s := &Set[T]{id: id}
	s.Load(nil)
	return s
}

// Load resets the snapshot to rows and clears all pending buckets.
func (s *Set[T]) Load(rows []T) {
	s.snapshot = make(map[int64]T, len(rows))
	for _, r := range rows {
		s.snapshot[s.id(r)] = r
	}
	s.inserted = make(map[string]T)
	s.modified = make(map[int64]T)
	s.deleted = make(map[int64]struct{})
}

// Add stages an insert and returns the local handle tracking the row until
// it is committed.
func (s *Set[T]) Add(v T) models.Ref {
	h := newHandle()
	s.inserted[h] = v
	return models.LocalRef(h)
}

// Update stages a modification. Updating a pending insert replaces the
// staged row in place; no separate modify record is created for rows that
// were never persisted.
func (s *Set[T]) Update(ref models.Ref, v T) error {
	if ref.IsLocal() {
		if _, ok := s.inserted[ref.Local]; !ok {
			return ErrNotFound
		}
		s.inserted[ref.Local] = v
		return nil
	}
	if _, gone := s.deleted[ref.ID]; gone {
		return ErrNotFound
	}
	if _, ok := s.snapshot[ref.ID]; !ok {
		return ErrNotFound
	}
	s.modified[ref.ID] = v
	return nil
}

// Remove stages a deletion. Removing a pending insert discards it; removing
// a modified row drops the modification, the deletion wins.
func (s *Set[T]) Remove(ref models.Ref) error {
	if ref.IsLocal() {
		if _, ok := s.inserted[ref.Local]; !ok {
			return ErrNotFound
		}
		delete(s.inserted, ref.Local)
		return nil
	}
	if _, gone := s.deleted[ref.ID]; gone {
		return ErrNotFound
	}
	if _, ok := s.snapshot[ref.ID]; !ok {
		return ErrNotFound
	}
	delete(s.modified, ref.ID)
	s.deleted[ref.ID] = struct{}{}
	return nil
}

// Resolve returns the current effective value of the row: pending edits
// applied, false for unknown or deleted rows.
func (s *Set[T]) Resolve(ref models.Ref) (T, bool) {
	var zero T
	if ref.IsLocal() {
		v, ok := s.inserted[ref.Local]
		return v, ok
	}
	if _, gone := s.deleted[ref.ID]; gone {
		return zero, false
	}
	if v, ok := s.modified[ref.ID]; ok {
		return v, true
	}
	v, ok := s.snapshot[ref.ID]
	return v, ok
}

// PendingCount returns the number of rows with an outstanding change.
func (s *Set[T]) PendingCount() int {
	return len(s.inserted) + len(s.modified) + len(s.deleted)
}

// Effective returns the live rows with pending edits applied, keyed by Ref.
// Rows staged for deletion are excluded.
func (s *Set[T]) Effective() map[models.Ref]T {
	out := make(map[models.Ref]T, len(s.snapshot)+len(s.inserted))
	for id, v := range s.snapshot {
		if _, gone := s.deleted[id]; gone {
			continue
		}
		if m, ok := s.modified[id]; ok {
			v = m
		}
		out[models.StoreRef(id)] = v
	}
	for h, v := range s.inserted {
		out[models.LocalRef(h)] = v
	}
	return out
}

// Inserted returns the staged inserts keyed by local handle.
func (s *Set[T]) Inserted() map[string]T {
	return s.inserted
}

// Modified returns the staged modifications keyed by store ID.
func (s *Set[T]) Modified() map[int64]T {
	return s.modified
}

// Deleted returns the store IDs staged for deletion.
func (s *Set[T]) Deleted() []int64 {
	ids := make([]int64, 0, len(s.deleted))
	for id := range s.deleted {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the last-loaded value of a persisted row, ignoring
// pending edits.
func (s *Set[T]) Snapshot(id int64) (T, bool) {
	v, ok := s.snapshot[id]
	return v, ok
}

// WorkingSet aggregates the per-kind sets of one editing session.
type WorkingSet struct {
	Types     *Set[models.TagType]
	Tags      *Set[models.Tag]
	Compounds *Set[models.CompoundTag]
}

// New creates an empty working set.
func New() *WorkingSet {
	return &WorkingSet{
		Types:     NewSet(func(t models.TagType) int64 { return t.ID }),
		Tags:      NewSet(func(t models.Tag) int64 { return t.ID }),
		Compounds: NewSet(func(c models.CompoundTag) int64 { return c.Tag.ID }),
	}
}

// Load resets all three sets from a freshly read persisted state.
func (w *WorkingSet) Load(types []models.TagType, tags []models.Tag, compounds []models.CompoundTag) {
	w.Types.Load(types)
	w.Tags.Load(tags)
	w.Compounds.Load(compounds)
}

// PendingCount returns the total number of rows with an outstanding change
// across all kinds.
func (w *WorkingSet) PendingCount() int {
	return w.Types.PendingCount() + w.Tags.PendingCount() + w.Compounds.PendingCount()
}
