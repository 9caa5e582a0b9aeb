package store

import (
	"context"
	"errors"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/workset"
)

// Memory is the store location sentinel for an ephemeral in-process store
// that is discarded on close.
const Memory = ":memory:"

var (
	// ErrUnavailable means the backing store could not be opened or
	// bootstrapped. The session cannot proceed.
	ErrUnavailable = errors.New("store unavailable")

	// ErrConstraint means the store rejected a write that had already passed
	// validation. The transaction was rolled back; nothing was written.
	ErrConstraint = errors.New("store constraint violated")
)

// Snapshot is the full persisted state of a catalogue, used to initialize a
// working set.
type Snapshot struct {
	Types     []models.TagType
	Tags      []models.Tag
	Compounds []models.CompoundTag
}

// Matches holds the result of a name search.
type Matches struct {
	Types []models.TagType
	Tags  []models.Tag
}

// Gateway defines the persistence interface for a tag catalogue.
type Gateway interface {
	// LoadAll reads the full current persisted state.
	LoadAll(ctx context.Context) (Snapshot, error)

	// Commit applies all pending edits of the working set as one
	// all-or-nothing transaction. The working set must have passed
	// validation; Commit re-checks and refuses otherwise.
	Commit(ctx context.Context, ws *workset.WorkingSet) error

	// Search returns tag types and tags whose label contains text as a
	// substring (case-insensitive) or matches it as a regular expression.
	Search(ctx context.Context, text string) (Matches, error)

	// Counts returns, per component tag ID, the number of compound tags it
	// appears in.
	Counts(ctx context.Context) (map[int64]int, error)

	// Close releases the underlying connection. Idempotent.
	Close() error
}
