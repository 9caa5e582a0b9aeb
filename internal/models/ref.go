package models

// Ref identifies a tag or tag type across the editing session. A row that has
// been persisted is identified by its store ID; a row that only exists in the
// working set is identified by a local handle until a commit assigns it a
// real ID. Exactly one of the two fields is set. The zero Ref means
// "no reference" (e.g. a compound tag without a type).
type Ref struct {
	ID    int64
	Local string
}

// StoreRef returns a Ref for a persisted row.
func StoreRef(id int64) Ref {
	return Ref{ID: id}
}

// LocalRef returns a Ref for an uncommitted row.
func LocalRef(handle string) Ref {
	return Ref{Local: handle}
}

// IsZero reports whether r references nothing.
func (r Ref) IsZero() bool {
	return r.ID == 0 && r.Local == ""
}

// IsLocal reports whether r refers to a row that has not been committed yet.
func (r Ref) IsLocal() bool {
	return r.Local != ""
}
