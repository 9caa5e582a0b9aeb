package models

import "regexp"

var (
	typeLabelPattern  = regexp.MustCompile(`^\S.*$`)
	typeSymbolPattern = regexp.MustCompile(`^[^\w+()\\:-]$`)
	tagLabelPattern   = regexp.MustCompile(`^\w+$`)
)

// TagType is a named category that classifies tags. Symbol and Color are
// presentation attributes carried through the store untouched.
type TagType struct {
	ID     int64
	Label  string
	Symbol string
	Color  int
}

// Tag is a named label belonging to a tag type. A compound tag is defined by
// the components recorded in its CompoundTag row and may be typeless.
type Tag struct {
	ID       int64
	Label    string
	Type     Ref
	Compound bool
}

// CompoundTag records the components a compound tag is composed of.
// Component order is irrelevant; duplicates collapse.
type CompoundTag struct {
	Tag        Ref
	Components []Ref
}

// ValidTypeLabel reports whether label is acceptable for a tag type:
// non-empty and not starting with whitespace.
func ValidTypeLabel(label string) bool {
	return typeLabelPattern.MatchString(label)
}

// ValidTypeSymbol reports whether symbol is a single character usable as a
// type prefix (no letters, digits or query-operator characters).
func ValidTypeSymbol(symbol string) bool {
	return typeSymbolPattern.MatchString(symbol)
}

// ValidTagLabel reports whether label is acceptable for a tag: word
// characters only.
func ValidTagLabel(label string) bool {
	return tagLabelPattern.MatchString(label)
}

// SelfReferencing reports whether the compound tag lists itself as a direct
// component.
func (c CompoundTag) SelfReferencing() bool {
	for _, comp := range c.Components {
		if comp == c.Tag {
			return true
		}
	}
	return false
}
