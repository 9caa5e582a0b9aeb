package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefKinds(t *testing.T) {
	assert.True(t, Ref{}.IsZero())
	assert.False(t, Ref{}.IsLocal())

	r := StoreRef(42)
	assert.False(t, r.IsZero())
	assert.False(t, r.IsLocal())

	l := LocalRef("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.False(t, l.IsZero())
	assert.True(t, l.IsLocal())
}

func TestValidTypeLabel(t *testing.T) {
	assert.True(t, ValidTypeLabel("Species"))
	assert.True(t, ValidTypeLabel("Color scheme"))
	assert.False(t, ValidTypeLabel(""))
	assert.False(t, ValidTypeLabel(" leading space"))
}

func TestValidTypeSymbol(t *testing.T) {
	for _, s := range []string{"$", "#", "@", "~"} {
		assert.True(t, ValidTypeSymbol(s), s)
	}
	// Letters, digits and query-operator characters are reserved.
	for _, s := range []string{"", "a", "7", "+", "(", ")", ":", "-", `\`, "$$"} {
		assert.False(t, ValidTypeSymbol(s), s)
	}
}

func TestValidTagLabel(t *testing.T) {
	assert.True(t, ValidTagLabel("sunset"))
	assert.True(t, ValidTagLabel("night_sky"))
	assert.False(t, ValidTagLabel(""))
	assert.False(t, ValidTagLabel("two words"))
	assert.False(t, ValidTagLabel("semi;colon"))
}

func TestSelfReferencing(t *testing.T) {
	c := CompoundTag{Tag: StoreRef(1), Components: []Ref{StoreRef(2), StoreRef(3)}}
	assert.False(t, c.SelfReferencing())

	c.Components = append(c.Components, StoreRef(1))
	assert.True(t, c.SelfReferencing())
}
