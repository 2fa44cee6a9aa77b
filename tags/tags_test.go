package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddRemoveRoundTrip(t *testing.T) {
	s := New("work", "vip")
	assert.Equal(t, []string{"work", "vip"}, s.List())

	assert.False(t, s.Add("work"), "duplicate add must be rejected")
	assert.True(t, s.Remove("work"))
	assert.False(t, s.Remove("work"), "double-remove must be a no-op")
	assert.Equal(t, []string{"vip"}, s.List())
}

func TestOrderPreserved(t *testing.T) {
	s := New()
	s.Add("c")
	s.Add("a")
	s.Add("b")
	assert.Equal(t, []string{"c", "a", "b"}, s.List())
}

func TestHas(t *testing.T) {
	s := New("a")
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("z"))
}
