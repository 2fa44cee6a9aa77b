package notification

import (
	"testing"

	"github.com/chatcore/corerun/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T) *account.Account {
	a, err := account.New("a1", "xmpp", "user")
	require.NoError(t, err)
	return a
}

func TestUnreadCountInvariant(t *testing.T) {
	m := NewManager()
	a := testAccount(t)
	n1 := New("1", "hi", a, KindGeneric)
	n2 := New("2", "bye", a, KindGeneric)
	m.Add(n1)
	m.Add(n2)
	assert.Equal(t, 2, m.UnreadCount())

	m.SetRead(n1, true)
	assert.Equal(t, 1, m.UnreadCount())
}

func TestDoubleAddRefused(t *testing.T) {
	m := NewManager()
	n := New("1", "hi", testAccount(t), KindGeneric)
	require.True(t, m.Add(n))
	assert.False(t, m.Add(n))
}

// Seed scenario 3: notification batch removal by account.
func TestRemoveWithAccountLeavesNonTransient(t *testing.T) {
	m := NewManager()
	a := testAccount(t)
	other := New("other", "unrelated", nil, KindGeneric)

	n1 := New("1", "generic1", a, KindGeneric)
	n2 := New("2", "conn-error", a, KindConnectionError)
	n3 := New("3", "generic2", a, KindGeneric)
	m.Add(n1)
	m.Add(n2)
	m.Add(n3)
	m.Add(other)

	removed := m.RemoveWithAccount(a, false)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, m.GetNItems(), "connection_error and the unrelated notification survive")
	assert.Equal(t, n2, m.GetItem(0))
	assert.Equal(t, other, m.GetItem(1))
}

func TestClearRemovesEverything(t *testing.T) {
	m := NewManager()
	a := testAccount(t)
	m.Add(New("1", "a", a, KindGeneric))
	m.Add(New("2", "b", a, KindGeneric))
	m.Clear()
	assert.Equal(t, 0, m.GetNItems())
}
