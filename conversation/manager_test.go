package conversation

import (
	"testing"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUnregisterIdempotentFalse(t *testing.T) {
	acct := newTestAccount(t)
	m := NewManager()
	c := New(acct, "c1", KindDM)

	require.True(t, m.Register(c))
	assert.False(t, m.Register(c), "double register must return false")

	require.True(t, m.Unregister(c))
	assert.False(t, m.Unregister(c), "double unregister must return false")
}

func TestFindDM(t *testing.T) {
	acct := newTestAccount(t)
	m := NewManager()
	c := New(acct, "dm1", KindDM)
	alice := identity.NewInfo(acct.ID(), "", "alice")
	c.AddMember(alice, MembershipRecord{})
	m.Register(c)

	found := m.FindDM(alice)
	require.NotNil(t, found)
	assert.Equal(t, c.GlobalID(), found.GlobalID())

	other := identity.NewInfo(acct.ID(), "", "bob")
	assert.Nil(t, m.FindDM(other))
}

func TestManagerReemitsPropertyChanges(t *testing.T) {
	acct := newTestAccount(t)
	m := NewManager()
	c := New(acct, "c1", KindChannel)
	m.Register(c)

	var props []string
	m.OnChanged(func(ch event.Change) { props = append(props, ch.Property) })

	c.SetFavorite(true)
	assert.Contains(t, props, "favorite")
}

func TestUnregisterDisconnectsSubscriptions(t *testing.T) {
	acct := newTestAccount(t)
	m := NewManager()
	c := New(acct, "c1", KindChannel)
	m.Register(c)
	m.Unregister(c)

	var count int
	m.OnChanged(func(ch event.Change) { count++ })
	c.SetFavorite(true)
	assert.Equal(t, 0, count, "unregistered conversation must not still fan out through the manager")
}
