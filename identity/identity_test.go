package identity

import (
	"testing"

	"github.com/chatcore/corerun/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccount struct{ id, proto string }

func (f fakeAccount) ID() string         { return f.id }
func (f fakeAccount) ProtocolID() string { return f.proto }

func TestSameIdentityByID(t *testing.T) {
	a := NewInfo("acct1", "u123", "alice")
	b := NewInfo("acct1", "u123", "other-username")
	assert.True(t, a.SameIdentity(b))
}

func TestSameIdentityFallsBackToUsername(t *testing.T) {
	a := NewInfo("acct1", "", "alice")
	b := NewInfo("acct1", "", "alice")
	assert.True(t, a.SameIdentity(b))

	c := NewInfo("acct1", "", "bob")
	assert.False(t, a.SameIdentity(c))
}

func TestContactRequiresAccount(t *testing.T) {
	assert.Panics(t, func() { NewContact(nil, NewInfo("", "id", "alice")) })
}

func TestContactAccountImmutable(t *testing.T) {
	acct := fakeAccount{id: "a1", proto: "xmpp"}
	c := NewContact(acct, NewInfo("", "id", "alice"))
	assert.Equal(t, "a1", c.Account().ID())
}

func TestPersonAddRemoveRoundTrip(t *testing.T) {
	p := NewPerson("person1")
	i1 := NewInfo("a", "1", "alice-irc")
	i2 := NewInfo("a", "2", "alice-xmpp")

	require.True(t, p.AddInfo(i1))
	require.True(t, p.AddInfo(i2))
	assert.False(t, p.AddInfo(i1), "double add must fail")
	assert.Len(t, p.Infos(), 2)

	require.True(t, p.RemoveInfo(i1))
	require.True(t, p.RemoveInfo(i2))
	assert.False(t, p.RemoveInfo(i1), "double remove must fail")
	assert.Empty(t, p.Infos(), "removing last info must not delete the person itself")
}

func TestDisplayNameChangeEmits(t *testing.T) {
	info := NewInfo("a", "1", "alice")
	var got string
	info.OnChanged(func(c event.Change) { got = c.Property })

	info.SetDisplayName("Alice!")
	assert.Equal(t, "display-name", got)
	assert.Equal(t, "Alice!", info.DisplayName)

	got = ""
	info.SetDisplayName("Alice!")
	assert.Empty(t, got, "no-op set must not re-emit")
}
