package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactManagerAddRemoveRoundTrip(t *testing.T) {
	m := NewManager()
	acct := fakeAccount{id: "a1", proto: "xmpp"}
	c := NewContact(acct, NewInfo("", "u1", "alice"))

	require.True(t, m.Add(c))
	assert.False(t, m.Add(c), "double add must be refused")

	found, ok := m.FindWithUsername("a1", "alice")
	require.True(t, ok)
	assert.Equal(t, c, found)

	require.True(t, m.Remove(c))
	assert.False(t, m.Remove(c))
}

func TestRemoveAllByAccount(t *testing.T) {
	m := NewManager()
	a1 := fakeAccount{id: "a1", proto: "xmpp"}
	a2 := fakeAccount{id: "a2", proto: "xmpp"}
	c1 := NewContact(a1, NewInfo("", "u1", "alice"))
	c2 := NewContact(a1, NewInfo("", "u2", "bob"))
	c3 := NewContact(a2, NewInfo("", "u3", "carol"))
	m.Add(c1)
	m.Add(c2)
	m.Add(c3)

	m.RemoveAll("a1")
	_, ok := m.FindWithID("a1", "u1")
	assert.False(t, ok)
	_, ok = m.FindWithID("a2", "u3")
	assert.True(t, ok)
}

func TestPersonLifecycle(t *testing.T) {
	m := NewManager()
	p := NewPerson("p1")
	require.True(t, m.AddPerson(p))
	assert.False(t, m.AddPerson(p))
	require.True(t, m.RemovePerson(p, false))
	assert.False(t, m.RemovePerson(p, false))
}

func TestRemovePersonWithContacts(t *testing.T) {
	m := NewManager()
	acct := fakeAccount{id: "a1", proto: "xmpp"}
	c := NewContact(acct, NewInfo("", "u1", "alice"))
	m.Add(c)

	p := NewPerson("p1")
	p.AddInfo(c.Info)
	m.AddPerson(p)

	require.True(t, m.RemovePerson(p, true))
	_, ok := m.FindWithID("a1", "u1")
	assert.False(t, ok, "removeContacts=true must remove attached contacts")
}

func TestGetProfileCachedOnlyFetchesOnce(t *testing.T) {
	m := NewManager()
	acct := fakeAccount{id: "a1", proto: "xmpp"}
	c := NewContact(acct, NewInfo("", "u1", "alice"))
	m.Add(c)

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "bio text", nil
	}

	v1, err := m.GetProfileCached(context.Background(), c, fetch)
	require.NoError(t, err)
	assert.Equal(t, "bio text", v1)

	v2, err := m.GetProfileCached(context.Background(), c, fetch)
	require.NoError(t, err)
	assert.Equal(t, "bio text", v2)
	assert.Equal(t, 1, calls, "second call must hit the cache, not fetch again")
}

func TestInvalidateProfileForcesRefetch(t *testing.T) {
	m := NewManager()
	acct := fakeAccount{id: "a1", proto: "xmpp"}
	c := NewContact(acct, NewInfo("", "u1", "alice"))
	m.Add(c)

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "bio text", nil
	}
	_, err := m.GetProfileCached(context.Background(), c, fetch)
	require.NoError(t, err)

	m.InvalidateProfile(c)
	_, err = m.GetProfileCached(context.Background(), c, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
