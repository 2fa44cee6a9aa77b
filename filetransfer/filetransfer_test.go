package filetransfer

import (
	"context"
	"testing"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T) *account.Account {
	a, err := account.New("a1", "xmpp", "user")
	require.NoError(t, err)
	return a
}

func TestEmptyFileIsValid(t *testing.T) {
	acct := testAccount(t)
	remote := identity.NewInfo(acct.ID(), "", "bob")
	tr := NewSend(context.Background(), acct, remote, remote, "/tmp/empty", "empty.txt", 0)
	assert.Equal(t, int64(0), tr.FileSize())
	assert.Equal(t, Negotiating, tr.State())
}

func TestCancelTransitionsToFailed(t *testing.T) {
	acct := testAccount(t)
	remote := identity.NewInfo(acct.ID(), "", "bob")
	tr := NewReceive(context.Background(), acct, remote, remote, "photo.png", 1024)

	tr.Cancel()
	assert.Equal(t, Failed, tr.State())
	require.Error(t, tr.Error())
	assert.Error(t, tr.Context().Err())
}

func TestManagerAddRemoveRoundTrip(t *testing.T) {
	acct := testAccount(t)
	remote := identity.NewInfo(acct.ID(), "", "bob")
	m := NewManager()
	tr := NewReceive(context.Background(), acct, remote, remote, "f", 10)

	m.Add(tr)
	assert.Equal(t, 1, m.GetNItems())
	assert.Equal(t, tr, m.GetItem(0))

	require.True(t, m.Remove(tr))
	assert.False(t, m.Remove(tr))
	assert.Equal(t, 0, m.GetNItems())
}

func TestManagerPropagatesStateChanges(t *testing.T) {
	acct := testAccount(t)
	remote := identity.NewInfo(acct.ID(), "", "bob")
	m := NewManager()
	tr := NewReceive(context.Background(), acct, remote, remote, "f", 10)
	m.Add(tr)

	var props []string
	m.OnChanged(func(ch event.Change) { props = append(props, ch.Property) })
	tr.SetState(Started, nil)
	assert.Contains(t, props, "state")
}
