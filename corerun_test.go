package corerun

import (
	"context"
	"testing"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPopulatesEveryManager(t *testing.T) {
	c := New(context.Background(), config.Default())
	assert.NotNil(t, c.Accounts)
	assert.NotNil(t, c.Contacts)
	assert.NotNil(t, c.Conversations)
	assert.NotNil(t, c.Protocols)
	assert.NotNil(t, c.FileTransfers)
	assert.NotNil(t, c.Credentials)
	assert.NotNil(t, c.Notifications)
}

func TestShutdownCancelsContextAndDisconnectsAccounts(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	c := New(context.Background(), cfg)

	a, err := account.New("a1", "xmpp", "user")
	require.NoError(t, err)
	c.Accounts.Add(a)

	require.NoError(t, c.Shutdown(context.Background()))
	select {
	case <-c.Context().Done():
	default:
		t.Fatal("Shutdown must cancel the core context")
	}
}
