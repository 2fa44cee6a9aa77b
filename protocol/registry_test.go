package protocol

import (
	"context"
	"testing"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/connection"
	"github.com/chatcore/corerun/corerrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProtocol implements Protocol only — no capability interfaces — so
// it exercises the NotImplemented dispatch path.
type stubProtocol struct{ id string }

func (s *stubProtocol) ID() string          { return s.id }
func (s *stubProtocol) Name() string        { return s.id }
func (s *stubProtocol) Description() string { return "" }
func (s *stubProtocol) Icon() Icon          { return Icon{} }
func (s *stubProtocol) Options() Options    { return 0 }
func (s *stubProtocol) Connect(ctx context.Context, a *account.Account, c *connection.Connection) error {
	c.Transition(connection.Connecting, nil)
	c.Transition(connection.Connected, nil)
	return nil
}
func (s *stubProtocol) Disconnect(c *connection.Connection) {}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Register(&stubProtocol{id: "xmpp"}))
	assert.False(t, r.Register(&stubProtocol{id: "xmpp"}))
}

func TestUnregisterAbsentReturnsFalse(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Unregister("missing"))
}

func TestCapabilityDispatchNotImplemented(t *testing.T) {
	p := &stubProtocol{id: "xmpp"}
	_, err := Search(context.Background(), p, nil, "q")
	require.Error(t, err)
	assert.Equal(t, corerrs.CodeNotImplemented, corerrs.Code(err))

	err = SendMessage(context.Background(), p, nil, "hi")
	assert.Equal(t, corerrs.CodeNotImplemented, corerrs.Code(err))
}

func TestConnectDrivesConnection(t *testing.T) {
	p := &stubProtocol{id: "xmpp"}
	c := connection.New(context.Background())
	require.NoError(t, p.Connect(context.Background(), nil, c))
	assert.Equal(t, connection.Connected, c.State())
}
