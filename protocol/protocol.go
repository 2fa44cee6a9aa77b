// Package protocol defines the in-process plugin contract: a Protocol
// plus a set of optional capability interfaces that a concrete protocol
// plugin may additionally implement.
package protocol

import (
	"context"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/connection"
	"github.com/chatcore/corerun/corerrs"
	"github.com/chatcore/corerun/identity"
)

// Options is a bitmask of protocol-level capability flags.
type Options uint32

const (
	OptionNoPassword Options = 1 << iota
	OptionPasswordOptional
	OptionNoImages
)

// Icon carries the presentational metadata a host uses to render a
// protocol's icon; the core does not interpret it.
type Icon struct {
	SymbolicName string
	Sizes        []int
}

// Protocol is the mandatory part of the plugin contract.
// Concrete plugins embed a struct implementing this and assert it against
// any subset of the capability interfaces below.
type Protocol interface {
	ID() string
	Name() string
	Description() string
	Icon() Icon
	Options() Options

	// Connect drives the account's Connection from DISCONNECTED towards
	// CONNECTED (or back to DISCONNECTED with an error). The Connection is
	// created by the caller and passed in so the protocol can transition
	// and monitor its cancellation context.
	Connect(ctx context.Context, acct *account.Account, conn *connection.Connection) error

	// Disconnect tears down any protocol-owned state for conn. It must
	// be safe to call when conn is already disconnected.
	Disconnect(conn *connection.Connection)
}

// Contacts is the optional search/profile capability.
type Contacts interface {
	// MinimumSearchLength returns the shortest query the protocol will
	// accept for SearchAsync; default is 3.
	MinimumSearchLength() int
	SearchAsync(ctx context.Context, acct *account.Account, query string) ([]*identity.Info, error)
	GetProfileAsync(ctx context.Context, info *identity.Info) (string, error)
}

// Conversation is the optional outgoing-message capability.
type Conversation interface {
	SendMessageAsync(ctx context.Context, conv ConversationRef, contents string) error
}

// ConversationRef is the minimal view of a conversation a protocol needs
// to address a send; kept as an interface here (rather than importing
// the conversation package) to avoid a protocol<->conversation import
// cycle, since conversation.Conversation itself must reference Protocol
// capabilities to dispatch sends.
type ConversationRef interface {
	AccountID() string
	ConversationID() string
}

// FileTransfer is the optional file-transfer capability.
type FileTransfer interface {
	SendAsync(ctx context.Context, transferID string) error
	ReceiveAsync(ctx context.Context, transferID string) error
}

// Roster is the optional server-stored-contact-list capability.
type Roster interface {
	AddAsync(ctx context.Context, acct *account.Account, contact *identity.Info) error
	UpdateAsync(ctx context.Context, acct *account.Account, contact *identity.Info) error
	RemoveAsync(ctx context.Context, acct *account.Account, contact *identity.Info) error
}

// DefaultMinimumSearchLength is used by callers dispatching Contacts.
// MinimumSearchLength when a protocol reports <= 0 (i.e. "unset").
const DefaultMinimumSearchLength = 3

// MinimumSearchLength normalizes c.MinimumSearchLength(), applying the
// default.
func MinimumSearchLength(c Contacts) int {
	if n := c.MinimumSearchLength(); n > 0 {
		return n
	}
	return DefaultMinimumSearchLength
}

// AsContacts, AsConversation, AsFileTransfer, AsRoster perform the
// capability-interface assertion dispatch: missing implementations
// return NotImplemented at the dispatch layer, not at call sites. Call
// sites should use these helpers (or the dispatch wrappers below, such
// as SendMessage, Search and RosterAdd)
// rather than asserting the interface themselves, so every caller gets
// uniform NotImplemented behavior.

func AsContacts(p Protocol) (Contacts, bool)         { c, ok := p.(Contacts); return c, ok }
func AsConversation(p Protocol) (Conversation, bool) { c, ok := p.(Conversation); return c, ok }
func AsFileTransfer(p Protocol) (FileTransfer, bool) { c, ok := p.(FileTransfer); return c, ok }
func AsRoster(p Protocol) (Roster, bool)             { c, ok := p.(Roster); return c, ok }

// SendFile / ReceiveFile dispatch to the FileTransfer capability.

func SendFile(ctx context.Context, p Protocol, transferID string) error {
	f, ok := AsFileTransfer(p)
	if !ok {
		return corerrs.NotImplemented("send_async")
	}
	return f.SendAsync(ctx, transferID)
}

func ReceiveFile(ctx context.Context, p Protocol, transferID string) error {
	f, ok := AsFileTransfer(p)
	if !ok {
		return corerrs.NotImplemented("receive_async")
	}
	return f.ReceiveAsync(ctx, transferID)
}

// SendMessage dispatches to the Conversation capability, or returns
// NotImplemented if the protocol doesn't have one.
func SendMessage(ctx context.Context, p Protocol, conv ConversationRef, contents string) error {
	c, ok := AsConversation(p)
	if !ok {
		return corerrs.NotImplemented("send_message_async")
	}
	return c.SendMessageAsync(ctx, conv, contents)
}

// Search dispatches to the Contacts capability.
func Search(ctx context.Context, p Protocol, acct *account.Account, query string) ([]*identity.Info, error) {
	c, ok := AsContacts(p)
	if !ok {
		return nil, corerrs.NotImplemented("search_async")
	}
	return c.SearchAsync(ctx, acct, query)
}

// GetProfile dispatches to the Contacts capability.
func GetProfile(ctx context.Context, p Protocol, info *identity.Info) (string, error) {
	c, ok := AsContacts(p)
	if !ok {
		return "", corerrs.NotImplemented("get_profile_async")
	}
	return c.GetProfileAsync(ctx, info)
}

// RosterAdd/Update/Remove dispatch to the Roster capability.

func RosterAdd(ctx context.Context, p Protocol, acct *account.Account, contact *identity.Info) error {
	r, ok := AsRoster(p)
	if !ok {
		return corerrs.NotImplemented("roster_add_async")
	}
	return r.AddAsync(ctx, acct, contact)
}

func RosterUpdate(ctx context.Context, p Protocol, acct *account.Account, contact *identity.Info) error {
	r, ok := AsRoster(p)
	if !ok {
		return corerrs.NotImplemented("roster_update_async")
	}
	return r.UpdateAsync(ctx, acct, contact)
}

func RosterRemove(ctx context.Context, p Protocol, acct *account.Account, contact *identity.Info) error {
	r, ok := AsRoster(p)
	if !ok {
		return corerrs.NotImplemented("roster_remove_async")
	}
	return r.RemoveAsync(ctx, acct, contact)
}
