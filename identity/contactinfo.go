// Package identity implements the ContactInfo / Contact / Person models
// and the ContactManager that owns them.
package identity

import (
	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/tags"
)

// Presence is a coarse protocol-agnostic availability state. Protocols
// may carry richer status text alongside it.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresenceOffline
	PresenceAvailable
	PresenceAway
	PresenceBusy
	PresenceInvisible
)

// Info is a polymorphic identity record: a username/alias/presence tuple
// that may or may not be bound to an Account (see Contact for the bound
// form). Two Infos denote the same identity iff their (account, id) pair
// matches, or, when id is empty, their (account, username) pair matches.
type Info struct {
	ID          string
	Username    string
	DisplayName string
	Alias       string
	Presence    Presence
	Avatar      []byte
	Tags        *tags.Set

	// account is the owning Account's identity key, used only for the
	// identity-equality rule; Contact carries the live *account.Account.
	account string

	changed event.Bus[event.Change]
}

// NewInfo builds an Info. account should be the owning account's id (or
// empty for an account-less identity, e.g. a search result before the
// user has added it as a Contact).
func NewInfo(account, id, username string) *Info {
	return &Info{ID: id, Username: username, account: account, Tags: tags.New()}
}

// Key returns the identity key used for equality and manager indexing:
// (account, id) if id is set, else (account, username).
func (i *Info) Key() (account, key string) {
	if i.ID != "" {
		return i.account, i.ID
	}
	return i.account, i.Username
}

// SameIdentity reports whether i and o denote the same identity, per
// Key's equality rule.
func (i *Info) SameIdentity(o *Info) bool {
	if i == nil || o == nil {
		return i == o
	}
	ia, ik := i.Key()
	oa, ok := o.Key()
	return ia == oa && ik == ok
}

// SetDisplayName updates DisplayName and notifies subscribers (e.g. the
// Conversation title_for_display derivation).
func (i *Info) SetDisplayName(name string) {
	if i.DisplayName == name {
		return
	}
	i.DisplayName = name
	i.changed.Emit(event.Change{Property: "display-name", Item: i})
}

// SetAlias updates Alias and notifies subscribers.
func (i *Info) SetAlias(alias string) {
	if i.Alias == alias {
		return
	}
	i.Alias = alias
	i.changed.Emit(event.Change{Property: "alias", Item: i})
}

// SetPresence updates Presence and notifies subscribers.
func (i *Info) SetPresence(p Presence) {
	if i.Presence == p {
		return
	}
	i.Presence = p
	i.changed.Emit(event.Change{Property: "presence", Item: i})
}

// OnChanged subscribes to property-change notifications for this Info.
func (i *Info) OnChanged(fn func(event.Change)) event.Subscription {
	return i.changed.Subscribe(fn)
}

// Unsubscribe removes a prior OnChanged subscription.
func (i *Info) Unsubscribe(s event.Subscription) { i.changed.Unsubscribe(s) }

// DisplayNameOrUsername returns DisplayName if set, else Alias, else
// Username, else ID — the chain used when deriving conversation titles
// from member Infos.
func (i *Info) DisplayNameOrUsername() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Alias != "":
		return i.Alias
	case i.Username != "":
		return i.Username
	default:
		return i.ID
	}
}
