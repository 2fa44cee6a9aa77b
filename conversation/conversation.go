// Package conversation implements the Conversation / ConversationMembers
// / Message model, plus the ConversationManager that owns conversations
// across accounts.
package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/identity"
	"github.com/google/uuid"
)

// Kind is the conversation type.
type Kind int

const (
	KindDM Kind = iota
	KindGroupDM
	KindChannel
	KindThread
)

// Features is a protocol-reported capability bitmask (e.g. topic
// support, member roles); the core treats it as opaque.
type Features uint32

// Conversation is a DM / group DM / channel / thread.
type Conversation struct {
	mu sync.Mutex

	acct *account.Account
	id   string
	kind Kind

	name  string
	alias string
	title string

	topic        string
	topicAuthor  *identity.Info
	topicUpdated time.Time

	createdOn time.Time
	features  Features

	typingState  bool
	userNickname string

	favorite       bool
	ageRestricted  bool
	needsAttention bool
	logging        bool

	members  *Members
	messages []*Message

	titleForDisplay string

	presented event.Bus[*Conversation]
	changed   event.Bus[event.Change]

	memberInfoSubs map[*identity.Info]event.Subscription
}

// New constructs a Conversation owned by acct with the given id and kind.
// GlobalID is acct.ID() + "-" + id. If id is empty, a fresh
// one is generated — most protocols hand back a server-assigned id, but
// some (e.g. locally-initiated DMs) leave it to the core.
func New(acct *account.Account, id string, kind Kind) *Conversation {
	if id == "" {
		id = uuid.NewString()
	}
	c := &Conversation{
		acct:           acct,
		id:             id,
		kind:           kind,
		createdOn:      time.Now(),
		members:        newMembers(),
		memberInfoSubs: make(map[*identity.Info]event.Subscription),
	}
	c.members.onAdd = c.onMemberAdded
	c.members.onRemove = c.onMemberRemoved
	c.recomputeTitle()
	return c
}

func (c *Conversation) Account() *account.Account { return c.acct }
func (c *Conversation) AccountID() string {
	if c.acct == nil {
		return ""
	}
	return c.acct.ID()
}
func (c *Conversation) ID() string             { return c.id }
func (c *Conversation) ConversationID() string { return c.id }

// GlobalID is the manager-unique identifier.
func (c *Conversation) GlobalID() string { return c.AccountID() + "-" + c.id }

func (c *Conversation) Kind() Kind          { return c.kind }
func (c *Conversation) Members() *Members   { return c.members }
func (c *Conversation) CreatedOn() time.Time { return c.createdOn }

func (c *Conversation) Name() string { return c.name }
func (c *Conversation) SetName(name string) {
	c.name = name
	c.recomputeTitle()
}

func (c *Conversation) Alias() string { return c.alias }
func (c *Conversation) SetAlias(alias string) {
	c.alias = alias
	c.recomputeTitle()
}

func (c *Conversation) Title() string { return c.title }
func (c *Conversation) SetTitle(title string) {
	c.title = title
	c.recomputeTitle()
}

func (c *Conversation) Topic() string              { return c.topic }
func (c *Conversation) TopicAuthor() *identity.Info { return c.topicAuthor }
func (c *Conversation) TopicUpdated() time.Time     { return c.topicUpdated }

// SetTopicFull sets topic, author, and updated timestamp atomically,
// emitting a single property-change event.
func (c *Conversation) SetTopicFull(topic string, author *identity.Info, updated time.Time) {
	c.mu.Lock()
	c.topic = topic
	c.topicAuthor = author
	c.topicUpdated = updated
	c.mu.Unlock()
	c.changed.Emit(event.Change{Property: "topic", Item: c})
}

func (c *Conversation) Favorite() bool         { return c.favorite }
func (c *Conversation) SetFavorite(v bool)     { c.setBoolFlag(&c.favorite, v, "favorite") }
func (c *Conversation) AgeRestricted() bool    { return c.ageRestricted }
func (c *Conversation) SetAgeRestricted(v bool) {
	c.setBoolFlag(&c.ageRestricted, v, "age-restricted")
}
func (c *Conversation) NeedsAttention() bool     { return c.needsAttention }
func (c *Conversation) SetNeedsAttention(v bool) {
	c.setBoolFlag(&c.needsAttention, v, "needs-attention")
}
func (c *Conversation) Logging() bool      { return c.logging }
func (c *Conversation) SetLogging(v bool)  { c.setBoolFlag(&c.logging, v, "logging") }
func (c *Conversation) TypingState() bool  { return c.typingState }
func (c *Conversation) SetTypingState(v bool) {
	c.setBoolFlag(&c.typingState, v, "typing-state")
}

func (c *Conversation) setBoolFlag(field *bool, v bool, prop string) {
	if *field == v {
		return
	}
	*field = v
	c.changed.Emit(event.Change{Property: prop, Item: c})
}

func (c *Conversation) UserNickname() string { return c.userNickname }
func (c *Conversation) SetUserNickname(n string) {
	c.userNickname = n
	c.changed.Emit(event.Change{Property: "user-nickname", Item: c})
}

// Present signals UI attention; propagated through the ConversationManager
// to any host-level "bring to front" handling.
func (c *Conversation) Present() { c.presented.Emit(c) }

// OnPresent subscribes to Present() calls.
func (c *Conversation) OnPresent(fn func(*Conversation)) event.Subscription {
	return c.presented.Subscribe(fn)
}

// OnChanged subscribes to property-change notifications.
func (c *Conversation) OnChanged(fn func(event.Change)) event.Subscription {
	return c.changed.Subscribe(fn)
}

// WriteMessage appends m to the message log and notifies observers.
// Messages are appended in arrival order and never reordered; ids must be unique within the conversation — NewMessage generates
// one when the caller doesn't have a server-assigned id yet.
func (c *Conversation) WriteMessage(m *Message) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	c.changed.Emit(event.Change{Property: "messages", Item: c})
}

// Messages returns the message log in arrival order.
func (c *Conversation) Messages() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// AddMember adds info with rec to the live member collection and wires
// up title recomputation on the member's own display-name changes.
func (c *Conversation) AddMember(info *identity.Info, rec MembershipRecord) bool {
	return c.members.Add(info, rec)
}

// RemoveMember removes info from the live member collection.
func (c *Conversation) RemoveMember(info *identity.Info) bool {
	return c.members.Remove(info)
}

func (c *Conversation) onMemberAdded(info *identity.Info) {
	sub := info.OnChanged(func(ch event.Change) {
		if ch.Property == "display-name" || ch.Property == "alias" {
			c.recomputeTitle()
		}
	})
	c.memberInfoSubs[info] = sub
	c.recomputeTitle()
}

func (c *Conversation) onMemberRemoved(info *identity.Info) {
	if sub, ok := c.memberInfoSubs[info]; ok {
		info.Unsubscribe(sub)
		delete(c.memberInfoSubs, info)
	}
	c.recomputeTitle()
}

// TitleForDisplay is the derived display title.
func (c *Conversation) TitleForDisplay() string { return c.titleForDisplay }

// recomputeTitle applies deriveTitle's priority chain and emits exactly
// one notification if the result changed.
func (c *Conversation) recomputeTitle() {
	next := c.deriveTitle()
	if next == c.titleForDisplay {
		return
	}
	c.titleForDisplay = next
	c.changed.Emit(event.Change{Property: "title-for-display", Item: c})
}

func (c *Conversation) deriveTitle() string {
	if c.alias != "" {
		return c.alias
	}
	if c.title != "" {
		return c.title
	}
	switch c.kind {
	case KindDM:
		nonSelf := c.members.NonSelf()
		if len(nonSelf) == 1 {
			return nonSelf[0].DisplayNameOrUsername()
		}
	case KindGroupDM:
		nonSelf := c.members.NonSelf()
		if len(nonSelf) > 0 {
			names := make([]string, len(nonSelf))
			for i, m := range nonSelf {
				names[i] = m.DisplayNameOrUsername()
			}
			return strings.Join(names, ", ")
		}
	}
	return c.id
}
