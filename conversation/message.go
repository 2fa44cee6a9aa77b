package conversation

import (
	"time"

	"github.com/chatcore/corerun/identity"
	"github.com/google/uuid"
)

// MessageFlags is a bitmask of the flags carried by an immutable Message.
type MessageFlags uint32

const (
	FlagSend MessageFlags = 1 << iota
	FlagRecv
	FlagSystem
	FlagNotify
	FlagError
	FlagImages
	FlagDelayed
	FlagNick
)

func (f MessageFlags) Has(flag MessageFlags) bool { return f&flag != 0 }

// Message is immutable once created;
type Message struct {
	id        string
	author    *identity.Info
	contents  string
	timestamp time.Time
	flags     MessageFlags
	err       error
}

// NewMessage constructs an immutable Message. If id is empty, a fresh one
// is generated, for locally-originated messages a protocol hasn't yet
// assigned a server id to.
func NewMessage(id string, author *identity.Info, contents string, ts time.Time, flags MessageFlags, err error) *Message {
	if id == "" {
		id = uuid.NewString()
	}
	return &Message{id: id, author: author, contents: contents, timestamp: ts, flags: flags, err: err}
}

func (m *Message) ID() string               { return m.id }
func (m *Message) Author() *identity.Info   { return m.author }
func (m *Message) Contents() string         { return m.contents }
func (m *Message) Timestamp() time.Time     { return m.timestamp }
func (m *Message) Flags() MessageFlags      { return m.flags }
func (m *Message) Error() error             { return m.err }
