package conversation

import (
	"time"

	"github.com/chatcore/corerun/identity"
)

// MemberFlags is a bitmask of role/typing flags carried by a
// MembershipRecord.
type MemberFlags uint32

const (
	MemberFounder MemberFlags = 1 << iota
	MemberOp
	MemberHalfop
	MemberVoice
	MemberTyping
)

// MembershipRecord is the value half of the ConversationMembers mapping.
type MembershipRecord struct {
	IsMe     bool
	Flags    MemberFlags
	Nickname string
	JoinedAt time.Time
}

// memberKey is the (account, id|username) identity key used to index
// members, matching identity.Info.Key().
type memberKey struct{ account, key string }

// Members is the live ContactInfo -> MembershipRecord mapping owned
// exclusively by a Conversation.
type Members struct {
	order []string // member keys, insertion order, for deterministic title generation
	infos map[string]*identity.Info
	recs  map[string]MembershipRecord

	onAdd    func(*identity.Info)
	onRemove func(*identity.Info)
}

func newMembers() *Members {
	return &Members{infos: make(map[string]*identity.Info), recs: make(map[string]MembershipRecord)}
}

func infoKey(i *identity.Info) string {
	a, k := i.Key()
	return a + "\x00" + k
}

// Add inserts or replaces the membership record for info. Returns true
// if info was newly added (not merely updated).
func (m *Members) Add(info *identity.Info, rec MembershipRecord) bool {
	key := infoKey(info)
	_, existed := m.infos[key]
	m.infos[key] = info
	m.recs[key] = rec
	if !existed {
		m.order = append(m.order, key)
		if m.onAdd != nil {
			m.onAdd(info)
		}
	}
	return !existed
}

// Remove deletes the membership record for info. Returns false if info
// was not a member.
func (m *Members) Remove(info *identity.Info) bool {
	key := infoKey(info)
	if _, ok := m.infos[key]; !ok {
		return false
	}
	delete(m.infos, key)
	delete(m.recs, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.onRemove != nil {
		m.onRemove(info)
	}
	return true
}

// Get returns the membership record for info, if present.
func (m *Members) Get(info *identity.Info) (MembershipRecord, bool) {
	rec, ok := m.recs[infoKey(info)]
	return rec, ok
}

// Len reports the member count.
func (m *Members) Len() int { return len(m.order) }

// List returns the members in insertion order.
func (m *Members) List() []*identity.Info {
	out := make([]*identity.Info, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.infos[k])
	}
	return out
}

// NonSelf returns every member whose record is not IsMe, in insertion
// order. Used by title generation.
func (m *Members) NonSelf() []*identity.Info {
	out := make([]*identity.Info, 0, len(m.order))
	for _, k := range m.order {
		if !m.recs[k].IsMe {
			out = append(out, m.infos[k])
		}
	}
	return out
}
