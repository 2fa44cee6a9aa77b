package identity

import (
	"github.com/chatcore/corerun/event"
	"github.com/google/uuid"
)

// AccountRef is the minimal Account surface Contact needs. It exists to
// avoid identity<->account becoming a two-way import: account.Account
// satisfies it structurally.
type AccountRef interface {
	ID() string
	ProtocolID() string
}

// Contact is a ContactInfo bound to an Account.
// Account is non-null and immutable after construction.
type Contact struct {
	*Info
	account AccountRef
}

// NewContact binds info to acct. acct must not be nil.
func NewContact(acct AccountRef, info *Info) *Contact {
	if acct == nil {
		panic("identity: NewContact requires a non-nil account")
	}
	info.account = acct.ID()
	return &Contact{Info: info, account: acct}
}

// Account returns the owning account. Never nil.
func (c *Contact) Account() AccountRef { return c.account }

// Person groups one or more ContactInfos the user considers the same
// human. Mutating the contact set emits a signal.
type Person struct {
	id      string
	infos   []*Info
	index   map[*Info]int
	changed event.Bus[event.Change]
}

// NewPerson creates an empty Person. If id is empty, a fresh one is
// generated — a Person formed by merging two ContactInfos the user
// identifies as the same human has no natural protocol-assigned id.
func NewPerson(id string) *Person {
	if id == "" {
		id = uuid.NewString()
	}
	return &Person{id: id, index: make(map[*Info]int)}
}

func (p *Person) ID() string { return p.id }

// AddInfo attaches info to this person. Returns false if already
// attached.
func (p *Person) AddInfo(info *Info) bool {
	if _, ok := p.index[info]; ok {
		return false
	}
	p.index[info] = len(p.infos)
	p.infos = append(p.infos, info)
	p.changed.Emit(event.Change{Property: "contacts", Item: p})
	return true
}

// RemoveInfo detaches info from this person. Returns false if absent.
// Removing the last ContactInfo does NOT remove the Person itself
// — that's the ContactManager's call.
func (p *Person) RemoveInfo(info *Info) bool {
	idx, ok := p.index[info]
	if !ok {
		return false
	}
	p.infos = append(p.infos[:idx], p.infos[idx+1:]...)
	delete(p.index, info)
	for i := idx; i < len(p.infos); i++ {
		p.index[p.infos[i]] = i
	}
	p.changed.Emit(event.Change{Property: "contacts", Item: p})
	return true
}

// Infos returns the attached ContactInfos, in attachment order.
func (p *Person) Infos() []*Info {
	out := make([]*Info, len(p.infos))
	copy(out, p.infos)
	return out
}

// OnChanged subscribes to contact-set mutations.
func (p *Person) OnChanged(fn func(event.Change)) event.Subscription {
	return p.changed.Subscribe(fn)
}
