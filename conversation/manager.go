package conversation

import (
	"sync"

	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/identity"
)

// Manager is the ConversationManager of: a
// register/unregister pattern with no implicit lifetime.
type Manager struct {
	mu    sync.Mutex
	byKey map[string]*Conversation

	registered   event.Bus[*Conversation]
	unregistered event.Bus[*Conversation]
	present      event.Bus[*Conversation]
	changed      event.Bus[event.Change]

	propSubs    map[*Conversation]event.Subscription
	presentSubs map[*Conversation]event.Subscription
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		byKey:       make(map[string]*Conversation),
		propSubs:    make(map[*Conversation]event.Subscription),
		presentSubs: make(map[*Conversation]event.Subscription),
	}
}

// Register adds c if not already registered, connecting to its property
// notifications for re-emission. Returns false if already
// registered.
func (m *Manager) Register(c *Conversation) bool {
	m.mu.Lock()
	key := c.GlobalID()
	if _, exists := m.byKey[key]; exists {
		m.mu.Unlock()
		return false
	}
	m.byKey[key] = c
	m.propSubs[c] = c.OnChanged(func(ch event.Change) { m.changed.Emit(ch) })
	m.presentSubs[c] = c.OnPresent(func(conv *Conversation) { m.present.Emit(conv) })
	m.mu.Unlock()

	m.registered.Emit(c)
	return true
}

// Unregister removes c, disconnecting its property subscriptions (the
// disconnect is mandatory). Returns false if not
// registered.
func (m *Manager) Unregister(c *Conversation) bool {
	m.mu.Lock()
	key := c.GlobalID()
	if _, exists := m.byKey[key]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.byKey, key)
	if sub, ok := m.propSubs[c]; ok {
		c.changed.Unsubscribe(sub)
		delete(m.propSubs, c)
	}
	if sub, ok := m.presentSubs[c]; ok {
		c.presented.Unsubscribe(sub)
		delete(m.presentSubs, c)
	}
	m.mu.Unlock()

	m.unregistered.Emit(c)
	return true
}

// Find looks up a registered conversation by its global id.
func (m *Manager) Find(globalID string) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byKey[globalID]
	return c, ok
}

// All returns every registered conversation. Order is unspecified.
func (m *Manager) All() []*Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Conversation, 0, len(m.byKey))
	for _, c := range m.byKey {
		out = append(out, c)
	}
	return out
}

// FindDM returns the first registered DM conversation, belonging to the
// same account as contact, whose sole non-self member equals contact.
func (m *Manager) FindDM(contact *identity.Info) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byKey {
		if c.Kind() != KindDM {
			continue
		}
		a, _ := contact.Key()
		if c.AccountID() != a {
			continue
		}
		nonSelf := c.Members().NonSelf()
		if len(nonSelf) == 1 && nonSelf[0].SameIdentity(contact) {
			return c
		}
	}
	return nil
}

// OnRegistered / OnUnregistered / OnPresent / OnChanged subscribe to the
// manager-wide event streams.
func (m *Manager) OnRegistered(fn func(*Conversation)) event.Subscription {
	return m.registered.Subscribe(fn)
}
func (m *Manager) OnUnregistered(fn func(*Conversation)) event.Subscription {
	return m.unregistered.Subscribe(fn)
}
func (m *Manager) OnPresent(fn func(*Conversation)) event.Subscription {
	return m.present.Subscribe(fn)
}
func (m *Manager) OnChanged(fn func(event.Change)) event.Subscription {
	return m.changed.Subscribe(fn)
}
