package account

import (
	"sync"

	"github.com/chatcore/corerun/connection"
	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/metrics"
)

// Manager is the AccountManager of: accounts indexed by id,
// holding strong references; destruction is only permitted once removed.
type Manager struct {
	mu       sync.Mutex
	byID     map[string]*Account
	propSubs map[*Account]event.Subscription

	added   event.Bus[*Account]
	removed event.Bus[*Account]
	changed event.Bus[event.Change]
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		byID:     make(map[string]*Account),
		propSubs: make(map[*Account]event.Subscription),
	}
}

// Add registers acct. Fails (returns false) if acct.ID() is already
// present.
func (m *Manager) Add(acct *Account) bool {
	m.mu.Lock()
	if _, exists := m.byID[acct.ID()]; exists {
		m.mu.Unlock()
		return false
	}
	m.byID[acct.ID()] = acct
	m.propSubs[acct] = acct.OnChanged(func(ch event.Change) {
		m.changed.Emit(ch)
		if ch.Property == "connection" {
			if c := acct.Connection(); c != nil {
				c.OnStateChange(func(connection.StateChange) { m.reportConnectedCount() })
			}
			m.reportConnectedCount()
		}
	})
	m.mu.Unlock()

	m.added.Emit(acct)
	return true
}

// reportConnectedCount publishes the current CONNECTED account count to
// the metrics package.
func (m *Manager) reportConnectedCount() {
	metrics.SetConnectedAccounts(len(m.GetConnected()))
}

// Remove unregisters acct. Returns false if absent, emitting no signals.
func (m *Manager) Remove(acct *Account) bool {
	m.mu.Lock()
	if _, exists := m.byID[acct.ID()]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.byID, acct.ID())
	if sub, ok := m.propSubs[acct]; ok {
		acct.changed.Unsubscribe(sub)
		delete(m.propSubs, acct)
	}
	m.mu.Unlock()

	m.removed.Emit(acct)
	m.reportConnectedCount()
	return true
}

// FindByID looks up an account by id.
func (m *Manager) FindByID(id string) (*Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	return a, ok
}

// GetAll returns every managed account. Order is unspecified.
func (m *Manager) GetAll() []*Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Account, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, a)
	}
	return out
}

// GetConnected returns every account whose Connection is CONNECTED.
func (m *Manager) GetConnected() []*Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Account, 0)
	for _, a := range m.byID {
		if c := a.Connection(); c != nil && c.State() == connection.Connected {
			out = append(out, a)
		}
	}
	return out
}

func (m *Manager) OnAdded(fn func(*Account)) event.Subscription   { return m.added.Subscribe(fn) }
func (m *Manager) OnRemoved(fn func(*Account)) event.Subscription { return m.removed.Subscribe(fn) }
func (m *Manager) OnChanged(fn func(event.Change)) event.Subscription {
	return m.changed.Subscribe(fn)
}
