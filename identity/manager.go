package identity

import (
	"context"
	"sync"

	"github.com/chatcore/corerun/event"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openimsdk/tools/log"
)

// profileCacheSize bounds the ContactManager's profile cache, the same
// role hashicorp/golang-lru plays for OpenIM's pkg/localcache: capping
// memory rather than caching unboundedly.
const profileCacheSize = 256

// contactKey is (account id, id-or-username).
type contactKey struct{ account, key string }

// Manager is the ContactManager: Contacts indexed by (account,
// id|username), plus Person ownership.
type Manager struct {
	mu sync.Mutex

	byKey    map[contactKey]*Contact
	propSubs map[*Contact]event.Subscription

	persons map[string]*Person

	profiles *lru.Cache[contactKey, string]

	populateMenu event.Bus[*Contact]
	changed      event.Bus[event.Change]

	personAdded   event.Bus[*Person]
	personRemoved event.Bus[*Person]
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	cache, _ := lru.New[contactKey, string](profileCacheSize)
	return &Manager{
		byKey:    make(map[contactKey]*Contact),
		propSubs: make(map[*Contact]event.Subscription),
		persons:  make(map[string]*Person),
		profiles: cache,
	}
}

func keyOf(c *Contact) contactKey {
	a, k := c.Key()
	return contactKey{account: a, key: k}
}

// Add registers c. Double-add (same pointer, detected by identity key
// collision) is refused with a warning.
func (m *Manager) Add(c *Contact) bool {
	m.mu.Lock()
	k := keyOf(c)
	if _, exists := m.byKey[k]; exists {
		m.mu.Unlock()
		log.ZWarn(nil, "identity: duplicate contact add refused", nil, "account", k.account, "key", k.key)
		return false
	}
	m.byKey[k] = c
	m.propSubs[c] = c.OnChanged(func(ch event.Change) {
		m.changed.Emit(ch)
		m.populateMenu.Emit(c)
	})
	m.mu.Unlock()
	return true
}

// Remove unregisters c. Returns false if absent.
func (m *Manager) Remove(c *Contact) bool {
	m.mu.Lock()
	k := keyOf(c)
	if _, exists := m.byKey[k]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.byKey, k)
	if sub, ok := m.propSubs[c]; ok {
		c.changed.Unsubscribe(sub)
		delete(m.propSubs, c)
	}
	m.mu.Unlock()
	m.profiles.Remove(k)
	return true
}

// RemoveAll removes every contact belonging to acct.
func (m *Manager) RemoveAll(acctID string) {
	m.mu.Lock()
	var victims []*Contact
	for k, c := range m.byKey {
		if k.account == acctID {
			victims = append(victims, c)
		}
	}
	m.mu.Unlock()
	for _, c := range victims {
		m.Remove(c)
	}
}

// GetProfileCached returns the cached profile text for c if present,
// otherwise calls fetch, caches the result, and returns it — bounding
// how often get_profile_async actually round-trips to the protocol, the
// same caching role OpenIM's pkg/localcache plays in front of its own
// network lookups.
func (m *Manager) GetProfileCached(ctx context.Context, c *Contact, fetch func(context.Context) (string, error)) (string, error) {
	k := keyOf(c)
	if v, ok := m.profiles.Get(k); ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	m.profiles.Add(k, v)
	return v, nil
}

// InvalidateProfile evicts any cached profile text for c, used when a
// contact's identity-affecting properties change.
func (m *Manager) InvalidateProfile(c *Contact) {
	m.profiles.Remove(keyOf(c))
}

// FindWithUsername looks up a contact by (account, username).
func (m *Manager) FindWithUsername(acctID, username string) (*Contact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.byKey {
		if k.account == acctID && c.Username == username {
			return c, true
		}
	}
	return nil, false
}

// FindWithID looks up a contact by (account, id).
func (m *Manager) FindWithID(acctID, id string) (*Contact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byKey[contactKey{account: acctID, key: id}]
	if !ok || c.ID != id {
		return nil, false
	}
	return c, true
}

// AddPerson registers a new Person, keyed by its id.
func (m *Manager) AddPerson(p *Person) bool {
	m.mu.Lock()
	if _, exists := m.persons[p.ID()]; exists {
		m.mu.Unlock()
		return false
	}
	m.persons[p.ID()] = p
	m.mu.Unlock()
	m.personAdded.Emit(p)
	return true
}

// RemovePerson unregisters p. If removeContacts is true, every Contact
// currently attached to p (that is also tracked by this Manager) is
// removed too.
func (m *Manager) RemovePerson(p *Person, removeContacts bool) bool {
	m.mu.Lock()
	if _, exists := m.persons[p.ID()]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.persons, p.ID())
	m.mu.Unlock()

	if removeContacts {
		for _, info := range p.Infos() {
			m.mu.Lock()
			var victim *Contact
			for _, c := range m.byKey {
				if c.Info == info {
					victim = c
					break
				}
			}
			m.mu.Unlock()
			if victim != nil {
				m.Remove(victim)
			}
		}
	}
	m.personRemoved.Emit(p)
	return true
}

func (m *Manager) OnPopulateMenu(fn func(*Contact)) event.Subscription {
	return m.populateMenu.Subscribe(fn)
}
func (m *Manager) OnChanged(fn func(event.Change)) event.Subscription {
	return m.changed.Subscribe(fn)
}
func (m *Manager) OnPersonAdded(fn func(*Person)) event.Subscription {
	return m.personAdded.Subscribe(fn)
}
func (m *Manager) OnPersonRemoved(fn func(*Person)) event.Subscription {
	return m.personRemoved.Subscribe(fn)
}
