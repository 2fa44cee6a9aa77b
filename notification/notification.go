// Package notification implements an in-process, observable list of
// user-visible notifications.
package notification

import (
	"sync"
	"time"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/metrics"
	"github.com/google/uuid"
	"github.com/openimsdk/tools/log"
)

// Kind classifies a Notification. Generic is transient; ConnectionError
// is not.
type Kind int

const (
	KindGeneric Kind = iota
	KindConnectionError
)

// IsTransient reports whether notifications of this kind start out
// transient, i.e. removed by RemoveWithAccount when includeNonTransient
// is false (unless changed with SetTransient).
func (k Kind) IsTransient() bool { return k == KindGeneric }

// Notification is a user-visible informational event.
type Notification struct {
	id        string
	title     string
	account   *account.Account
	createdAt time.Time
	read      bool
	transient bool
	kind      Kind
}

// New constructs a Notification. transient defaults to kind.IsTransient()
// unless overridden by SetTransient. If id is empty, a fresh one is
// generated.
func New(id, title string, acct *account.Account, kind Kind) *Notification {
	if id == "" {
		id = uuid.NewString()
	}
	return &Notification{
		id:        id,
		title:     title,
		account:   acct,
		createdAt: time.Now(),
		transient: kind.IsTransient(),
		kind:      kind,
	}
}

func (n *Notification) ID() string               { return n.id }
func (n *Notification) Title() string            { return n.title }
func (n *Notification) Account() *account.Account { return n.account }
func (n *Notification) CreatedAt() time.Time     { return n.createdAt }
func (n *Notification) Read() bool               { return n.read }
func (n *Notification) Transient() bool          { return n.transient }
func (n *Notification) Kind() Kind               { return n.kind }
func (n *Notification) SetTransient(v bool)      { n.transient = v }

// Manager owns notifications as a list-model.
type Manager struct {
	mu    sync.Mutex
	items []*Notification
	byPtr map[*Notification]bool

	added        event.Bus[*Notification]
	removed      event.Bus[*Notification]
	read         event.Bus[*Notification]
	unread       event.Bus[*Notification]
	unreadCountC event.Bus[int]
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{byPtr: make(map[*Notification]bool)}
}

// Add registers n. Double-add (same pointer) is a programmer error:
// logged and refused.
func (m *Manager) Add(n *Notification) bool {
	m.mu.Lock()
	if m.byPtr[n] {
		m.mu.Unlock()
		log.ZWarn(nil, "notification: duplicate add refused", nil, "id", n.ID())
		return false
	}
	m.byPtr[n] = true
	m.items = append(m.items, n)
	m.mu.Unlock()

	m.added.Emit(n)
	m.syncUnreadGauge()
	return true
}

// Remove unregisters n. Returns false if absent.
func (m *Manager) Remove(n *Notification) bool {
	m.mu.Lock()
	if !m.byPtr[n] {
		m.mu.Unlock()
		return false
	}
	delete(m.byPtr, n)
	for i, x := range m.items {
		if x == n {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.removed.Emit(n)
	m.syncUnreadGauge()
	return true
}

// Clear removes every notification.
func (m *Manager) Clear() {
	m.mu.Lock()
	items := make([]*Notification, len(m.items))
	copy(items, m.items)
	m.mu.Unlock()
	for _, n := range items {
		m.Remove(n)
	}
}

// RemoveWithAccount iterates in reverse index order (so batch removal is
// stable) removing every notification whose Account == acct and, if
// includeNonTransient is false, whose Transient flag is set (its kind's
// IsTransient unless changed with SetTransient).
// Returns the number removed.
func (m *Manager) RemoveWithAccount(acct *account.Account, includeNonTransient bool) int {
	m.mu.Lock()
	var victims []*Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		n := m.items[i]
		if n.account != acct {
			continue
		}
		if !includeNonTransient && !n.transient {
			continue
		}
		victims = append(victims, n)
	}
	m.mu.Unlock()

	for _, n := range victims {
		m.Remove(n)
	}
	return len(victims)
}

// SetRead marks n's read flag, emitting read/unread and re-syncing the
// manager's unread-count notification.
func (m *Manager) SetRead(n *Notification, read bool) {
	if n.read == read {
		return
	}
	n.read = read
	if read {
		m.read.Emit(n)
	} else {
		m.unread.Emit(n)
	}
	m.syncUnreadGauge()
}

// UnreadCount returns #{n : !n.read}.
func (m *Manager) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if !n.read {
			count++
		}
	}
	return count
}

func (m *Manager) syncUnreadGauge() {
	c := m.UnreadCount()
	metrics.SetNotificationsUnread(c)
	m.unreadCountC.Emit(c)
}

// GetNItems / GetItem implement the list-model shape.
func (m *Manager) GetNItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Manager) GetItem(i int) *Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.items) {
		return nil
	}
	return m.items[i]
}

func (m *Manager) OnAdded(fn func(*Notification)) event.Subscription   { return m.added.Subscribe(fn) }
func (m *Manager) OnRemoved(fn func(*Notification)) event.Subscription { return m.removed.Subscribe(fn) }
func (m *Manager) OnRead(fn func(*Notification)) event.Subscription    { return m.read.Subscribe(fn) }
func (m *Manager) OnUnread(fn func(*Notification)) event.Subscription  { return m.unread.Subscribe(fn) }
func (m *Manager) OnUnreadCountChanged(fn func(int)) event.Subscription {
	return m.unreadCountC.Subscribe(fn)
}
