package filetransfer

import (
	"sync"

	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/metrics"
)

// Manager is the FileTransferManager of: an observable list
// of Transfers implementing the list-model shape.
type Manager struct {
	mu    sync.Mutex
	items []*Transfer
	subs  map[*Transfer]event.Subscription

	added   event.Bus[*Transfer]
	removed event.Bus[*Transfer]
	changed event.Bus[event.Change]
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{subs: make(map[*Transfer]event.Subscription)}
}

// Add registers t and starts propagating its property changes as
// transfer-changed::<property>.
func (m *Manager) Add(t *Transfer) {
	m.mu.Lock()
	m.items = append(m.items, t)
	m.subs[t] = t.OnChanged(func(ch event.Change) { m.changed.Emit(ch) })
	n := len(m.items)
	m.mu.Unlock()

	metrics.SetFileTransfersInFlight(n)
	m.added.Emit(t)
}

// Remove unregisters t. Returns false if absent.
func (m *Manager) Remove(t *Transfer) bool {
	m.mu.Lock()
	idx := -1
	for i, x := range m.items {
		if x == t {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items[:idx], m.items[idx+1:]...)
	if sub, ok := m.subs[t]; ok {
		t.changed.Unsubscribe(sub)
		delete(m.subs, t)
	}
	n := len(m.items)
	m.mu.Unlock()

	metrics.SetFileTransfersInFlight(n)
	m.removed.Emit(t)
	return true
}

// GetNItems implements the list-model shape.
func (m *Manager) GetNItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// GetItem implements the list-model shape.
func (m *Manager) GetItem(i int) *Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.items) {
		return nil
	}
	return m.items[i]
}

// CancelAll cancels every tracked transfer, used by Core.Shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	items := make([]*Transfer, len(m.items))
	copy(items, m.items)
	m.mu.Unlock()
	for _, t := range items {
		t.Cancel()
	}
}

func (m *Manager) OnAdded(fn func(*Transfer)) event.Subscription   { return m.added.Subscribe(fn) }
func (m *Manager) OnRemoved(fn func(*Transfer)) event.Subscription { return m.removed.Subscribe(fn) }
func (m *Manager) OnChanged(fn func(event.Change)) event.Subscription {
	return m.changed.Subscribe(fn)
}
