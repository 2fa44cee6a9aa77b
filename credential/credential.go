// Package credential implements the CredentialProvider abstraction and
// its manager.
package credential

import (
	"context"
	"sync"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/corerrs"
)

// Provider is a pluggable secret store, identified by ID().
type Provider interface {
	ID() string
	ReadPasswordAsync(ctx context.Context, acct *account.Account) (string, error)
	WritePasswordAsync(ctx context.Context, acct *account.Account, password string) error
	ClearPasswordAsync(ctx context.Context, acct *account.Account) error
}

// Manager is the CredentialManager of: a registry of
// Providers keyed by id, with exactly one active provider (or none).
type Manager struct {
	mu       sync.Mutex
	byID     map[string]Provider
	activeID string
}

// NewManager returns a Manager with no registered providers and none
// active.
func NewManager() *Manager {
	return &Manager{byID: make(map[string]Provider)}
}

// Register adds provider. Fails if its id is already present.
func (m *Manager) Register(p Provider) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[p.ID()]; exists {
		return false
	}
	m.byID[p.ID()] = p
	return true
}

// Unregister removes the provider with the given id. Fails if it is
// currently active or not registered.
func (m *Manager) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[id]; !exists {
		return false
	}
	if m.activeID == id {
		return false
	}
	delete(m.byID, id)
	return true
}

// SetActive sets the active provider by id. id == "" always succeeds
// (unsetting). A non-existent, non-empty id fails.
func (m *Manager) SetActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		m.activeID = ""
		return true
	}
	if _, exists := m.byID[id]; !exists {
		return false
	}
	m.activeID = id
	return true
}

// ActiveID returns the currently active provider id, or "" if none.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

func (m *Manager) active() (Provider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return nil, false
	}
	return m.byID[m.activeID], true
}

// noActiveProviderError is returned by all three delegating methods when
// no provider is active.
func noActiveProviderError() error {
	return corerrs.InvalidSettings("no active credential provider")
}

// ReadPasswordAsync delegates to the active provider, or fails if none.
func (m *Manager) ReadPasswordAsync(ctx context.Context, acct *account.Account) (string, error) {
	p, ok := m.active()
	if !ok {
		return "", noActiveProviderError()
	}
	return p.ReadPasswordAsync(ctx, acct)
}

// WritePasswordAsync delegates to the active provider, or fails if none.
func (m *Manager) WritePasswordAsync(ctx context.Context, acct *account.Account, password string) error {
	p, ok := m.active()
	if !ok {
		return noActiveProviderError()
	}
	return p.WritePasswordAsync(ctx, acct, password)
}

// ClearPasswordAsync delegates to the active provider, or fails if none.
// Authentication failure clears the saved password iff
// remember_password is false — callers (the connection-error path) are
// expected to check that flag before calling this.
func (m *Manager) ClearPasswordAsync(ctx context.Context, acct *account.Account) error {
	p, ok := m.active()
	if !ok {
		return noActiveProviderError()
	}
	return p.ClearPasswordAsync(ctx, acct)
}
