// Package account implements the Account model and lifecycle.
package account

import (
	"fmt"
	"sync"

	"github.com/chatcore/corerun/connection"
	"github.com/chatcore/corerun/corerrs"
	"github.com/chatcore/corerun/event"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// SettingKind tags the dynamic type carried by a Setting value — the Go
// stand-in for a GVariant-ish typed settings map.
type SettingKind int

const (
	SettingBool SettingKind = iota
	SettingInt
	SettingString
)

// Setting is one entry of an Account's string-keyed settings map.
type Setting struct {
	Kind SettingKind
	Bool bool
	Int  int64
	Str  string
}

// Account is a user identity on a protocol. Exported fields
// that are part of the documented identity tuple are read-only after
// construction via New; mutate behavior through the setter methods so
// property-change notifications fire.
type Account struct {
	mu sync.Mutex

	id         string
	protocolID string
	username   string

	enabled          bool
	rememberPassword bool
	currentStatus    string

	settings map[string]Setting

	conn *connection.Connection

	changed event.Bus[event.Change]
}

// identitySpec validates the identifying triple before construction;
// InvalidSettings covers "account is misconfigured (e.g. empty username,
// whitespace in id)".
type identitySpec struct {
	ID         string `validate:"required,excludesall= \t\n\r"`
	ProtocolID string `validate:"required"`
	Username   string `validate:"required"`
}

// New constructs an Account bound to protocolID/username, with id as its
// manager key. Returns InvalidSettings if id is empty/whitespace-bearing
// or protocolID/username are empty.
func New(id, protocolID, username string) (*Account, error) {
	if err := validate.Struct(identitySpec{ID: id, ProtocolID: protocolID, Username: username}); err != nil {
		return nil, corerrs.InvalidSettings("%v", err)
	}
	return &Account{
		id:         id,
		protocolID: protocolID,
		username:   username,
		settings:   make(map[string]Setting),
	}, nil
}

func (a *Account) ID() string         { return a.id }
func (a *Account) ProtocolID() string { return a.protocolID }
func (a *Account) Username() string   { return a.username }

func (a *Account) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled flips the enabled flag and emits a property-change event.
// It does not itself connect/disconnect — the AccountManager does that,
// treating enabled=true as the trigger to call connect().
func (a *Account) SetEnabled(v bool) {
	a.mu.Lock()
	changed := a.enabled != v
	a.enabled = v
	a.mu.Unlock()
	if changed {
		a.changed.Emit(event.Change{Property: "enabled", Item: a})
	}
}

func (a *Account) RememberPassword() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rememberPassword
}

func (a *Account) SetRememberPassword(v bool) {
	a.mu.Lock()
	changed := a.rememberPassword != v
	a.rememberPassword = v
	a.mu.Unlock()
	if changed {
		a.changed.Emit(event.Change{Property: "remember-password", Item: a})
	}
}

func (a *Account) CurrentStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentStatus
}

func (a *Account) SetCurrentStatus(status string) {
	a.mu.Lock()
	changed := a.currentStatus != status
	a.currentStatus = status
	a.mu.Unlock()
	if changed {
		a.changed.Emit(event.Change{Property: "current-status", Item: a})
	}
}

// Connection returns the owned Connection, or nil if never connected.
func (a *Account) Connection() *connection.Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

// BindConnection attaches a freshly created Connection to this account.
// Only one Connection may be owned at a time; BindConnection(nil) clears
// it once the connection has fully disconnected.
func (a *Account) BindConnection(c *connection.Connection) {
	a.mu.Lock()
	a.conn = c
	a.mu.Unlock()
	a.changed.Emit(event.Change{Property: "connection", Item: a})
}

// SetSetting stores a typed setting value, decoding raw through
// mapstructure the way RequestPage field values arrive as map[string]any
// from the UI layer.
func (a *Account) SetSetting(key string, kind SettingKind, raw any) error {
	s := Setting{Kind: kind}
	switch kind {
	case SettingBool:
		if err := mapstructure.Decode(raw, &s.Bool); err != nil {
			return corerrs.InvalidSettings("setting %q: %v", key, err)
		}
	case SettingInt:
		if err := mapstructure.Decode(raw, &s.Int); err != nil {
			return corerrs.InvalidSettings("setting %q: %v", key, err)
		}
	case SettingString:
		if err := mapstructure.Decode(raw, &s.Str); err != nil {
			return corerrs.InvalidSettings("setting %q: %v", key, err)
		}
	default:
		return corerrs.InvalidSettings("setting %q: unknown kind %d", key, kind)
	}
	a.mu.Lock()
	a.settings[key] = s
	a.mu.Unlock()
	a.changed.Emit(event.Change{Property: "settings." + key, Item: a})
	return nil
}

// GetBool returns the bool setting for key, or def if absent or the
// wrong kind.
func (a *Account) GetBool(key string, def bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.settings[key]; ok && s.Kind == SettingBool {
		return s.Bool
	}
	return def
}

// GetInt returns the int setting for key, or def if absent or the wrong
// kind.
func (a *Account) GetInt(key string, def int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.settings[key]; ok && s.Kind == SettingInt {
		return s.Int
	}
	return def
}

// GetString returns the string setting for key, or def if absent or the
// wrong kind.
func (a *Account) GetString(key string, def string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.settings[key]; ok && s.Kind == SettingString {
		return s.Str
	}
	return def
}

// OnChanged subscribes to property-change notifications for this
// account (re-emitted by AccountManager as account-changed::<prop>).
func (a *Account) OnChanged(fn func(event.Change)) event.Subscription {
	return a.changed.Subscribe(fn)
}

func (a *Account) String() string {
	return fmt.Sprintf("Account{%s, proto=%s, user=%s}", a.id, a.protocolID, a.username)
}
