// Package connection implements the per-account network session state
// machine.
package connection

import (
	"context"
	"sync"

	"github.com/chatcore/corerun/corerrs"
	"github.com/chatcore/corerun/event"
)

// State is a node of the one-way DISCONNECTED -> CONNECTING -> CONNECTED
// -> DISCONNECTING -> DISCONNECTED cycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// validNext enumerates the legal successors of each state. Transitions
// are one-way along the DISCONNECTED -> CONNECTING -> CONNECTED ->
// DISCONNECTING -> DISCONNECTED cycle; any transition to DISCONNECTED may
// carry an error. There's also a direct shortcut to DISCONNECTED from
// CONNECTING (failed connect attempt) and from CONNECTED (unexpected
// drop).
var validNext = map[State]map[State]bool{
	Disconnected:  {Connecting: true},
	Connecting:    {Connected: true, Disconnected: true},
	Connected:     {Disconnecting: true, Disconnected: true},
	Disconnecting: {Disconnected: true},
}

// StateChange is delivered on every transition, including the terminal
// DISCONNECTED-with-error case.
type StateChange struct {
	From, To State
	Err      error
}

// Connection is owned by exactly one Account. It exposes a
// cancellation context standing in for the GCancellable idiom: cancelling
// it aborts all in-flight protocol I/O tied to this session.
type Connection struct {
	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	ctx    context.Context

	changed event.Bus[StateChange]
}

// New creates a Connection in the DISCONNECTED state, deriving its
// cancellation context from parent.
func New(parent context.Context) *Connection {
	ctx, cancel := context.WithCancel(parent)
	return &Connection{state: Disconnected, ctx: ctx, cancel: cancel}
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Context returns the cancellation context protocols must select on for
// every suspendable operation tied to this connection.
func (c *Connection) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Transition moves the connection to `to`. A transition to Disconnected
// may carry a non-nil err (e.g. the result of a failed CONNECTING
// attempt, or an unexpected drop from CONNECTED). Transition panics if
// `to` is not a legal successor of the current state (see validNext) — this is
// a programmer error in the protocol driving the connection, not a
// runtime condition.
func (c *Connection) Transition(to State, err error) {
	c.mu.Lock()
	from := c.state
	if !validNext[from][to] {
		c.mu.Unlock()
		panic(corerrs.InvalidSettings("illegal connection transition %s -> %s", from, to))
	}
	c.state = to
	c.mu.Unlock()
	c.changed.Emit(StateChange{From: from, To: to, Err: err})
}

// Disconnect is idempotent: it cancels the connection-wide context
// (aborting in-flight I/O) and, if the connection is not already
// disconnected/disconnecting, advances it there. Protocols observe
// Context().Done() to unwind.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case Disconnected:
		c.cancel()
		return
	case Connecting:
		// CONNECTING has no DISCONNECTING leg of its own (nothing is
		// established yet to tear down) — it drops straight to
		// DISCONNECTED, the same shortcut a failed connect attempt uses.
		c.cancel()
		c.Transition(Disconnected, nil)
	case Connected:
		c.Transition(Disconnecting, nil)
		c.cancel()
		c.Transition(Disconnected, nil)
	case Disconnecting:
		c.cancel()
		c.Transition(Disconnected, nil)
	}
}

// OnStateChange subscribes to transitions.
func (c *Connection) OnStateChange(fn func(StateChange)) event.Subscription {
	return c.changed.Subscribe(fn)
}
