// Package filetransfer implements the FileTransfer model and its
// manager.
package filetransfer

import (
	"context"
	"sync"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/corerrs"
	"github.com/chatcore/corerun/event"
	"github.com/chatcore/corerun/identity"
)

// State is a node of the FileTransfer state machine.
type State int

const (
	Unknown State = iota
	Negotiating
	Started
	Finished
	Failed
)

// Transfer is an in-flight file transfer as an observable state machine.
// Ownership is shared between the Manager and the triggering protocol via
// a plain Go pointer, which is sufficient since the GC reclaims it once
// both release their reference.
type Transfer struct {
	mu sync.Mutex

	acct      *account.Account
	remote    *identity.Info
	initiator *identity.Info

	ctx    context.Context
	cancel context.CancelFunc

	state       State
	err         error
	localFile   string
	filename    string
	fileSize    int64
	contentType string
	message     string

	changed event.Bus[event.Change]
}

func newTransfer(parent context.Context, acct *account.Account, remote, initiator *identity.Info, filename string, size int64) *Transfer {
	ctx, cancel := context.WithCancel(parent)
	return &Transfer{
		acct:      acct,
		remote:    remote,
		initiator: initiator,
		ctx:       ctx,
		cancel:    cancel,
		state:     Negotiating,
		filename:  filename,
		fileSize:  size,
	}
}

// NewSend constructs a send-shaped Transfer from a local file handle; the
// caller queries the file's display name and size before calling.
func NewSend(parent context.Context, acct *account.Account, remote, initiator *identity.Info, localFile, displayName string, size int64) *Transfer {
	t := newTransfer(parent, acct, remote, initiator, displayName, size)
	t.localFile = localFile
	return t
}

// NewReceive constructs a receive-shaped Transfer from an advertised
// filename and size.
func NewReceive(parent context.Context, acct *account.Account, remote, initiator *identity.Info, advertisedName string, size int64) *Transfer {
	return newTransfer(parent, acct, remote, initiator, advertisedName, size)
}

func (t *Transfer) Account() *account.Account   { return t.acct }
func (t *Transfer) Remote() *identity.Info      { return t.remote }
func (t *Transfer) Initiator() *identity.Info   { return t.initiator }
func (t *Transfer) Filename() string            { return t.filename }
func (t *Transfer) FileSize() int64             { return t.fileSize }
func (t *Transfer) LocalFile() string           { return t.localFile }
func (t *Transfer) ContentType() string         { return t.contentType }
func (t *Transfer) Message() string             { return t.message }

// Context returns the per-transfer cancellation context that the driving
// protocol must honour.
func (t *Transfer) Context() context.Context { return t.ctx }

func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transfer) Error() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// SetContentType/SetMessage are set by the protocol once negotiated.
func (t *Transfer) SetContentType(ct string) {
	t.contentType = ct
	t.changed.Emit(event.Change{Property: "content-type", Item: t})
}
func (t *Transfer) SetMessage(m string) {
	t.message = m
	t.changed.Emit(event.Change{Property: "message", Item: t})
}

// SetState transitions the transfer. Setting Failed with a nil err
// defaults to a Cancelled-taxonomy error if the context was the cause.
func (t *Transfer) SetState(s State, err error) {
	if s == Failed && err == nil && t.ctx.Err() != nil {
		err = corerrs.Cancelled()
	}
	t.mu.Lock()
	t.state = s
	t.err = err
	t.mu.Unlock()
	t.changed.Emit(event.Change{Property: "state", Item: t})
}

// Cancel honours the single cancellation handle:
// cancelling transitions the transfer to Failed with a Cancelled error.
func (t *Transfer) Cancel() {
	t.cancel()
	t.SetState(Failed, corerrs.Cancelled())
}

// OnChanged subscribes to property changes on this transfer.
func (t *Transfer) OnChanged(fn func(event.Change)) event.Subscription {
	return t.changed.Subscribe(fn)
}
