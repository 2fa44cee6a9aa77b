// Package corerun is the module root: it exposes Core, the single
// context object bundling the core's process-wide singleton managers
// to avoid hidden globals.
package corerun

import (
	"context"

	"github.com/chatcore/corerun/account"
	"github.com/chatcore/corerun/config"
	"github.com/chatcore/corerun/conversation"
	"github.com/chatcore/corerun/credential"
	"github.com/chatcore/corerun/filetransfer"
	"github.com/chatcore/corerun/identity"
	"github.com/chatcore/corerun/metrics"
	"github.com/chatcore/corerun/notification"
	"github.com/chatcore/corerun/protocol"
	"github.com/openimsdk/tools/log"
	"golang.org/x/sync/errgroup"
)

// Core owns every process-wide manager singleton, initialized at
// startup and torn down at shutdown. A host embeds the
// library by constructing exactly one Core and threading it through
// instead of reaching for package-level globals.
type Core struct {
	Accounts      *account.Manager
	Contacts      *identity.Manager
	Conversations *conversation.Manager
	Protocols     *protocol.Registry
	FileTransfers *filetransfer.Manager
	Credentials   *credential.Manager
	Notifications *notification.Manager

	cancel context.CancelFunc
	ctx    context.Context
}

// New constructs a Core with every manager freshly initialized, with
// metrics registration gated by cfg.Metrics.Enabled. Pass config.Default()
// for a host that hasn't loaded its own config.Defaults yet.
func New(parent context.Context, cfg config.Defaults) *Core {
	metrics.SetEnabled(cfg.Metrics.Enabled)
	ctx, cancel := context.WithCancel(parent)
	return &Core{
		Accounts:      account.NewManager(),
		Contacts:      identity.NewManager(),
		Conversations: conversation.NewManager(),
		Protocols:     protocol.NewRegistry(),
		FileTransfers: filetransfer.NewManager(),
		Credentials:   credential.NewManager(),
		Notifications: notification.NewManager(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Context returns the Core-wide cancellation context; Shutdown cancels
// it before tearing managers down.
func (c *Core) Context() context.Context { return c.ctx }

// Shutdown disconnects every managed account and cancels every tracked
// file transfer concurrently, the way pkg/common startup code in the
// teacher fans out independent cleanup steps with errgroup, then waits
// for all of them before returning.
func (c *Core) Shutdown(ctx context.Context) error {
	c.cancel()

	g, _ := errgroup.WithContext(ctx)
	for _, acct := range c.Accounts.GetAll() {
		acct := acct
		g.Go(func() error {
			if conn := acct.Connection(); conn != nil {
				conn.Disconnect()
			}
			return nil
		})
	}
	g.Go(func() error {
		c.FileTransfers.CancelAll()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.ZWarn(ctx, "core: shutdown encountered an error", err)
		return err
	}
	return nil
}
