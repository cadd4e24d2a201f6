package actions

import (
	"context"

	"github.com/aaronromeo/inboxsweep/internal/imap/base"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

type Actions interface {
	MarkDeleted(ctx context.Context, uid uint32) error
	Purge(ctx context.Context) error
}

// Interface to initialize the manager
type ClientProvider interface {
	IMAPClient() *giimapclient.Client
}

type IMAPActionManager struct {
	provider func() *giimapclient.Client
}

func New(provider ClientProvider) *IMAPActionManager {
	return &IMAPActionManager{provider: provider.IMAPClient}
}

// MarkDeleted flags a message \Deleted. It stays in the mailbox until Purge.
func (c *IMAPActionManager) MarkDeleted(ctx context.Context, uid uint32) error {
	if c.provider == nil || c.provider() == nil {
		return base.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var uidSet imap.UIDSet
	uidSet.AddNum(imap.UID(uid))

	store := imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := c.provider().Store(uidSet, &store, nil).Close(); err != nil {
		return base.Classify(err, mailbox.ErrDelete)
	}
	return nil
}

// Purge permanently removes every message flagged \Deleted in the selected
// mailbox.
func (c *IMAPActionManager) Purge(ctx context.Context) error {
	if c.provider == nil || c.provider() == nil {
		return base.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.provider().Expunge().Close(); err != nil {
		return base.Classify(err, mailbox.ErrDelete)
	}
	return nil
}
