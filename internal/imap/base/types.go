package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

var ErrNotConnected = fmt.Errorf("%w: IMAP client is not connected", mailbox.ErrNetwork)

type State struct {
	Client *giimapclient.Client
}

// Classify maps an imapclient error onto the mailbox error taxonomy. Server
// NO/BAD responses become sentinel; anything else means the connection is
// unusable and becomes mailbox.ErrNetwork.
func Classify(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("%w: %w", mailbox.ErrNetwork, err)
}
