// Package imap implements mailbox sessions over IMAP.
package imap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/aaronromeo/inboxsweep/internal/imap/actions"
	"github.com/aaronromeo/inboxsweep/internal/imap/searches"
	"github.com/aaronromeo/inboxsweep/internal/imap/selectors"
	"github.com/aaronromeo/inboxsweep/internal/imap/sessionmanager"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
)

// Client is one IMAP session. It satisfies mailbox.Session once connected.
type Client struct {
	*sessionmanager.IMAPConnector
	*searches.IMAPSearchManager
	*selectors.IMAPSelectorManager
	*actions.IMAPActionManager
}

var _ mailbox.Session = (*Client)(nil)

func New(opts ...sessionmanager.Option) *Client {
	session := sessionmanager.NewServerConnector(opts...)
	client := &Client{
		session,
		searches.New(session),
		selectors.New(session),
		actions.New(session),
	}
	return client
}

// Dialer opens a new logged-in Client per Dial call.
type Dialer struct {
	Addr      string
	Username  string
	Password  string
	TLSConfig *tls.Config
	Timeout   time.Duration
}

var _ mailbox.Dialer = Dialer{}

func (d Dialer) Dial(ctx context.Context) (mailbox.Session, error) {
	client := New(
		sessionmanager.WithAddr(d.Addr),
		sessionmanager.WithCreds(d.Username, d.Password),
		sessionmanager.WithTLSConfig(d.TLSConfig),
		sessionmanager.WithTimeout(d.Timeout),
	)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
