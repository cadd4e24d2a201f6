package sessionmanager

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/aaronromeo/inboxsweep/internal/imap/base"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

const DefaultMailbox = "INBOX"

type Option func(*IMAPConnector)

type ServerConnector interface {
	Connect(ctx context.Context) error
	Logout() error

	IMAPClient() *giimapclient.Client
}

type IMAPConnector struct {
	Addr      string
	Username  string
	Password  string
	Mailbox   string
	TLSConfig *tls.Config
	Timeout   time.Duration

	base.State
}

func WithAddr(a string) Option {
	return func(c *IMAPConnector) {
		c.Addr = a
	}
}

func WithCreds(username string, password string) Option {
	return func(c *IMAPConnector) {
		c.Username = username
		c.Password = password
	}
}

func WithTLSConfig(config *tls.Config) Option {
	return func(c *IMAPConnector) {
		c.TLSConfig = config
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *IMAPConnector) {
		c.Timeout = d
	}
}

func WithMailbox(name string) Option {
	return func(c *IMAPConnector) {
		c.Mailbox = name
	}
}

func NewServerConnector(opts ...Option) *IMAPConnector {
	c := &IMAPConnector{}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *IMAPConnector) IMAPClient() *giimapclient.Client {
	return c.Client
}

// Connect dials over implicit TLS, logs in, and selects the mailbox.
func (c *IMAPConnector) Connect(ctx context.Context) error {
	if err := validateDeps(c); err != nil {
		return err
	}
	if strings.TrimSpace(c.Mailbox) == "" {
		c.Mailbox = DefaultMailbox
	}

	tlsConfig := &tls.Config{}
	if c.TLSConfig != nil {
		tlsConfig = c.TLSConfig.Clone()
	}
	if tlsConfig.NextProtos == nil {
		tlsConfig.NextProtos = []string{"imap"}
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.Timeout},
		Config:    tlsConfig,
	}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return base.Classify(err, mailbox.ErrNetwork)
	}

	client := giimapclient.New(conn, nil)

	if err := client.Login(c.Username, c.Password).Wait(); err != nil {
		_ = client.Close()
		return base.Classify(err, mailbox.ErrAuth)
	}

	if _, err := client.Select(c.Mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return base.Classify(err, mailbox.ErrNetwork)
	}

	c.Client = client
	return nil
}

// Logout ends the session and releases the connection.
func (c *IMAPConnector) Logout() error {
	if c.Client == nil {
		return nil
	}
	err := c.Client.Logout().Wait()
	_ = c.Client.Close()
	c.Client = nil
	return err
}

func validateDeps(state *IMAPConnector) error {
	if strings.TrimSpace(state.Addr) == "" {
		return errors.New("IMAP address is required")
	}
	if strings.TrimSpace(state.Username) == "" || strings.TrimSpace(state.Password) == "" {
		return errors.New("IMAP credentials are required")
	}

	return nil
}
