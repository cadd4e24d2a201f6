package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/aaronromeo/inboxsweep/internal/config"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const (
	runTimeLayout = "2006-01-02 15:04:05"
	subjectLayout = "2006-01-02 15:04"

	defaultTimeout = 30 * time.Second
)

var ErrSubmission = errors.New("notification submission failed")

// Service sends a run summary to the configured recipient.
type Service interface {
	Notify(ctx context.Context, summary Summary) error
}

// Summary is the content of one notification.
type Summary struct {
	RunTime               time.Time
	Mailbox               string
	Total                 int
	Details               string
	Provider              string
	MinAgeDays            int
	CleanReadNoAttachment bool
	DryRun                bool
}

type Option func(*SMTPNotifier)

func WithAddr(addr string) Option {
	return func(n *SMTPNotifier) {
		n.addr = strings.TrimSpace(addr)
	}
}

func WithCreds(username, password string) Option {
	return func(n *SMTPNotifier) {
		n.username = username
		n.password = password
	}
}

func WithSender(from string) Option {
	return func(n *SMTPNotifier) {
		n.from = strings.TrimSpace(from)
	}
}

func WithRecipient(to string) Option {
	return func(n *SMTPNotifier) {
		n.to = strings.TrimSpace(to)
	}
}

func WithSecurity(security config.SMTPSecurity) Option {
	return func(n *SMTPNotifier) {
		n.security = security
	}
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(n *SMTPNotifier) {
		n.tlsConfig = cfg
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(n *SMTPNotifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// SMTPNotifier submits summaries over SMTP with PLAIN authentication.
type SMTPNotifier struct {
	addr      string
	username  string
	password  string
	from      string
	to        string
	security  config.SMTPSecurity
	tlsConfig *tls.Config
	timeout   time.Duration
}

func New(opts ...Option) *SMTPNotifier {
	n := &SMTPNotifier{
		security: config.SMTPStartTLS,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *SMTPNotifier) Notify(ctx context.Context, summary Summary) error {
	if n.addr == "" || n.from == "" || n.to == "" {
		return fmt.Errorf("%w: server, sender and recipient are required", ErrSubmission)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := compose(n.from, n.to, summary)
	if err != nil {
		return fmt.Errorf("%w: compose: %w", ErrSubmission, err)
	}

	c, err := n.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	defer c.Close()

	if n.password != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("%w: server does not offer AUTH", ErrSubmission)
		}
		if err := c.Auth(sasl.NewPlainClient("", n.username, n.password)); err != nil {
			return fmt.Errorf("%w: auth: %w", ErrSubmission, err)
		}
	}
	if err := c.SendMail(n.from, []string{n.to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("%w: send: %w", ErrSubmission, err)
	}
	if err := c.Quit(); err != nil {
		return fmt.Errorf("%w: quit: %w", ErrSubmission, err)
	}
	return nil
}

func (n *SMTPNotifier) dial(ctx context.Context) (*smtp.Client, error) {
	host, _, err := net.SplitHostPort(n.addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", n.addr, err)
	}
	tlsConfig := n.tlsConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: host}
	}

	dialer := &net.Dialer{Timeout: n.timeout}
	var conn net.Conn
	switch n.security {
	case config.SMTPTLS:
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", n.addr)
	case config.SMTPStartTLS, config.SMTPNone:
		conn, err = dialer.DialContext(ctx, "tcp", n.addr)
	default:
		return nil, fmt.Errorf("unsupported smtp security %q", n.security)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", n.addr, err)
	}

	var c *smtp.Client
	if n.security == config.SMTPStartTLS {
		// The handshake runs with the client's default command timeout, so
		// the connection is closed if it outlives n.timeout or ctx.
		hsCtx, cancel := context.WithTimeout(ctx, n.timeout)
		stop := context.AfterFunc(hsCtx, func() {
			_ = conn.Close()
		})
		// Fails when the server does not offer STARTTLS: credentials never
		// travel over a plain connection.
		c, err = smtp.NewClientStartTLS(conn, tlsConfig)
		interrupted := !stop()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("starttls: %w", err)
		}
		if interrupted {
			_ = c.Close()
			return nil, fmt.Errorf("starttls: %w", context.DeadlineExceeded)
		}
	} else {
		c = smtp.NewClient(conn)
	}
	c.CommandTimeout = n.timeout
	c.SubmissionTimeout = n.timeout
	return c, nil
}

// Subject returns the subject line for summary.
func Subject(summary Summary) string {
	return "Mailbox cleanup finished - " + summary.RunTime.Format(subjectLayout)
}

// Body renders the plain-text report for summary.
func Body(summary Summary) string {
	var b strings.Builder
	b.WriteString("Mailbox cleanup finished\n\n")
	fmt.Fprintf(&b, "Run time: %s\n", summary.RunTime.Format(runTimeLayout))
	fmt.Fprintf(&b, "Mailbox: %s\n\n", summary.Mailbox)
	b.WriteString("Result:\n")
	fmt.Fprintf(&b, "- Messages deleted: %d\n", summary.Total)
	fmt.Fprintf(&b, "- Details: %s\n\n", summary.Details)
	b.WriteString("Configuration:\n")
	fmt.Fprintf(&b, "- Provider: %s\n", summary.Provider)
	fmt.Fprintf(&b, "- Minimum age: %d days\n", summary.MinAgeDays)
	fmt.Fprintf(&b, "- Clean read without attachment: %t\n", summary.CleanReadNoAttachment)
	fmt.Fprintf(&b, "- Dry run: %t\n\n", summary.DryRun)
	b.WriteString("Sent by inboxsweep\n")
	return b.String()
}

func compose(from, to string, summary Summary) ([]byte, error) {
	var h mail.Header
	h.SetDate(summary.RunTime)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(Subject(summary))
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, Body(summary)); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
