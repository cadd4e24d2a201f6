package selectors

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aaronromeo/inboxsweep/internal/imap/base"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

var errFoundAttachment = errors.New("attachment found")

type ClientSelectors interface {
	Fetch(ctx context.Context, uid uint32, opts mailbox.FetchOptions) (mailbox.Message, error)
	ListFolders(ctx context.Context) ([]string, error)
	CountMessages(ctx context.Context, folder string) (uint32, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	IMAPClient() *giimapclient.Client
}

type IMAPSelectorManager struct {
	provider func() *giimapclient.Client
}

func New(provider ClientProvider) *IMAPSelectorManager {
	return &IMAPSelectorManager{provider: provider.IMAPClient}
}

// Fetch returns the metadata of a single message. Sections are fetched with
// PEEK so reading never sets \Seen. The full message is only transferred when
// opts.Attachments is set.
func (c *IMAPSelectorManager) Fetch(ctx context.Context, uid uint32, opts mailbox.FetchOptions) (mailbox.Message, error) {
	if c.provider == nil || c.provider() == nil {
		return mailbox.Message{}, base.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return mailbox.Message{}, err
	}

	section := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}
	if opts.Attachments {
		section = &imap.FetchItemBodySection{Peek: true}
	}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	var uidSet imap.UIDSet
	uidSet.AddNum(imap.UID(uid))

	fetchCmd := c.provider().Fetch(uidSet, fetchOptions)
	var raw []byte
	found := false
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			data, ok := item.(giimapclient.FetchItemDataBodySection)
			if !ok || data.Literal == nil {
				continue
			}
			body, err := io.ReadAll(data.Literal)
			if err != nil {
				_ = fetchCmd.Close()
				return mailbox.Message{}, base.Classify(err, mailbox.ErrFetch)
			}
			raw = body
			found = true
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return mailbox.Message{}, base.Classify(err, mailbox.ErrFetch)
	}
	if err := ctx.Err(); err != nil {
		return mailbox.Message{}, err
	}
	if !found {
		return mailbox.Message{}, fmt.Errorf("%w: message %d not found", mailbox.ErrFetch, uid)
	}

	if opts.Attachments {
		return parseMessage(uid, raw)
	}
	return parseHeaderOnly(uid, raw)
}

// ListFolders returns the names of all mailboxes.
func (c *IMAPSelectorManager) ListFolders(ctx context.Context) ([]string, error) {
	if c.provider == nil || c.provider() == nil {
		return nil, base.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list, err := c.provider().List("", "*", nil).Collect()
	if err != nil {
		return nil, base.Classify(err, mailbox.ErrSearch)
	}
	folders := make([]string, 0, len(list))
	for _, item := range list {
		folders = append(folders, item.Mailbox)
	}
	return folders, nil
}

// CountMessages returns the number of messages in folder.
func (c *IMAPSelectorManager) CountMessages(ctx context.Context, folder string) (uint32, error) {
	if c.provider == nil || c.provider() == nil {
		return 0, base.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(folder) == "" {
		return 0, errors.New("folder is required")
	}

	// STATUS must not be sent for the selected mailbox; its count is
	// tracked from SELECT and EXISTS/EXPUNGE responses.
	if selected := c.provider().Mailbox(); selected != nil && sameMailbox(selected.Name, folder) {
		return selected.NumMessages, nil
	}

	data, err := c.provider().Status(folder, &imap.StatusOptions{NumMessages: true}).Wait()
	if err != nil {
		return 0, base.Classify(err, mailbox.ErrSearch)
	}
	if data.NumMessages == nil {
		return 0, fmt.Errorf("%w: server omitted MESSAGES for %q", mailbox.ErrSearch, folder)
	}
	return *data.NumMessages, nil
}

func sameMailbox(a, b string) bool {
	if strings.EqualFold(a, "INBOX") {
		return strings.EqualFold(b, "INBOX")
	}
	return a == b
}

func parseHeaderOnly(uid uint32, raw []byte) (mailbox.Message, error) {
	tpHeader, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return mailbox.Message{}, fmt.Errorf("%w: message %d header: %v", mailbox.ErrFetch, uid, err)
	}
	header := mail.Header{Header: message.Header{Header: tpHeader}}
	return messageFromHeader(uid, header), nil
}

func parseMessage(uid uint32, raw []byte) (mailbox.Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return mailbox.Message{}, fmt.Errorf("%w: message %d: %v", mailbox.ErrFetch, uid, err)
	}

	msg := messageFromHeader(uid, mail.Header{Header: entity.Header})
	hasAttachment, err := hasDisposition(entity)
	if err != nil {
		return mailbox.Message{}, fmt.Errorf("%w: message %d body: %v", mailbox.ErrFetch, uid, err)
	}
	msg.HasAttachment = hasAttachment
	return msg, nil
}

// hasDisposition reports whether any leaf part carries a Content-Disposition
// header, inline or attachment alike.
func hasDisposition(entity *message.Entity) (bool, error) {
	err := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return err
		}
		if part == nil {
			return nil
		}
		mediaType, _, _ := part.Header.ContentType()
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}
		if strings.TrimSpace(part.Header.Get("Content-Disposition")) != "" {
			return errFoundAttachment
		}
		return nil
	})
	if errors.Is(err, errFoundAttachment) {
		return true, nil
	}
	return false, err
}

func messageFromHeader(uid uint32, header mail.Header) mailbox.Message {
	return mailbox.Message{
		UID:     uid,
		From:    headerText(header, "From"),
		Subject: subject(header),
		Date:    strings.TrimSpace(header.Get("Date")),
	}
}

func subject(header mail.Header) string {
	value, err := header.Subject()
	if err != nil {
		return strings.TrimSpace(header.Get("Subject"))
	}
	return strings.TrimSpace(value)
}

func headerText(header mail.Header, key string) string {
	value, err := header.Text(key)
	if err != nil {
		return strings.TrimSpace(header.Get(key))
	}
	return strings.TrimSpace(value)
}
