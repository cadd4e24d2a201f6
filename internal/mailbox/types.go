//go:generate mockgen -source=types.go -destination=mocks/mock_mailbox.go -package=mocks

package mailbox

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrAuth    = errors.New("authentication failed")
	ErrNetwork = errors.New("network failure")
	ErrSearch  = errors.New("search failed")
	ErrFetch   = errors.New("fetch failed")
	ErrDelete  = errors.New("delete failed")
)

// Message is the metadata of a single message as fetched within one session.
// UIDs are only meaningful for the session that produced them.
type Message struct {
	UID     uint32
	From    string
	Subject string
	// Date is the raw Date header. Parsing is left to the filter so that
	// unparsable values can be reported separately.
	Date          string
	HasAttachment bool
}

type PredicateKind int

const (
	PredicateFrom PredicateKind = iota
	PredicateSeen
)

// Predicate selects the candidate messages for one cleanup pass.
type Predicate struct {
	Kind   PredicateKind
	Sender string
}

func FromContains(sender string) Predicate {
	return Predicate{Kind: PredicateFrom, Sender: sender}
}

func Seen() Predicate {
	return Predicate{Kind: PredicateSeen}
}

func (p Predicate) String() string {
	switch p.Kind {
	case PredicateFrom:
		return fmt.Sprintf("FROM %q", p.Sender)
	case PredicateSeen:
		return "SEEN"
	default:
		return "UNKNOWN"
	}
}

type FetchOptions struct {
	// Attachments requests the full message so HasAttachment can be derived.
	Attachments bool
}

// Session is a single logged-in mailbox connection with INBOX selected.
type Session interface {
	Search(ctx context.Context, predicate Predicate) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32, opts FetchOptions) (Message, error)
	MarkDeleted(ctx context.Context, uid uint32) error
	Purge(ctx context.Context) error
	ListFolders(ctx context.Context) ([]string, error)
	CountMessages(ctx context.Context, folder string) (uint32, error)
	Logout() error
}

// Dialer opens new sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Session, error)

func (f DialerFunc) Dial(ctx context.Context) (Session, error) {
	return f(ctx)
}
