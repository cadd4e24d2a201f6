package searches

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aaronromeo/inboxsweep/internal/imap/base"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

type ServerSearcher interface {
	Search(ctx context.Context, predicate mailbox.Predicate) ([]uint32, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	IMAPClient() *giimapclient.Client
}

type IMAPSearchManager struct {
	provider func() *giimapclient.Client
}

func New(provider ClientProvider) *IMAPSearchManager {
	return &IMAPSearchManager{provider: provider.IMAPClient}
}

// Search returns the UIDs in the selected mailbox matching predicate, in
// ascending order. Messages already flagged \Deleted are excluded.
func (m *IMAPSearchManager) Search(ctx context.Context, predicate mailbox.Predicate) ([]uint32, error) {
	if m.provider == nil || m.provider() == nil {
		return nil, base.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria, err := buildSearchCriteria(predicate)
	if err != nil {
		return nil, err
	}

	data, err := m.provider().UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, base.Classify(err, mailbox.ErrSearch)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uids := data.AllUIDs()
	matches := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		matches = append(matches, uint32(uid))
	}
	slices.Sort(matches)
	return matches, nil
}

func buildSearchCriteria(predicate mailbox.Predicate) (*imap.SearchCriteria, error) {
	criteria := &imap.SearchCriteria{}
	criteria.NotFlag = append(criteria.NotFlag, imap.FlagDeleted)

	switch predicate.Kind {
	case mailbox.PredicateFrom:
		sender := strings.TrimSpace(predicate.Sender)
		if sender == "" {
			return nil, fmt.Errorf("%w: sender is required", mailbox.ErrSearch)
		}
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   "From",
			Value: sender,
		})
	case mailbox.PredicateSeen:
		criteria.Flag = append(criteria.Flag, imap.FlagSeen)
	default:
		return nil, fmt.Errorf("%w: unsupported predicate %s", mailbox.ErrSearch, predicate)
	}

	return criteria, nil
}
