// Package filter decides whether a fetched message qualifies for deletion.
package filter

import (
	"errors"
	"fmt"
	"math"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/aaronromeo/inboxsweep/internal/mailbox"
)

var ErrDateParse = errors.New("unparsable message date")

// Criteria are the per-pass conditions a candidate must meet. The sender
// condition is enforced by the search predicate, not here.
type Criteria struct {
	MinAgeDays          int
	RequireNoAttachment bool
}

type Verdict int

const (
	VerdictDelete Verdict = iota
	VerdictNoDate
	VerdictUnparsableDate
	VerdictTooRecent
	VerdictHasAttachment
)

func (v Verdict) String() string {
	switch v {
	case VerdictDelete:
		return "delete"
	case VerdictNoDate:
		return "no date"
	case VerdictUnparsableDate:
		return "unparsable date"
	case VerdictTooRecent:
		return "too recent"
	case VerdictHasAttachment:
		return "has attachment"
	default:
		return "unknown"
	}
}

// Delete reports whether the verdict allows deletion.
func (v Verdict) Delete() bool {
	return v == VerdictDelete
}

// Evaluate returns the verdict for msg under criteria at time now.
func Evaluate(msg mailbox.Message, criteria Criteria, now time.Time) Verdict {
	if strings.TrimSpace(msg.Date) == "" {
		return VerdictNoDate
	}
	date, err := ParseDate(msg.Date)
	if err != nil {
		return VerdictUnparsableDate
	}
	if AgeDays(date, now) < criteria.MinAgeDays {
		return VerdictTooRecent
	}
	if criteria.RequireNoAttachment && msg.HasAttachment {
		return VerdictHasAttachment
	}
	return VerdictDelete
}

// ShouldDelete is Evaluate reduced to a keep/delete decision.
func ShouldDelete(msg mailbox.Message, criteria Criteria, now time.Time) bool {
	return Evaluate(msg, criteria, now).Delete()
}

// ParseDate parses an RFC 5322 Date header value.
func ParseDate(raw string) (time.Time, error) {
	date, err := netmail.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrDateParse, raw, err)
	}
	return date, nil
}

// AgeDays returns the number of whole days between date and now. Both are
// read as wall-clock time in now's location, so the result does not depend on
// the sender's zone. Dates in the future give a negative age.
func AgeDays(date, now time.Time) int {
	elapsed := naive(now).Sub(naive(date.In(now.Location())))
	return int(math.Floor(elapsed.Hours() / 24))
}

func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
