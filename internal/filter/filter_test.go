package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func dated(t time.Time) mailbox.Message {
	return mailbox.Message{UID: 1, Date: t.Format(time.RFC1123Z)}
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		msg      mailbox.Message
		criteria Criteria
		want     Verdict
	}{
		{
			name:     "older than threshold",
			msg:      dated(now.AddDate(0, 0, -5)),
			criteria: Criteria{MinAgeDays: 3},
			want:     VerdictDelete,
		},
		{
			name:     "newer than threshold",
			msg:      dated(now.AddDate(0, 0, -1)),
			criteria: Criteria{MinAgeDays: 3},
			want:     VerdictTooRecent,
		},
		{
			name:     "exactly at threshold",
			msg:      dated(now.AddDate(0, 0, -3)),
			criteria: Criteria{MinAgeDays: 3},
			want:     VerdictDelete,
		},
		{
			name:     "one second short of threshold",
			msg:      dated(now.AddDate(0, 0, -3).Add(time.Second)),
			criteria: Criteria{MinAgeDays: 3},
			want:     VerdictTooRecent,
		},
		{
			name:     "zero threshold accepts today",
			msg:      dated(now.Add(-time.Hour)),
			criteria: Criteria{MinAgeDays: 0},
			want:     VerdictDelete,
		},
		{
			name:     "future date is never old enough",
			msg:      dated(now.Add(2 * time.Hour)),
			criteria: Criteria{MinAgeDays: 0},
			want:     VerdictTooRecent,
		},
		{
			name:     "missing date",
			msg:      mailbox.Message{UID: 1},
			criteria: Criteria{MinAgeDays: 0},
			want:     VerdictNoDate,
		},
		{
			name:     "unparsable date",
			msg:      mailbox.Message{UID: 1, Date: "sometime last week"},
			criteria: Criteria{MinAgeDays: 0},
			want:     VerdictUnparsableDate,
		},
		{
			name:     "attachment ignored without attachment criterion",
			msg:      mailbox.Message{UID: 1, Date: now.AddDate(0, 0, -10).Format(time.RFC1123Z), HasAttachment: true},
			criteria: Criteria{MinAgeDays: 3},
			want:     VerdictDelete,
		},
		{
			name:     "attachment retains old message",
			msg:      mailbox.Message{UID: 1, Date: now.AddDate(0, 0, -10).Format(time.RFC1123Z), HasAttachment: true},
			criteria: Criteria{MinAgeDays: 3, RequireNoAttachment: true},
			want:     VerdictHasAttachment,
		},
		{
			name:     "no attachment and old enough",
			msg:      dated(now.AddDate(0, 0, -10)),
			criteria: Criteria{MinAgeDays: 3, RequireNoAttachment: true},
			want:     VerdictDelete,
		},
		{
			name:     "recent message with attachment reports age first",
			msg:      mailbox.Message{UID: 1, Date: now.Format(time.RFC1123Z), HasAttachment: true},
			criteria: Criteria{MinAgeDays: 3, RequireNoAttachment: true},
			want:     VerdictTooRecent,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.msg, tc.criteria, now)
			assert.Equal(t, tc.want, got, "verdict %s", got)
			assert.Equal(t, tc.want == VerdictDelete, ShouldDelete(tc.msg, tc.criteria, now))
		})
	}
}

func TestShouldDeleteRecentNeverDeleted(t *testing.T) {
	for days := 1; days <= 30; days++ {
		for age := 0; age < days; age++ {
			for _, noAttachment := range []bool{false, true} {
				msg := dated(now.AddDate(0, 0, -age))
				criteria := Criteria{MinAgeDays: days, RequireNoAttachment: noAttachment}
				assert.False(t, ShouldDelete(msg, criteria, now), "age %d threshold %d", age, days)
			}
		}
	}
}

func TestShouldDeleteUnparsableIsStable(t *testing.T) {
	msg := mailbox.Message{UID: 7, Date: "Mon, 32 Foo 2024 99:99:99"}
	criteria := Criteria{MinAgeDays: 0}
	for i := 0; i < 3; i++ {
		assert.False(t, ShouldDelete(msg, criteria, now))
	}
}

func TestEvaluateSenderZone(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	// 2024-03-12 02:00 in Shanghai is 2024-03-11 18:00 UTC, 3 days 18 hours before now.
	msg := mailbox.Message{Date: time.Date(2024, 3, 12, 2, 0, 0, 0, shanghai).Format(time.RFC1123Z)}
	assert.Equal(t, VerdictDelete, Evaluate(msg, Criteria{MinAgeDays: 3}, now))
	assert.Equal(t, VerdictTooRecent, Evaluate(msg, Criteria{MinAgeDays: 4}, now))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("Tue, 12 Mar 2024 10:00:00 +0000")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)))

	_, err = ParseDate("not a date")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDateParse))
}

func TestAgeDays(t *testing.T) {
	assert.Equal(t, 0, AgeDays(now.Add(-23*time.Hour), now))
	assert.Equal(t, 1, AgeDays(now.Add(-24*time.Hour), now))
	assert.Equal(t, -1, AgeDays(now.Add(time.Minute), now))
}
