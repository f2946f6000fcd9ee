package prompt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"journalmail/internal/model"
	"journalmail/internal/token"
)

type fakeUsers struct {
	user *model.User
	err  error
}

func (f *fakeUsers) GetByUsername(_ context.Context, _ string) (*model.User, error) {
	return f.user, f.err
}

type fakeEntries struct {
	bodies map[string]string // keyed by YYYY-MM-DD
	oldest time.Time
}

func (f *fakeEntries) GetBody(_ context.Context, _ int64, date time.Time) (string, bool, error) {
	body, ok := f.bodies[date.Format("2006-01-02")]
	return body, ok, nil
}

func (f *fakeEntries) OldestEntryDate(_ context.Context, _ int64) (time.Time, bool, error) {
	if f.oldest.IsZero() {
		return time.Time{}, false, nil
	}
	return f.oldest, true, nil
}

func testService(t *testing.T, entries *fakeEntries) (*Service, *model.User) {
	t.Helper()
	key := make([]byte, token.KeyLen)
	codec, err := token.NewCodec(key, 100000, 100000)
	require.NoError(t, err)

	user := &model.User{
		ID:       7,
		Username: "sam",
		Email:    "sam@example.com",
		Timezone: "America/New_York",
	}
	svc := NewService(&fakeUsers{user: user}, entries, codec, "journal.example.com", "journal@example.com", zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc, user
}

func TestCompose_HeadersAndTokenRoundTrip(t *testing.T) {
	svc, user := testService(t, &fakeEntries{})

	var out strings.Builder
	date := token.Date(2024, time.March, 1)
	require.NoError(t, svc.Compose(context.Background(), &out, user, date, ""))

	msg := out.String()
	assert.Contains(t, msg, "Subject: Journal for 2024-03-01\r\n")
	assert.Contains(t, msg, "From: Journal <journal@example.com>\r\n")
	assert.Contains(t, msg, "To: <sam@example.com>\r\n")
	assert.Contains(t, msg, "What'd you do today, Friday, March 1, 2024?\r\n")
	assert.Contains(t, msg, "-- \r\nsent by journalmail\r\n")

	// the Message-ID local-part must verify back to (user, date)
	start := strings.Index(msg, "Message-ID: <")
	require.GreaterOrEqual(t, start, 0)
	rest := msg[start+len("Message-ID: <"):]
	local := rest[:strings.Index(rest, "@")]

	userID, got, err := svc.codec.Verify(local)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
	assert.True(t, date.Equal(got))
	assert.Contains(t, rest, "@journal.example.com>")
}

func TestCompose_ReminiscenceSection(t *testing.T) {
	entries := &fakeEntries{
		bodies: map[string]string{
			"2024-02-23": "skied all day",               // one week ago
			"2024-02-01": "first line\nsecond line",     // one month ago
			"2023-03-01": "a year back",                 // one year ago
		},
		oldest: token.Date(2023, time.March, 1),
	}
	svc, user := testService(t, entries)

	var out strings.Builder
	require.NoError(t, svc.Compose(context.Background(), &out, user, token.Date(2024, time.March, 1), ""))
	msg := out.String()

	assert.Contains(t, msg, "Here's what you were doing\r\n")
	assert.Contains(t, msg, "\tone week ago:\tskied all day\r\n")
	assert.Contains(t, msg, "\tone year ago:\ta year back\r\n")

	// multi-line entries are block-indented
	assert.Contains(t, msg, "\tone month ago:\r\n\t\tfirst line\r\n\t\tsecond line\r\n")
}

func TestCompose_NoEntriesNoSection(t *testing.T) {
	svc, user := testService(t, &fakeEntries{})

	var out strings.Builder
	require.NoError(t, svc.Compose(context.Background(), &out, user, token.Date(2024, time.March, 1), ""))
	assert.NotContains(t, out.String(), "Here's what you were doing")
}

func TestCompose_ToOverride(t *testing.T) {
	svc, user := testService(t, &fakeEntries{})

	var out strings.Builder
	require.NoError(t, svc.Compose(context.Background(), &out, user, token.Date(2024, time.March, 1), "elsewhere@example.com"))
	assert.Contains(t, out.String(), "To: <elsewhere@example.com>\r\n")
}

func TestPromptDate_UserTimezone(t *testing.T) {
	svc, user := testService(t, &fakeEntries{})

	// 2024-03-01 12:00 UTC is still 2024-03-01 in New York
	date, err := svc.PromptDate(user, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", date.Format("2006-01-02"))

	// 2024-03-01 02:00 UTC is 2024-02-29 in New York
	svc.now = func() time.Time {
		return time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	}
	date, err = svc.PromptDate(user, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", date.Format("2006-01-02"))
}

func TestPromptDate_Override(t *testing.T) {
	svc, user := testService(t, &fakeEntries{})
	override := token.Date(2020, time.January, 5)
	date, err := svc.PromptDate(user, &override)
	require.NoError(t, err)
	assert.True(t, override.Equal(date))
}

func TestPromptDate_BadTimezone(t *testing.T) {
	svc, _ := testService(t, &fakeEntries{})
	_, err := svc.PromptDate(&model.User{Timezone: "Not/AZone"}, nil)
	assert.Error(t, err)
}

func TestSend_UsesSendmail(t *testing.T) {
	svc, _ := testService(t, &fakeEntries{})

	var sentTo string
	var sentMsg []byte
	svc.sendmail = func(_ context.Context, returnAddr, to string, msg []byte) error {
		assert.Equal(t, "journal@example.com", returnAddr)
		sentTo = to
		sentMsg = msg
		return nil
	}

	require.NoError(t, svc.Send(context.Background(), "sam", nil, ""))
	assert.Equal(t, "sam@example.com", sentTo)
	assert.Contains(t, string(sentMsg), "Subject: Journal for 2024-03-01")
}

func TestMonthsAgo_SkipsNonexistentDates(t *testing.T) {
	// Jan 31 minus one month would be Feb 31
	_, ok := monthsAgo(token.Date(2024, time.March, 31), 1)
	assert.False(t, ok)

	d, ok := monthsAgo(token.Date(2024, time.March, 15), 1)
	require.True(t, ok)
	assert.Equal(t, "2024-02-15", d.Format("2006-01-02"))

	// crossing a year boundary
	d, ok = monthsAgo(token.Date(2024, time.February, 10), 6)
	require.True(t, ok)
	assert.Equal(t, "2023-08-10", d.Format("2006-01-02"))
}

func TestYearsAgo_LeapDay(t *testing.T) {
	_, ok := yearsAgo(token.Date(2024, time.February, 29), 1)
	assert.False(t, ok)

	d, ok := yearsAgo(token.Date(2024, time.February, 29), 4)
	require.True(t, ok)
	assert.Equal(t, "2020-02-29", d.Format("2006-01-02"))
}

func TestEnglish(t *testing.T) {
	assert.Equal(t, "zero", english(0))
	assert.Equal(t, "one", english(1))
	assert.Equal(t, "sixteen", english(16))
	assert.Equal(t, "twenty", english(20))
	assert.Equal(t, "twenty-five", english(25))
	assert.Equal(t, "ninety-nine", english(99))
	assert.Equal(t, "100", english(100))
}
