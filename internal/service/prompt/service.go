// Package prompt composes and sends the daily journal prompt. The
// Message-ID carries the correlation token, so the reply can be matched to
// this user and date without any record of the prompt having been sent.
package prompt

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"journalmail/internal/model"
	"journalmail/internal/token"
	"journalmail/pkg/metrics"
)

type UserReader interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type EntryReader interface {
	GetBody(ctx context.Context, userID int64, date time.Time) (string, bool, error)
	OldestEntryDate(ctx context.Context, userID int64) (time.Time, bool, error)
}

type Service struct {
	users      UserReader
	entries    EntryReader
	codec      *token.Codec
	domain     string
	returnAddr string
	logger     *zap.Logger
	now        func() time.Time
	sendmail   func(ctx context.Context, returnAddr, to string, msg []byte) error
}

func NewService(users UserReader, entries EntryReader, codec *token.Codec, domain, returnAddr string, logger *zap.Logger) *Service {
	return &Service{
		users:      users,
		entries:    entries,
		codec:      codec,
		domain:     domain,
		returnAddr: returnAddr,
		logger:     logger,
		now:        time.Now,
		sendmail:   runSendmail,
	}
}

// PromptDate is today in the user's timezone, unless overridden.
func (s *Service) PromptDate(user *model.User, override *time.Time) (time.Time, error) {
	if override != nil {
		return *override, nil
	}
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q for user %s: %w", user.Timezone, user.Username, err)
	}
	now := s.now().In(loc)
	return token.Date(now.Year(), now.Month(), now.Day()), nil
}

// Compose writes the full RFC-822 prompt message for (user, date) to w.
func (s *Service) Compose(ctx context.Context, w io.Writer, user *model.User, date time.Time, to string) error {
	tok, err := s.codec.Issue(user.ID, date)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	if to == "" {
		to = user.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Subject: Journal for %s\r\n", date.Format("2006-01-02"))
	fmt.Fprintf(&b, "From: Journal <%s>\r\n", s.returnAddr)
	fmt.Fprintf(&b, "To: <%s>\r\n", to)
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", tok, s.domain)
	fmt.Fprintf(&b, "\r\n")
	fmt.Fprintf(&b, "What'd you do today, %s?\r\n", date.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "\r\n")

	if err := s.writeReminiscence(ctx, &b, user.ID, date); err != nil {
		return err
	}

	fmt.Fprintf(&b, "-- \r\n")
	fmt.Fprintf(&b, "sent by journalmail\r\n")

	_, err = io.WriteString(w, b.String())
	return err
}

// Send composes the prompt and pipes it to the sendmail binary.
func (s *Service) Send(ctx context.Context, username string, dateOverride *time.Time, toOverride string) error {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	date, err := s.PromptDate(user, dateOverride)
	if err != nil {
		return err
	}

	to := toOverride
	if to == "" {
		to = user.Email
	}

	var msg strings.Builder
	if err := s.Compose(ctx, &msg, user, date, to); err != nil {
		metrics.RecordPromptSent("failed")
		return err
	}

	if err := s.sendmail(ctx, s.returnAddr, to, []byte(msg.String())); err != nil {
		metrics.RecordPromptSent("failed")
		return fmt.Errorf("failed to send prompt: %w", err)
	}

	metrics.RecordPromptSent("sent")
	s.logger.Info("prompt sent",
		zap.String("username", username),
		zap.String("date", date.Format("2006-01-02")),
	)
	return nil
}

type lookback struct {
	label string
	date  time.Time
}

// writeReminiscence appends the "here's what you were doing" section built
// from the user's past entries on round anniversaries of the prompt date.
func (s *Service) writeReminiscence(ctx context.Context, b *strings.Builder, userID int64, date time.Time) error {
	lookbacks := []lookback{
		{"one week ago", date.AddDate(0, 0, -7)},
		{"two weeks ago", date.AddDate(0, 0, -14)},
		{"three weeks ago", date.AddDate(0, 0, -21)},
	}
	for months := 1; months <= 6; months++ {
		if d, ok := monthsAgo(date, months); ok {
			lookbacks = append(lookbacks, lookback{monthsLabel(months), d})
		}
	}
	if d, ok := yearsAgo(date, 1); ok {
		lookbacks = append(lookbacks, lookback{"one year ago", d})
	}

	if oldest, ok, err := s.entries.OldestEntryDate(ctx, userID); err == nil && ok {
		for years := 2; ; years++ {
			d, valid := yearsAgo(date, years)
			if valid && d.Before(oldest) {
				break
			}
			if !valid {
				continue
			}
			lookbacks = append(lookbacks, lookback{fmt.Sprintf("%s years ago", english(years)), d})
		}
	}

	type event struct {
		label string
		body  string
	}
	var events []event
	for _, lb := range lookbacks {
		body, ok, err := s.entries.GetBody(ctx, userID, lb.date)
		if err != nil {
			s.logger.Warn("failed to query past entry",
				zap.Int64("user_id", userID),
				zap.String("date", lb.date.Format("2006-01-02")),
				zap.Error(err),
			)
			continue
		}
		if ok {
			events = append(events, event{lb.label, body})
		}
	}

	if len(events) == 0 {
		return nil
	}

	fmt.Fprintf(b, "Here's what you were doing\r\n")
	for _, ev := range events {
		lines := strings.Split(ev.body, "\n")
		if len(lines) > 1 {
			fmt.Fprintf(b, "\t%s:\r\n", ev.label)
			for _, line := range lines {
				fmt.Fprintf(b, "\t\t%s\r\n", line)
			}
		} else {
			fmt.Fprintf(b, "\t%s:\t%s\r\n", ev.label, ev.body)
		}
	}
	fmt.Fprintf(b, "\r\n")
	return nil
}

// monthsAgo steps back whole months, reporting ok=false when the resulting
// calendar date does not exist (e.g. Jan 31 minus one month).
func monthsAgo(date time.Time, months int) (time.Time, bool) {
	year, month, day := date.Year(), int(date.Month()), date.Day()
	month -= months
	for month < 1 {
		month += 12
		year--
	}
	d := token.Date(year, time.Month(month), day)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func yearsAgo(date time.Time, years int) (time.Time, bool) {
	d := token.Date(date.Year()-years, date.Month(), date.Day())
	if d.Day() != date.Day() || d.Month() != date.Month() {
		return time.Time{}, false
	}
	return d, true
}

func monthsLabel(months int) string {
	return fmt.Sprintf("%s month%s ago", english(months), plural(months))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// english spells out small numbers; larger values fall back to digits.
func english(n int) string {
	words := []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven",
		"eight", "nine", "ten", "eleven", "twelve", "thirteen", "fourteen",
		"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}
	if n >= 0 && n < len(words) {
		return words[n]
	}
	tens := map[int]string{
		2: "twenty", 3: "thirty", 4: "forty", 5: "fifty",
		6: "sixty", 7: "seventy", 8: "eighty", 9: "ninety",
	}
	if n < 100 {
		if n%10 == 0 {
			return tens[n/10]
		}
		return fmt.Sprintf("%s-%s", tens[n/10], english(n%10))
	}
	return fmt.Sprintf("%d", n)
}

func runSendmail(ctx context.Context, returnAddr, to string, msg []byte) error {
	cmd := exec.CommandContext(ctx, "sendmail", "-i", "-f", returnAddr, to)
	cmd.Stdin = strings.NewReader(string(msg))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("sendmail: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
