// Package strip removes quoted, forwarded and signature content from a
// plaintext reply body, leaving only the text the user newly wrote. The
// heuristics are best-effort by nature; their order is a fixed contract so
// outcomes stay reproducible.
package strip

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmpty reports that stripping left no text at all.
var ErrEmpty = errors.New("stripped body is empty")

var (
	// "On Mon, Mar 4, 2024 at 9:15 AM Someone <s@example.com> wrote:"
	replyIntroRe = regexp.MustCompile(`(?i)^on .+wrote:\s*$`)

	// client-inserted separators such as "------------------" or
	// "________________________________"
	separatorRe = regexp.MustCompile(`^[-_]{3,}\s*$`)
)

// Strip applies the boundary heuristics in their fixed order and returns the
// remaining text. The first rule that finds a boundary is the one applied:
//
//  1. a reply-introduction line ("On <date>, <name> wrote:"), removed
//     together with the contiguous quoted/blank block around it;
//  2. a separator line of dashes or underscores, truncating the text;
//  3. a run of ">"-quoted lines reaching the end of the text, truncating at
//     its first line;
//  4. an exact "--" signature marker, truncating the text.
//
// Rules 1 and 2 outrank the generic quote heuristic because many clients put
// an unquoted introduction line next to the quoted block.
func Strip(body string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	switch {
	case applyReplyIntro(&lines):
	case applySeparator(&lines):
	case applyTrailingQuote(&lines):
	case applySignature(&lines):
	}

	result := strings.TrimSpace(strings.Join(lines, "\n"))
	if result == "" {
		return "", ErrEmpty
	}
	return result, nil
}

// applyReplyIntro removes the first reply-introduction line along with any
// contiguous run of quoted or blank lines directly before and after it. The
// quoted block can sit above the introduction (bottom-posting clients), so a
// plain truncation would throw away the user's text.
func applyReplyIntro(lines *[]string) bool {
	ls := *lines
	intro := -1
	for i, line := range ls {
		if replyIntroRe.MatchString(strings.TrimSpace(line)) {
			intro = i
			break
		}
	}
	if intro < 0 {
		return false
	}

	start := intro
	for start > 0 && (isQuoted(ls[start-1]) || isBlank(ls[start-1])) {
		start--
	}
	end := intro + 1
	for end < len(ls) && (isQuoted(ls[end]) || isBlank(ls[end])) {
		end++
	}

	kept := make([]string, 0, len(ls)-(end-start))
	kept = append(kept, ls[:start]...)
	kept = append(kept, ls[end:]...)
	*lines = kept
	return true
}

func applySeparator(lines *[]string) bool {
	for i, line := range *lines {
		if separatorRe.MatchString(line) {
			*lines = (*lines)[:i]
			return true
		}
	}
	return false
}

// applyTrailingQuote truncates at the first line of a quoted run that
// continues unbroken to the end of the text.
func applyTrailingQuote(lines *[]string) bool {
	ls := *lines

	end := len(ls)
	for end > 0 && isBlank(ls[end-1]) {
		end--
	}
	if end == 0 || !isQuoted(ls[end-1]) {
		return false
	}

	start := end - 1
	for start > 0 && isQuoted(ls[start-1]) {
		start--
	}
	*lines = ls[:start]
	return true
}

func applySignature(lines *[]string) bool {
	for i, line := range *lines {
		if (line == "--" || line == "-- ") && i < len(*lines)-1 {
			*lines = (*lines)[:i]
			return true
		}
	}
	return false
}

func isQuoted(line string) bool {
	return strings.HasPrefix(line, ">")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
