// Package correlate recovers which (user, date) a reply answers from its
// threading headers. Sender identity is never trusted; only a message id
// carrying a verifiable token counts.
package correlate

import (
	"errors"
	"strings"
	"time"

	"journalmail/internal/maildecode"
	"journalmail/internal/token"
)

// ErrUnverified reports that no candidate message id carried a valid token.
var ErrUnverified = errors.New("no candidate token verified")

// Correlator extracts candidate tokens from In-Reply-To and References and
// verifies them against the codec.
type Correlator struct {
	codec *token.Codec
}

func New(codec *token.Codec) *Correlator {
	return &Correlator{codec: codec}
}

// Resolve returns the (userID, date) of the first verifiable candidate.
// Candidates are tried in order: the In-Reply-To value, then each References
// entry most recent first.
func (c *Correlator) Resolve(header maildecode.Header) (int64, time.Time, error) {
	for _, candidate := range Candidates(header) {
		userID, date, err := c.codec.Verify(candidate)
		if err == nil {
			return userID, date, nil
		}
	}
	return 0, time.Time{}, ErrUnverified
}

// Candidates lists the token candidates from the threading headers, already
// stripped down to local-parts.
func Candidates(header maildecode.Header) []string {
	var out []string

	for _, id := range splitIDs(header.Get("In-Reply-To")) {
		out = append(out, localPart(id))
	}

	refs := splitIDs(header.Get("References"))
	for i := len(refs) - 1; i >= 0; i-- {
		out = append(out, localPart(refs[i]))
	}

	return out
}

func splitIDs(value string) []string {
	return strings.Fields(value)
}

// localPart strips angle brackets and the domain suffix from a message id.
func localPart(id string) string {
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	if at := strings.LastIndex(id, "@"); at >= 0 {
		id = id[:at]
	}
	return id
}
