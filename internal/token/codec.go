// Package token issues and verifies the correlation tokens embedded in
// outbound Message-IDs. A token is a pure function of the secret key, the
// user id and the prompt date, so no record of sent prompts is needed to
// recognize a reply.
package token

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"
)

const (
	// KeyLen is the required secret key size in bytes.
	KeyLen = 32

	version    = 1
	payloadLen = 13 // version(1) + user id(8) + epoch day(4)
	macLen     = 16
)

// ErrRejected is returned by Verify for any candidate that is not a valid
// token: wrong shape, failed MAC, or implausible date.
var ErrRejected = errors.New("token rejected")

// Codec holds the MAC key and the plausible date window.
type Codec struct {
	key           []byte
	maxPastDays   int
	maxFutureDays int
	now           func() time.Time
}

func NewCodec(key []byte, maxPastDays, maxFutureDays int) (*Codec, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", KeyLen, len(key))
	}
	k := make([]byte, KeyLen)
	copy(k, key)
	return &Codec{
		key:           k,
		maxPastDays:   maxPastDays,
		maxFutureDays: maxFutureDays,
		now:           time.Now,
	}, nil
}

// ReadSecretKey loads exactly KeyLen raw bytes from path.
func ReadSecretKey(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret key %s: %w", path, err)
	}
	defer f.Close()

	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(f, key); err != nil {
		return nil, fmt.Errorf("failed to read %d key bytes from %s: %w", KeyLen, path, err)
	}
	return key, nil
}

// Date returns midnight UTC for the given calendar date. Entry dates are
// calendar dates; this is their canonical time.Time form.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Issue builds the token for (userID, date). The result is safe for use as
// an email local-part.
func (c *Codec) Issue(userID int64, date time.Time) (string, error) {
	epochDay := date.UTC().Unix() / 86400
	if epochDay < 0 || epochDay > int64(^uint32(0)) {
		return "", fmt.Errorf("date %s out of encodable range", date.Format("2006-01-02"))
	}

	buf := make([]byte, payloadLen, payloadLen+macLen)
	buf[0] = version
	binary.BigEndian.PutUint64(buf[1:9], uint64(userID))
	binary.BigEndian.PutUint32(buf[9:13], uint32(epochDay))

	buf = append(buf, c.mac(buf[:payloadLen])...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify parses a candidate token and returns the (userID, date) it encodes.
// Any failure is reported as ErrRejected; the MAC comparison is constant
// time.
func (c *Codec) Verify(candidate string) (int64, time.Time, error) {
	data, err := base64.RawURLEncoding.DecodeString(candidate)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: not base64url", ErrRejected)
	}
	if len(data) != payloadLen+macLen {
		return 0, time.Time{}, fmt.Errorf("%w: wrong length", ErrRejected)
	}

	payload, mac := data[:payloadLen], data[payloadLen:]
	if subtle.ConstantTimeCompare(mac, c.mac(payload)) != 1 {
		return 0, time.Time{}, fmt.Errorf("%w: bad authentication code", ErrRejected)
	}

	if payload[0] != version {
		return 0, time.Time{}, fmt.Errorf("%w: unknown version %d", ErrRejected, payload[0])
	}

	userID := int64(binary.BigEndian.Uint64(payload[1:9]))
	epochDay := int64(binary.BigEndian.Uint32(payload[9:13]))
	date := time.Unix(epochDay*86400, 0).UTC()

	today := c.now().UTC().Truncate(24 * time.Hour)
	if date.Before(today.AddDate(0, 0, -c.maxPastDays)) ||
		date.After(today.AddDate(0, 0, c.maxFutureDays)) {
		return 0, time.Time{}, fmt.Errorf("%w: date %s outside plausible window",
			ErrRejected, date.Format("2006-01-02"))
	}

	return userID, date, nil
}

func (c *Codec) mac(payload []byte) []byte {
	h, err := blake2b.New(macLen, c.key)
	if err != nil {
		// key length was validated in NewCodec
		panic(err)
	}
	h.Write(payload)
	return h.Sum(nil)
}
