package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, KeyLen)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewCodec(key, 400, 2)
	require.NoError(t, err)
	c.now = func() time.Time {
		return time.Date(2024, 3, 2, 15, 4, 5, 0, time.UTC)
	}
	return c
}

func TestNewCodec_KeyLength(t *testing.T) {
	_, err := NewCodec(make([]byte, 16), 400, 2)
	assert.Error(t, err)

	_, err = NewCodec(make([]byte, KeyLen), 400, 2)
	assert.NoError(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c := testCodec(t)

	cases := []struct {
		userID int64
		date   time.Time
	}{
		{7, Date(2024, time.March, 1)},
		{1, Date(2023, time.December, 31)},
		{99999, Date(2024, time.March, 2)},
		{42, Date(2024, time.March, 4)}, // max future skew
	}

	for _, tc := range cases {
		tok, err := c.Issue(tc.userID, tc.date)
		require.NoError(t, err)

		userID, date, err := c.Verify(tok)
		require.NoError(t, err, "token %q", tok)
		assert.Equal(t, tc.userID, userID)
		assert.True(t, tc.date.Equal(date), "want %s got %s", tc.date, date)
	}
}

func TestVerify_BitFlipRejected(t *testing.T) {
	c := testCodec(t)

	tok, err := c.Issue(7, Date(2024, time.March, 1))
	require.NoError(t, err)

	data, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)

	// flip every bit of the MAC portion, one at a time
	for i := payloadLen; i < len(data); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(data))
			copy(mutated, data)
			mutated[i] ^= 1 << bit

			_, _, err := c.Verify(base64.RawURLEncoding.EncodeToString(mutated))
			assert.ErrorIs(t, err, ErrRejected, "byte %d bit %d", i, bit)
		}
	}
}

func TestVerify_PayloadTamperRejected(t *testing.T) {
	c := testCodec(t)

	tok, err := c.Issue(7, Date(2024, time.March, 1))
	require.NoError(t, err)

	data, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	data[5] ^= 0x01 // inside the user id field

	_, _, err = c.Verify(base64.RawURLEncoding.EncodeToString(data))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerify_Malformed(t *testing.T) {
	c := testCodec(t)

	for _, candidate := range []string{
		"",
		"not a token",
		"AAAA",
		strings.Repeat("A", 200),
		"%%%",
	} {
		_, _, err := c.Verify(candidate)
		assert.ErrorIs(t, err, ErrRejected, "candidate %q", candidate)
	}
}

func TestVerify_DateWindow(t *testing.T) {
	c := testCodec(t)

	// within the window
	tok, err := c.Issue(3, Date(2023, time.February, 1))
	require.NoError(t, err)
	_, _, err = c.Verify(tok)
	assert.NoError(t, err)

	// too far in the past
	tok, err = c.Issue(3, Date(2020, time.January, 1))
	require.NoError(t, err)
	_, _, err = c.Verify(tok)
	assert.ErrorIs(t, err, ErrRejected)

	// too far in the future
	tok, err = c.Issue(3, Date(2024, time.March, 10))
	require.NoError(t, err)
	_, _, err = c.Verify(tok)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestIssue_TokenIsLocalPartSafe(t *testing.T) {
	c := testCodec(t)

	tok, err := c.Issue(7, Date(2024, time.March, 1))
	require.NoError(t, err)

	assert.NotContains(t, tok, "@")
	assert.NotContains(t, tok, "<")
	assert.NotContains(t, tok, ">")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "/")
	assert.NotContains(t, tok, "=")
}

func TestIssue_Deterministic(t *testing.T) {
	c := testCodec(t)

	a, err := c.Issue(7, Date(2024, time.March, 1))
	require.NoError(t, err)
	b, err := c.Issue(7, Date(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := c.Issue(8, Date(2024, time.March, 1))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}
