package maildecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestDecode_SimplePlainText(t *testing.T) {
	raw := crlf(`From: someone@example.com
To: journal@example.com
Subject: Re: Journal for 2024-03-01
Message-ID: <abc@client.example.com>
Content-Type: text/plain; charset=utf-8

Went hiking
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	text, ok := msg.PlainText()
	require.True(t, ok)
	assert.Equal(t, "Went hiking\n", text)
}

func TestDecode_HeaderOrderAndDuplicates(t *testing.T) {
	raw := crlf(`Received: from a.example.com
Received: from b.example.com
From: someone@example.com
Subject: hello

body
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	received := msg.Header.Values("Received")
	require.Len(t, received, 2)
	assert.Equal(t, "from a.example.com", strings.TrimSpace(received[0]))
	assert.Equal(t, "from b.example.com", strings.TrimSpace(received[1]))

	// case-insensitive lookup
	assert.Equal(t, "hello", strings.TrimSpace(msg.Header.Get("subject")))
	assert.Equal(t, "", msg.Header.Get("X-Missing"))
}

func TestDecode_MultipartAlternative(t *testing.T) {
	raw := crlf(`From: someone@example.com
Content-Type: multipart/alternative; boundary=BOUND

--BOUND
Content-Type: text/plain; charset=utf-8

plain version
--BOUND
Content-Type: text/html; charset=utf-8

<p>html version</p>
--BOUND--
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	require.Len(t, msg.Root.Children, 2)
	assert.Equal(t, "multipart/alternative", msg.Root.MediaType)
	assert.Equal(t, "text/plain", msg.Root.Children[0].MediaType)
	assert.Equal(t, "text/html", msg.Root.Children[1].MediaType)

	text, ok := msg.PlainText()
	require.True(t, ok)
	assert.Equal(t, "plain version", strings.TrimSpace(text))
}

func TestDecode_HTMLOnlyHasNoPlainText(t *testing.T) {
	raw := crlf(`From: someone@example.com
Content-Type: text/html; charset=utf-8

<p>only html</p>
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	_, ok := msg.PlainText()
	assert.False(t, ok)
}

func TestDecode_NestedMultipartDepthFirst(t *testing.T) {
	raw := crlf(`From: someone@example.com
Content-Type: multipart/mixed; boundary=OUTER

--OUTER
Content-Type: multipart/alternative; boundary=INNER

--INNER
Content-Type: text/plain; charset=utf-8

nested plain
--INNER
Content-Type: text/html; charset=utf-8

<p>nested html</p>
--INNER--
--OUTER
Content-Type: text/plain; charset=utf-8

second plain
--OUTER--
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	text, ok := msg.PlainText()
	require.True(t, ok)
	assert.Equal(t, "nested plain", strings.TrimSpace(text), "depth-first search selects the first leaf")
}

func TestDecode_QuotedPrintable(t *testing.T) {
	raw := crlf(`From: someone@example.com
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

caf=C3=A9 day
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	text, ok := msg.PlainText()
	require.True(t, ok)
	assert.Equal(t, "café day", strings.TrimSpace(text))
}

func TestDecode_Base64(t *testing.T) {
	raw := crlf(`From: someone@example.com
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: base64

V2VudCBoaWtpbmc=
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	text, ok := msg.PlainText()
	require.True(t, ok)
	assert.Equal(t, "Went hiking", strings.TrimSpace(text))
}

func TestDecode_MissingContentTypeDefaultsToPlainText(t *testing.T) {
	raw := crlf(`From: someone@example.com
Subject: no content type

implicit plain text
`)

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	text, ok := msg.PlainText()
	require.True(t, ok)
	assert.Equal(t, "implicit plain text", strings.TrimSpace(text))
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("\x00\x01\x02 this is not a mail message"))
	assert.Error(t, err)
}

func TestDecode_CRLFNormalized(t *testing.T) {
	raw := "From: a@example.com\r\nContent-Type: text/plain\r\n\r\nline one\r\nline two\r\n"

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	text, ok := msg.PlainText()
	require.True(t, ok)
	assert.NotContains(t, text, "\r")
	assert.Equal(t, "line one\nline two\n", text)
}
