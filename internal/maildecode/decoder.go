// Package maildecode turns raw message bytes into an ordered header and a
// recursive MIME part tree, and selects the plaintext part the rest of the
// pipeline works on. Parsing is best-effort: the archived raw bytes stay
// authoritative, so malformed encodings degrade instead of aborting.
package maildecode

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // registers charset decoding
)

// Field is one header field occurrence.
type Field struct {
	Key   string
	Value string
}

// Header preserves field order and duplicate occurrences.
type Header []Field

// Get returns the value of the first occurrence of key, case-insensitively,
// or "" if absent.
func (h Header) Get(key string) string {
	for _, f := range h {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return ""
}

// Values returns every occurrence of key in order.
func (h Header) Values(key string) []string {
	var vals []string
	for _, f := range h {
		if strings.EqualFold(f.Key, key) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Part is one node of the MIME tree: either a multipart node with ordered
// children, or a leaf with its decoded bytes.
type Part struct {
	MediaType string
	Children  []*Part
	Body      []byte
}

// Message is one decoded mail message.
type Message struct {
	Header Header
	Root   *Part
}

// Decode parses raw bytes into a Message. It fails only when not even the
// header block can be read; body-level problems degrade to best-effort
// leaves.
func Decode(raw []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	header := make(Header, 0, 8)
	for it := entity.Header.Fields(); it.Next(); {
		header = append(header, Field{Key: it.Key(), Value: it.Value()})
	}

	return &Message{
		Header: header,
		Root:   decodeEntity(entity),
	}, nil
}

func decodeEntity(e *message.Entity) *Part {
	mediaType, _, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}
	mediaType = strings.ToLower(mediaType)

	if mr := e.MultipartReader(); mr != nil {
		node := &Part{MediaType: mediaType}
		for {
			child, err := mr.NextPart()
			if child != nil {
				node.Children = append(node.Children, decodeEntity(child))
			}
			if err != nil {
				// io.EOF ends the part list; anything else means the
				// remainder of the multipart body is unreadable, and we
				// keep the parts decoded so far.
				break
			}
		}
		return node
	}

	// Malformed transfer encoding or charset: keep whatever decoded.
	body, _ := io.ReadAll(e.Body)
	return &Part{MediaType: mediaType, Body: body}
}

// PlainText returns the normalized text of the first text/plain leaf in
// depth-first order, or ok=false when the message has none.
func (m *Message) PlainText() (string, bool) {
	leaf := findPlainText(m.Root)
	if leaf == nil {
		return "", false
	}
	text := string(leaf.Body)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return text, true
}

func findPlainText(p *Part) *Part {
	if p == nil {
		return nil
	}
	if len(p.Children) == 0 {
		if p.MediaType == "text/plain" {
			return p
		}
		return nil
	}
	for _, child := range p.Children {
		if leaf := findPlainText(child); leaf != nil {
			return leaf
		}
	}
	return nil
}
